package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookSynchronizer_ControlMessagesAreIgnored(t *testing.T) {
	s := NewBookSynchronizer(testSymbol(t))

	snapshot, err := s.Process(&BookMessage{Type: BookMessage_Control})
	require.NoError(t, err)
	assert.Nil(t, snapshot)
	assert.Equal(t, 0, s.MessageCount(), "control messages must not advance the counter")
}

func TestBookSynchronizer_FirstBatchThenVerifiedChecksum(t *testing.T) {
	s := NewBookSynchronizer(testSymbol(t))

	snapshot, err := s.Process(&BookMessage{Type: BookMessage_Data, Levels: referenceBatch()})
	require.NoError(t, err)
	assert.Nil(t, snapshot, "the first batch alone does not publish")
	assert.Equal(t, 1, s.MessageCount())

	snapshot, err = s.Process(&BookMessage{Type: BookMessage_Checksum, Checksum: -1354894})
	require.NoError(t, err)
	require.NotNil(t, snapshot, "a verified checksum publishes the book")
	assert.Equal(t, 1, s.MessageCount(), "checksum messages must not advance the counter")

	assert.Equal(t, []PriceLevel{
		{Price: 10000, Count: 1, Amount: 1},
		{Price: 9900, Count: 2, Amount: 2},
	}, snapshot.Bids)
	assert.Equal(t, []PriceLevel{
		{Price: 10100, Count: 1, Amount: 1.5},
		{Price: 10200, Count: 2, Amount: 2.5},
	}, snapshot.Asks)
}

func TestBookSynchronizer_DeltaThenChecksum(t *testing.T) {
	s := NewBookSynchronizer(testSymbol(t))

	_, err := s.Process(&BookMessage{Type: BookMessage_Data, Levels: referenceBatch()})
	require.NoError(t, err)

	snapshot, err := s.Process(&BookMessage{Type: BookMessage_Data, Levels: []RawLevel{{Price: 9800, Count: 1, Amount: 3}}})
	require.NoError(t, err)
	assert.Nil(t, snapshot, "a delta alone does not publish")
	assert.Equal(t, 2, s.MessageCount())

	snapshot, err = s.Process(&BookMessage{Type: BookMessage_Checksum, Checksum: 495872378})
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Len(t, snapshot.Bids, 3)
}

func TestBookSynchronizer_DeleteDeltaThenChecksum(t *testing.T) {
	s := NewBookSynchronizer(testSymbol(t))

	_, err := s.Process(&BookMessage{Type: BookMessage_Data, Levels: referenceBatch()})
	require.NoError(t, err)

	_, err = s.Process(&BookMessage{Type: BookMessage_Data, Levels: []RawLevel{{Price: 9900, Count: 0, Amount: 1}}})
	require.NoError(t, err)

	snapshot, err := s.Process(&BookMessage{Type: BookMessage_Checksum, Checksum: -966878103})
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, []PriceLevel{{Price: 10000, Count: 1, Amount: 1}}, snapshot.Bids)
}

func TestBookSynchronizer_ChecksumMismatchIsFatal(t *testing.T) {
	s := NewBookSynchronizer(testSymbol(t))

	_, err := s.Process(&BookMessage{Type: BookMessage_Data, Levels: referenceBatch()})
	require.NoError(t, err)

	snapshot, err := s.Process(&BookMessage{Type: BookMessage_Checksum, Checksum: 42})
	assert.ErrorIs(t, err, ErrChecksumMismatch)
	assert.Nil(t, snapshot)
}

func TestBookSynchronizer_DeleteOfMissingLevelIsFatal(t *testing.T) {
	s := NewBookSynchronizer(testSymbol(t))

	_, err := s.Process(&BookMessage{Type: BookMessage_Data, Levels: referenceBatch()})
	require.NoError(t, err)

	snapshot, err := s.Process(&BookMessage{Type: BookMessage_Data, Levels: []RawLevel{{Price: 1, Count: 0, Amount: 1}}})
	assert.ErrorIs(t, err, ErrLevelNotFound)
	assert.Nil(t, snapshot)
}

func TestBookSynchronizer_FirstBatchNeverDeletes(t *testing.T) {
	s := NewBookSynchronizer(testSymbol(t))

	// count 0 entries in the first batch are stored, not treated as deletions
	snapshot, err := s.Process(&BookMessage{Type: BookMessage_Data, Levels: []RawLevel{{Price: 5, Count: 0, Amount: 4}}})
	require.NoError(t, err)
	assert.Nil(t, snapshot)
	assert.Equal(t, 1, s.MessageCount())
}
