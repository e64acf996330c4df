package bitfinex

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbridge/go-bitfinex-bridge/domain"
)

func TestStreamAPI_BookStreamRejectsShallowDepth(t *testing.T) {
	api := NewStreamAPI(nil)

	for _, depth := range []int{-1, 0, 1} {
		_, err := api.BookStream(testSymbol(t), depth)
		assert.ErrorIs(t, err, domain.ErrInvalidDepth)
	}
}

func TestForwardBookFrames_QuitReleasesPendingSend(t *testing.T) {
	rawCh := make(chan []byte, 1)
	raw := &domain.Subscription[[]byte]{Stream: rawCh, Unsubscribe: func() {}, Topic: "book:test"}
	out := make(chan *domain.BookMessage)
	quit := make(chan struct{})

	done := make(chan struct{})
	go func() {
		forwardBookFrames(raw, out, quit)
		close(done)
	}()

	// a frame arrives but nothing ever reads out, so the forwarder parks
	// on the send; closing quit must still let it exit
	rawCh <- []byte(`[266343,[9900,0,1]]`)
	close(quit)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("forwarder still running after quit")
	}

	_, ok := <-out
	assert.False(t, ok, "out must be closed once the forwarder exits")
}

func TestForwardBookFrames_ClosedRawStreamClosesOut(t *testing.T) {
	rawCh := make(chan []byte)
	raw := &domain.Subscription[[]byte]{Stream: rawCh, Unsubscribe: func() {}, Topic: "book:test"}
	out := make(chan *domain.BookMessage)

	go forwardBookFrames(raw, out, make(chan struct{}))
	close(rawCh)

	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(3 * time.Second):
		t.Fatal("out never closed after the raw stream ended")
	}
}

func TestParseBookFrame_Heartbeat(t *testing.T) {
	msg, err := parseBookFrame([]byte(`[266343,"hb"]`))
	require.NoError(t, err)
	assert.Equal(t, domain.BookMessage_Control, msg.Type)
}

func TestParseBookFrame_Checksum(t *testing.T) {
	msg, err := parseBookFrame([]byte(`[266343,"cs",-1354894]`))
	require.NoError(t, err)
	assert.Equal(t, domain.BookMessage_Checksum, msg.Type)
	assert.Equal(t, int32(-1354894), msg.Checksum)
}

func TestParseBookFrame_FirstBatch(t *testing.T) {
	frame := []byte(`[266343,[[10000,1,1],[9900,2,2],[10100,1,-1.5],[10200,2,-2.5]]]`)

	msg, err := parseBookFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, domain.BookMessage_Data, msg.Type)
	assert.Equal(t, []domain.RawLevel{
		{Price: 10000, Count: 1, Amount: 1},
		{Price: 9900, Count: 2, Amount: 2},
		{Price: 10100, Count: 1, Amount: -1.5},
		{Price: 10200, Count: 2, Amount: -2.5},
	}, msg.Levels)
}

func TestParseBookFrame_SingleDelta(t *testing.T) {
	msg, err := parseBookFrame([]byte(`[266343,[9900,0,1]]`))
	require.NoError(t, err)
	assert.Equal(t, domain.BookMessage_Data, msg.Type)
	require.Len(t, msg.Levels, 1)
	assert.Equal(t, domain.RawLevel{Price: 9900, Count: 0, Amount: 1}, msg.Levels[0])
}

func TestParseBookFrame_Malformed(t *testing.T) {
	cases := []struct {
		name  string
		frame string
	}{
		{"not json", `not json`},
		{"object frame", `{"event":"info"}`},
		{"checksum without value", `[266343,"cs"]`},
		{"checksum with string value", `[266343,"cs","abc"]`},
		{"short triple", `[266343,[9900,0]]`},
		{"short triple in batch", `[266343,[[10000,1,1],[9900,2]]]`},
		{"payload is an object", `[266343,{"price":1}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseBookFrame([]byte(tc.frame))
			assert.Error(t, err)
		})
	}
}

func TestParseBookFrame_UnknownTagIsControl(t *testing.T) {
	// unknown string tags pass through as control frames rather than erroring
	msg, err := parseBookFrame([]byte(`[266343,"fte",3]`))
	require.NoError(t, err)
	assert.Equal(t, domain.BookMessage_Control, msg.Type)
}

func TestParseBookFrame_ShortArrayIsControl(t *testing.T) {
	msg, err := parseBookFrame([]byte(`[266343]`))
	require.NoError(t, err)
	assert.Equal(t, domain.BookMessage_Control, msg.Type)
}
