package domain

import (
	"fmt"

	"github.com/finbridge/go-bitfinex-bridge/config"
)

// BookSynchronizer turns the raw subscription message stream into verified
// book snapshots. It must see messages strictly in arrival order: the first
// data message is the initial batch, every later one a delta, and a checksum
// message verifies the accumulated state before anything is published.
type BookSynchronizer struct {
	book     *OrderBook
	msgCount int
}

func NewBookSynchronizer(symbol *MarketSymbol) *BookSynchronizer {
	return &BookSynchronizer{
		book: NewOrderBook(symbol),
	}
}

// Process applies one protocol message. It returns a snapshot to publish
// when a checksum verification succeeds, and an error fatal to the
// subscription on any integrity failure.
func (s *BookSynchronizer) Process(msg *BookMessage) (*BookSnapshot, error) {
	switch msg.Type {
	case BookMessage_Control:
		return nil, nil

	case BookMessage_Checksum:
		local := s.book.Checksum()
		if local != msg.Checksum {
			return nil, fmt.Errorf("%w: server=%d local=%d", ErrChecksumMismatch, msg.Checksum, local)
		}
		if config.DebugMode {
			logger.Printf("checksum %d verified", msg.Checksum)
		}
		return s.book.Projection(), nil

	case BookMessage_Data:
		if s.msgCount == 0 {
			s.book.ApplyFirstBatch(msg.Levels)
			s.msgCount++
			return nil, nil
		}

		s.msgCount++
		for _, lvl := range msg.Levels {
			if err := s.book.ApplyDelta(lvl); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	return nil, nil
}

// MessageCount reports how many data messages (batch or delta) were applied.
func (s *BookSynchronizer) MessageCount() int {
	return s.msgCount
}
