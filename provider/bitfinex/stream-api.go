package bitfinex

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/finbridge/go-bitfinex-bridge/domain"
)

// StreamAPI exposes the live book stream, converting raw venue frames into
// classified protocol messages.
type StreamAPI struct {
	client *StreamClient
}

func NewStreamAPI(client *StreamClient) *StreamAPI {
	return &StreamAPI{client: client}
}

func (s *StreamAPI) BookStream(symbol *domain.MarketSymbol, depth int) (*domain.Subscription[*domain.BookMessage], error) {
	if depth <= 1 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidDepth, depth)
	}

	raw, err := s.client.Subscribe(symbol, depth)
	if err != nil {
		return nil, err
	}

	out := make(chan *domain.BookMessage)
	quit := make(chan struct{})
	go forwardBookFrames(raw, out, quit)

	var once sync.Once
	return &domain.Subscription[*domain.BookMessage]{
		Stream: out,
		Unsubscribe: func() {
			// Closing quit releases a forwarder parked on a send after the
			// consumer is gone.
			once.Do(func() { close(quit) })
			raw.Unsubscribe()
		},
		Topic: raw.Topic,
	}, nil
}

// forwardBookFrames decodes raw channel frames onto out until the raw
// stream closes or quit is closed.
func forwardBookFrames(raw *domain.Subscription[[]byte], out chan *domain.BookMessage, quit chan struct{}) {
	defer close(out)

	for {
		select {
		case <-quit:
			return
		case frame, ok := <-raw.Stream:
			if !ok {
				return
			}

			msg, err := parseBookFrame(frame)
			if err != nil {
				// Malformed payloads fail the message, not the stream.
				logger.Printf("skipping frame on %s: %s", raw.Topic, err)
				continue
			}

			select {
			case out <- msg:
			case <-quit:
				return
			}
		}
	}
}

// parseBookFrame classifies one channel frame: heartbeats are control
// messages, "cs" frames carry the server checksum, nested arrays are the
// first batch and a flat triple is a single delta.
func parseBookFrame(frame []byte) (*domain.BookMessage, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(frame, &arr); err != nil {
		return nil, fmt.Errorf("not an array frame: %w", err)
	}
	if len(arr) < 2 {
		return &domain.BookMessage{Type: domain.BookMessage_Control}, nil
	}

	var tag string
	if err := json.Unmarshal(arr[1], &tag); err == nil {
		switch tag {
		case "hb":
			return &domain.BookMessage{Type: domain.BookMessage_Control}, nil
		case "cs":
			if len(arr) < 3 {
				return nil, fmt.Errorf("checksum frame without a value")
			}
			var value int64
			if err := json.Unmarshal(arr[2], &value); err != nil {
				return nil, fmt.Errorf("unreadable checksum value: %w", err)
			}
			return &domain.BookMessage{
				Type:     domain.BookMessage_Checksum,
				Checksum: int32(value),
			}, nil
		default:
			return &domain.BookMessage{Type: domain.BookMessage_Control}, nil
		}
	}

	var batch [][]float64
	if err := json.Unmarshal(arr[1], &batch); err == nil {
		levels := make([]domain.RawLevel, 0, len(batch))
		for _, triple := range batch {
			lvl, err := rawLevelFromTriple(triple)
			if err != nil {
				return nil, err
			}
			levels = append(levels, lvl)
		}
		return &domain.BookMessage{Type: domain.BookMessage_Data, Levels: levels}, nil
	}

	var triple []float64
	if err := json.Unmarshal(arr[1], &triple); err == nil {
		lvl, err := rawLevelFromTriple(triple)
		if err != nil {
			return nil, err
		}
		return &domain.BookMessage{Type: domain.BookMessage_Data, Levels: []domain.RawLevel{lvl}}, nil
	}

	return nil, fmt.Errorf("unrecognized book frame: %s", string(frame))
}

func rawLevelFromTriple(triple []float64) (domain.RawLevel, error) {
	if len(triple) < 3 {
		return domain.RawLevel{}, fmt.Errorf("price level with %d fields, want 3", len(triple))
	}
	return domain.RawLevel{
		Price:  triple[0],
		Count:  int(triple[1]),
		Amount: triple[2],
	}, nil
}
