package domain

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/jpillora/backoff"

	"github.com/finbridge/go-bitfinex-bridge/config"
	"github.com/finbridge/go-bitfinex-bridge/helpers"
	promclient "github.com/finbridge/go-bitfinex-bridge/infrastructure/prometheus"
)

var logger = log.New(os.Stdout, "[orderbook-maintainer] ", log.LstdFlags)

const queuePollInterval = 100 * time.Millisecond

// OrderbookMaintainer owns one live book subscription: it buffers inbound
// protocol messages so they are applied strictly in arrival order, feeds
// them through a BookSynchronizer and republishes every verified snapshot.
// On an integrity failure it drops the stream and resubscribes; the fresh
// first batch rebuilds the book from scratch.
type OrderbookMaintainer struct {
	streamAPI VenueStreamAPI
	symbol    *MarketSymbol
	depth     int

	sync          *BookSynchronizer
	sub           *Subscription[*BookMessage]
	queue         deque.Deque[*BookMessage]
	mu            sync.Mutex
	collectorStop chan struct{}
	collectorDone chan struct{}

	out      chan *BookSnapshot
	done     chan struct{}
	stopOnce sync.Once

	// Integrity failures tolerated before the subscription is abandoned.
	ResubscribeLimit int
	RetryMin         time.Duration
	RetryMax         time.Duration
}

func NewOrderbookMaintainer(streamAPI VenueStreamAPI, symbol *MarketSymbol, depth int) *OrderbookMaintainer {
	return &OrderbookMaintainer{
		streamAPI: streamAPI,
		symbol:    symbol,
		depth:     depth,

		queue: deque.Deque[*BookMessage]{},
		out:   make(chan *BookSnapshot),
		done:  make(chan struct{}),

		ResubscribeLimit: 5,
		RetryMin:         250 * time.Millisecond,
		RetryMax:         30 * time.Second,
	}
}

// Run opens the venue stream and returns a subscription publishing each
// verified book snapshot. The returned stream is closed when the
// maintainer stops or abandons the subscription.
func (m *OrderbookMaintainer) Run() (*Subscription[*BookSnapshot], error) {
	sub, err := m.streamAPI.BookStream(m.symbol, m.depth)
	if err != nil {
		return nil, err
	}

	m.sub = sub
	m.sync = NewBookSynchronizer(m.symbol)
	m.collectorStop = make(chan struct{})
	m.collectorDone = make(chan struct{})

	promclient.OpenOrderBooksGauge.Inc()
	go m.collector(sub, m.collectorStop, m.collectorDone)
	go m.queueReader()

	return &Subscription[*BookSnapshot]{
		Stream:      m.out,
		Unsubscribe: m.Stop,
		Topic:       sub.Topic,
	}, nil
}

func (m *OrderbookMaintainer) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
	})
}

// collector drains the venue stream into the queue. A nil sentinel marks
// an unexpectedly closed stream so the reader can resubscribe. done is
// closed on exit so teardown can wait for the last in-flight push.
func (m *OrderbookMaintainer) collector(sub *Subscription[*BookMessage], stop, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		case msg, ok := <-sub.Stream:
			if !ok {
				msg = nil
			}
			m.mu.Lock()
			m.queue.PushBack(msg)
			m.mu.Unlock()
			if !ok {
				return
			}
		}
	}
}

func (m *OrderbookMaintainer) queueReader() {
	defer close(m.out)
	defer promclient.OpenOrderBooksGauge.Dec()

	bo := &backoff.Backoff{
		Min:    m.RetryMin,
		Max:    m.RetryMax,
		Jitter: true,
	}
	failures := 0

	for {
		select {
		case <-m.done:
			m.teardown()
			return
		default:
		}

		m.mu.Lock()
		if m.queue.Len() == 0 {
			m.mu.Unlock()
			time.Sleep(queuePollInterval)
			continue
		}
		msg := m.queue.PopFront()
		m.mu.Unlock()

		var snapshot *BookSnapshot
		var err error
		if msg == nil {
			err = fmt.Errorf("venue stream closed for %s", m.symbol.String())
		} else {
			snapshot, err = m.sync.Process(msg)
		}

		if err != nil {
			promclient.BookIntegrityFailures.Inc()
			logger.Printf("dropping stream for %s: %s", m.symbol.String(), err)

			failures++
			if failures > m.ResubscribeLimit {
				logger.Printf("abandoning subscription for %s after %d failures", m.symbol.String(), failures)
				m.teardown()
				return
			}
			if rerr := m.resubscribe(bo); rerr != nil {
				logger.Printf("resubscribe failed for %s: %s", m.symbol.String(), rerr)
				return
			}
			continue
		}

		if snapshot == nil {
			continue
		}

		bo.Reset()
		promclient.VerifiedBookUpdates.Inc()
		if config.DebugMode {
			logger.Printf("publishing verified book for %s: %s", m.symbol.String(), helpers.ToJsonString(snapshot))
		}

		select {
		case m.out <- snapshot:
		case <-m.done:
			m.teardown()
			return
		}
	}
}

// resubscribe tears the current stream down and opens a new one after a
// jittered backoff. The synchronizer restarts so the fresh first batch
// repopulates the book.
func (m *OrderbookMaintainer) resubscribe(bo *backoff.Backoff) error {
	m.teardown()

	m.mu.Lock()
	m.queue.Clear()
	m.mu.Unlock()

	select {
	case <-time.After(bo.Duration()):
	case <-m.done:
		return fmt.Errorf("maintainer stopped")
	}

	sub, err := m.streamAPI.BookStream(m.symbol, m.depth)
	if err != nil {
		return err
	}

	m.sub = sub
	m.sync = NewBookSynchronizer(m.symbol)
	m.collectorStop = make(chan struct{})
	m.collectorDone = make(chan struct{})
	go m.collector(sub, m.collectorStop, m.collectorDone)
	return nil
}

// teardown stops the collector and waits for it to exit, so nothing from
// the dead stream can land in the queue once teardown returns.
func (m *OrderbookMaintainer) teardown() {
	close(m.collectorStop)
	m.sub.Unsubscribe()
	<-m.collectorDone
}
