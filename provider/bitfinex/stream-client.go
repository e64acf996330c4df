package bitfinex

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/finbridge/go-bitfinex-bridge/domain"
)

var logger = log.New(os.Stdout, "[bitfinex] ", log.LstdFlags)

var ErrTimeout = errors.New("timeout error")

// Flag asking the venue to send periodic "cs" checksum frames on every
// book channel of this connection.
const checksumFlag = 131072

const subscribeTimeout = 10 * time.Second

type eventMessage struct {
	Event   string `json:"event"`
	Channel string `json:"channel"`
	ChanID  int64  `json:"chanId"`
	Symbol  string `json:"symbol"`
	Len     string `json:"len"`
	Code    int    `json:"code"`
	Msg     string `json:"msg"`
}

type subscribeRequest struct {
	Event   string `json:"event"`
	Channel string `json:"channel"`
	Symbol  string `json:"symbol"`
	Prec    string `json:"prec"`
	Len     string `json:"len"`
}

type subscriptionEntry struct {
	ch    chan []byte
	topic string
}

type pendingEntry struct {
	symbol string
	result chan subscribeOutcome
}

type subscribeOutcome struct {
	chanID int64
	err    error
}

// StreamClient multiplexes one websocket connection: the venue assigns a
// channel id per subscribed book and every data frame starts with it.
type StreamClient struct {
	endpoint string

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu            sync.Mutex
	pending       map[string]*pendingEntry
	subscriptions map[int64]*subscriptionEntry
}

func NewStreamClient(endpoint string) *StreamClient {
	return &StreamClient{
		endpoint:      endpoint,
		pending:       make(map[string]*pendingEntry),
		subscriptions: make(map[int64]*subscriptionEntry),
	}
}

func (c *StreamClient) Connect() error {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 5 * time.Second,
	}

	conn, _, err := dialer.Dial(c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", c.endpoint, err)
	}
	c.conn = conn

	if err := c.writeJSON(map[string]interface{}{
		"event": "conf",
		"flags": checksumFlag,
	}); err != nil {
		return fmt.Errorf("failed to enable checksum frames: %w", err)
	}

	go c.read()
	return nil
}

// Subscribe opens a raw book channel for (symbol, depth) and returns the
// stream of frames the venue routes to it.
func (c *StreamClient) Subscribe(symbol *domain.MarketSymbol, depth int) (*domain.Subscription[[]byte], error) {
	if c.conn == nil {
		return nil, errors.New("connection is not established")
	}

	topic := fmt.Sprintf("%s:%d", symbol.Ticker(), depth)
	waiter := &pendingEntry{
		symbol: symbol.Ticker(),
		result: make(chan subscribeOutcome, 1),
	}

	c.mu.Lock()
	if _, ok := c.pending[topic]; ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("subscription already in flight for %s", topic)
	}
	c.pending[topic] = waiter
	c.mu.Unlock()

	logger.Println("subscribing to", topic)
	err := c.writeJSON(subscribeRequest{
		Event:   "subscribe",
		Channel: "book",
		Symbol:  symbol.Ticker(),
		Prec:    "P0",
		Len:     strconv.Itoa(depth),
	})
	if err != nil {
		c.dropPending(topic)
		return nil, fmt.Errorf("failed to send subscribe msg for topic=%s: %w", topic, err)
	}

	select {
	case outcome := <-waiter.result:
		c.dropPending(topic)
		if outcome.err != nil {
			return nil, outcome.err
		}

		ch := make(chan []byte, 64)
		c.mu.Lock()
		c.subscriptions[outcome.chanID] = &subscriptionEntry{ch: ch, topic: topic}
		c.mu.Unlock()

		return &domain.Subscription[[]byte]{
			Stream: ch,
			Topic:  topic,
			Unsubscribe: func() {
				c.unsubscribe(outcome.chanID)
			},
		}, nil

	case <-time.After(subscribeTimeout):
		c.dropPending(topic)
		return nil, ErrTimeout
	}
}

func (c *StreamClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *StreamClient) unsubscribe(chanID int64) {
	c.mu.Lock()
	entry, ok := c.subscriptions[chanID]
	if ok {
		delete(c.subscriptions, chanID)
		close(entry.ch)
	}
	c.mu.Unlock()

	if !ok {
		return
	}

	logger.Println("unsubscribing from", entry.topic)
	err := c.writeJSON(map[string]interface{}{
		"event":  "unsubscribe",
		"chanId": chanID,
	})
	if err != nil {
		logger.Printf("failed to send unsubscribe for chanId=%d: %s", chanID, err)
	}
}

func (c *StreamClient) read() {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			logger.Printf("closing read loop: %s", err)
			c.closeAll()
			return
		}

		if len(msg) == 0 {
			continue
		}

		if msg[0] == '{' {
			c.handleEvent(msg)
			continue
		}

		c.routeFrame(msg)
	}
}

func (c *StreamClient) handleEvent(msg []byte) {
	var event eventMessage
	if err := json.Unmarshal(msg, &event); err != nil {
		logger.Printf("skipping malformed event: %s", err)
		return
	}

	switch event.Event {
	case "subscribed":
		c.resolvePending(event, subscribeOutcome{chanID: event.ChanID})
	case "error":
		c.resolvePending(event, subscribeOutcome{
			err: fmt.Errorf("subscribe rejected: %s (code %d)", event.Msg, event.Code),
		})
	case "info", "conf":
		// connection lifecycle events, nothing to route
	case "unsubscribed":
	default:
		logger.Printf("unhandled event %q", event.Event)
	}
}

// resolvePending matches an ack to its waiter: by exact topic when the
// event echoes len, otherwise by symbol (error events may omit len).
func (c *StreamClient) resolvePending(event eventMessage, outcome subscribeOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if event.Len != "" {
		topic := fmt.Sprintf("%s:%s", event.Symbol, event.Len)
		if waiter, ok := c.pending[topic]; ok {
			waiter.result <- outcome
			return
		}
	}

	for _, waiter := range c.pending {
		if waiter.symbol == event.Symbol {
			waiter.result <- outcome
			return
		}
	}
}

func (c *StreamClient) routeFrame(msg []byte) {
	var arr []json.RawMessage
	if err := json.Unmarshal(msg, &arr); err != nil || len(arr) == 0 {
		logger.Printf("skipping unroutable frame: %s", string(msg))
		return
	}

	var chanID int64
	if err := json.Unmarshal(arr[0], &chanID); err != nil {
		logger.Printf("skipping frame without channel id: %s", string(msg))
		return
	}

	c.mu.Lock()
	entry, ok := c.subscriptions[chanID]
	if ok {
		select {
		case entry.ch <- msg:
		default:
			// A stalled subscriber desyncs its own book; the checksum will
			// catch it and the maintainer resubscribes.
			logger.Printf("dropping frame for %s: subscriber not keeping up", entry.topic)
		}
	}
	c.mu.Unlock()
}

func (c *StreamClient) dropPending(topic string) {
	c.mu.Lock()
	delete(c.pending, topic)
	c.mu.Unlock()
}

func (c *StreamClient) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for chanID, entry := range c.subscriptions {
		close(entry.ch)
		delete(c.subscriptions, chanID)
	}
}

func (c *StreamClient) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}
