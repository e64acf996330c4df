package domain

import (
	"fmt"
	"hash/crc32"
	"math"
	"sort"
	"strings"

	"github.com/finbridge/go-bitfinex-bridge/helpers"
)

// Number of best levels per side sampled into the checksum payload.
const checksumDepth = 25

type OrderSide string

const (
	OrderSide_Buy  OrderSide = "buy"
	OrderSide_Sell OrderSide = "sell"
)

type BookMessageType int

const (
	BookMessage_Control BookMessageType = iota
	BookMessage_Checksum
	BookMessage_Data
)

// BookMessage is a classified protocol message from the venue stream.
// Data messages carry one level (delta) or many (first batch).
type BookMessage struct {
	Type     BookMessageType
	Checksum int32
	Levels   []RawLevel
}

// RawLevel is the wire triple. Amount is signed: >= 0 means bid, < 0 ask.
type RawLevel struct {
	Price  float64
	Count  int
	Amount float64
}

func (l RawLevel) IsBid() bool {
	return l.Amount >= 0
}

// PriceLevel is a stored book level. Amount is always absolute.
type PriceLevel struct {
	Price  float64 `json:"price"`
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// BookSnapshot is the immutable sorted projection of an order book. It is
// the only book shape that crosses goroutine boundaries: bids descending,
// asks ascending by price.
type BookSnapshot struct {
	Symbol string       `json:"symbol"`
	Bids   []PriceLevel `json:"bids"`
	Asks   []PriceLevel `json:"asks"`
}

// LevelsFor selects the side a taker order consumes: asks for a buy,
// bids for a sell.
func (s *BookSnapshot) LevelsFor(side OrderSide) []PriceLevel {
	if side == OrderSide_Buy {
		return s.Asks
	}
	return s.Bids
}

// OrderBook is the mutable per-price book a single synchronizer owns.
// It is not safe for concurrent use; publication happens via Projection.
type OrderBook struct {
	symbol *MarketSymbol

	bids map[float64]*PriceLevel
	asks map[float64]*PriceLevel

	// Sorted price snapshots, bids descending and asks ascending.
	// The checksum samples levels in exactly this order.
	bidPrices []float64
	askPrices []float64
}

func NewOrderBook(symbol *MarketSymbol) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		bids:   make(map[float64]*PriceLevel),
		asks:   make(map[float64]*PriceLevel),
	}
}

// ApplyFirstBatch populates the book from the subscription's initial level
// array. Levels are classified by amount sign; no deletion logic applies.
func (ob *OrderBook) ApplyFirstBatch(levels []RawLevel) {
	for _, lvl := range levels {
		ob.store(lvl)
	}
	ob.resortPrices()
}

// ApplyDelta applies a single incremental update. Count zero deletes the
// level from the side implied by the amount sign; a missing level there is
// a desync and fatal to the subscription. The venue signals the side of a
// deletion with amount 1 or -1; a zero amount names no side and is skipped.
func (ob *OrderBook) ApplyDelta(lvl RawLevel) error {
	if lvl.Count == 0 {
		if lvl.Amount == 0 {
			return nil
		}
		side := ob.sideOf(lvl)
		if _, ok := side[lvl.Price]; !ok {
			return fmt.Errorf("%w: %s price=%s", ErrLevelNotFound, ob.symbol.String(), helpers.FormatFloat(lvl.Price))
		}
		delete(side, lvl.Price)
	} else {
		ob.store(lvl)
	}

	ob.resortPrices()
	return nil
}

func (ob *OrderBook) store(lvl RawLevel) {
	ob.sideOf(lvl)[lvl.Price] = &PriceLevel{
		Price:  lvl.Price,
		Count:  lvl.Count,
		Amount: math.Abs(lvl.Amount),
	}
}

func (ob *OrderBook) sideOf(lvl RawLevel) map[float64]*PriceLevel {
	if lvl.IsBid() {
		return ob.bids
	}
	return ob.asks
}

func (ob *OrderBook) resortPrices() {
	ob.bidPrices = sortedPrices(ob.bids, func(a, b float64) bool { return a > b })
	ob.askPrices = sortedPrices(ob.asks, func(a, b float64) bool { return a < b })
}

func sortedPrices(side map[float64]*PriceLevel, less func(a, b float64) bool) []float64 {
	prices := make([]float64, 0, len(side))
	for price := range side {
		prices = append(prices, price)
	}
	sort.Slice(prices, func(i, j int) bool {
		return less(prices[i], prices[j])
	})
	return prices
}

// ChecksumInput builds the venue's checksum payload: up to 25 best levels
// per side, bid and ask interleaved at each depth index, price and amount
// with the ask amount negated, joined by ':'.
func (ob *OrderBook) ChecksumInput() string {
	parts := make([]string, 0, checksumDepth*4)

	for i := 0; i < checksumDepth; i++ {
		if i < len(ob.bidPrices) {
			pp := ob.bids[ob.bidPrices[i]]
			parts = append(parts, helpers.FormatFloat(pp.Price), helpers.FormatFloat(pp.Amount))
		}
		if i < len(ob.askPrices) {
			pp := ob.asks[ob.askPrices[i]]
			parts = append(parts, helpers.FormatFloat(pp.Price), helpers.FormatFloat(-pp.Amount))
		}
	}

	return strings.Join(parts, ":")
}

// Checksum is the signed CRC-32 the venue expects over ChecksumInput.
func (ob *OrderBook) Checksum() int32 {
	return int32(crc32.ChecksumIEEE([]byte(ob.ChecksumInput())))
}

// Projection materializes an immutable sorted snapshot of the book.
func (ob *OrderBook) Projection() *BookSnapshot {
	bids := make([]PriceLevel, 0, len(ob.bidPrices))
	for _, price := range ob.bidPrices {
		bids = append(bids, *ob.bids[price])
	}

	asks := make([]PriceLevel, 0, len(ob.askPrices))
	for _, price := range ob.askPrices {
		asks = append(asks, *ob.asks[price])
	}

	return &BookSnapshot{
		Symbol: ob.symbol.String(),
		Bids:   bids,
		Asks:   asks,
	}
}

// SnapshotFromRawLevels builds a sorted snapshot straight from a one-shot
// REST payload, classifying levels the same way the first batch does.
func SnapshotFromRawLevels(symbol *MarketSymbol, levels []RawLevel) *BookSnapshot {
	ob := NewOrderBook(symbol)
	ob.ApplyFirstBatch(levels)
	return ob.Projection()
}
