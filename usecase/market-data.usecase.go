package usecase

import (
	"log"
	"os"
	"sync"
	"sync/atomic"

	"github.com/finbridge/go-bitfinex-bridge/config"
	"github.com/finbridge/go-bitfinex-bridge/domain"
)

var logger = log.New(os.Stdout, "[market-data] ", log.LstdFlags)

// bookKey identifies one cached live book. A composite key, so pair and
// depth can never bleed into each other.
type bookKey struct {
	Symbol string
	Depth  int
}

type cacheEntry struct {
	// Swapped wholesale on every verified emission; readers always see a
	// complete snapshot, old or new.
	snapshot atomic.Pointer[domain.BookSnapshot]

	// Closed once the initial snapshot (or its error) is in place, so a
	// reader that lost the claim race can wait instead of double-fetching.
	ready chan struct{}
	err   error

	maintainer *domain.OrderbookMaintainer
}

type OperationCostResult struct {
	FilledQty      float64  `json:"filled_qty"`
	EffectivePrice float64  `json:"effective_price"`
	Symbol         string   `json:"symbol"`
	RemainingQty   *float64 `json:"remaining_qty,omitempty"`
}

// MarketDataUseCase serves book reads from a process-lifetime cache kept
// fresh by at most one live subscription per (symbol, depth), and cost
// estimates computed against a deep book fetch.
type MarketDataUseCase struct {
	syncAPI   domain.VenueSyncAPI
	streamAPI domain.VenueStreamAPI

	estimatorDepth int

	mu    sync.Mutex
	books map[bookKey]*cacheEntry
}

func NewMarketDataUseCase(syncAPI domain.VenueSyncAPI, streamAPI domain.VenueStreamAPI, estimatorDepth int) *MarketDataUseCase {
	return &MarketDataUseCase{
		syncAPI:        syncAPI,
		streamAPI:      streamAPI,
		estimatorDepth: estimatorDepth,
		books:          make(map[bookKey]*cacheEntry),
	}
}

// GetOrderBook returns the latest book for (symbol, depth). A first read
// claims the key atomically, fetches a one-shot snapshot, returns it
// immediately and starts the live subscription in the background; every
// verified emission replaces the cached snapshot for that exact key.
func (uc *MarketDataUseCase) GetOrderBook(symbol *domain.MarketSymbol, depth int) (*domain.BookSnapshot, error) {
	if depth <= 1 {
		return nil, domain.ErrInvalidDepth
	}
	key := bookKey{Symbol: symbol.String(), Depth: depth}

	uc.mu.Lock()
	entry, ok := uc.books[key]
	if ok {
		uc.mu.Unlock()
		<-entry.ready
		if entry.err != nil {
			return nil, entry.err
		}
		return entry.snapshot.Load(), nil
	}

	entry = &cacheEntry{ready: make(chan struct{})}
	uc.books[key] = entry
	uc.mu.Unlock()

	snapshot, err := uc.syncAPI.OrderBookSnapshot(symbol, depth)
	if err != nil {
		// No negative caching: release the claim so a later read retries.
		entry.err = err
		close(entry.ready)
		uc.evict(key, entry)
		return nil, err
	}

	entry.snapshot.Store(snapshot)
	close(entry.ready)

	go uc.subscribeBookUpdates(key, entry, symbol, depth)
	return snapshot, nil
}

// MarketOperationCost estimates the fill of a quantity-bounded order
// against a deep book: asks for a buy, bids for a sell.
func (uc *MarketDataUseCase) MarketOperationCost(symbol *domain.MarketSymbol, side domain.OrderSide, amount float64) (*OperationCostResult, error) {
	book, err := uc.GetOrderBook(symbol, uc.estimatorDepth)
	if err != nil {
		return nil, err
	}

	filled, notional, err := domain.FillByQuantity(book.LevelsFor(side), amount)
	if err != nil {
		return nil, err
	}

	remaining := amount - filled
	return &OperationCostResult{
		FilledQty:      filled,
		EffectivePrice: notional,
		Symbol:         symbol.String(),
		RemainingQty:   &remaining,
	}, nil
}

// LimitOperationCost estimates the fill of a budget-bounded order. The
// spend never exceeds the limit; a thin book yields whatever it held.
func (uc *MarketDataUseCase) LimitOperationCost(symbol *domain.MarketSymbol, side domain.OrderSide, limit float64) (*OperationCostResult, error) {
	book, err := uc.GetOrderBook(symbol, uc.estimatorDepth)
	if err != nil {
		return nil, err
	}

	filled, notional, err := domain.FillByBudget(book.LevelsFor(side), limit)
	if err != nil {
		return nil, err
	}

	return &OperationCostResult{
		FilledQty:      filled,
		EffectivePrice: notional,
		Symbol:         symbol.String(),
	}, nil
}

// Close stops every live subscription.
func (uc *MarketDataUseCase) Close() {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	for _, entry := range uc.books {
		if entry.maintainer != nil {
			entry.maintainer.Stop()
		}
	}
}

func (uc *MarketDataUseCase) subscribeBookUpdates(key bookKey, entry *cacheEntry, symbol *domain.MarketSymbol, depth int) {
	maintainer := domain.NewOrderbookMaintainer(uc.streamAPI, symbol, depth)

	sub, err := maintainer.Run()
	if err != nil {
		// The snapshot was already served; just release the claim so the
		// next read can retry the subscription.
		logger.Printf("subscription setup failed for %s depth=%d: %s", symbol.String(), depth, err)
		uc.evict(key, entry)
		return
	}

	uc.mu.Lock()
	entry.maintainer = maintainer
	uc.mu.Unlock()

	if config.DebugMode {
		logger.Printf("live subscription open for %s depth=%d", symbol.String(), depth)
	}

	for snapshot := range sub.Stream {
		entry.snapshot.Store(snapshot)
	}

	// The subscription died (or was stopped): evict so the next read
	// starts over from a fresh snapshot.
	uc.evict(key, entry)
}

func (uc *MarketDataUseCase) evict(key bookKey, entry *cacheEntry) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.books[key] == entry {
		delete(uc.books, key)
	}
}
