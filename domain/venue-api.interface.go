package domain

// Subscription is a live stream with single-consumer semantics: exactly one
// goroutine ranges over Stream, and Unsubscribe releases the per-stream
// state on the producer side (the channel is closed by the producer).
type Subscription[T any] struct {
	Stream      chan T
	Unsubscribe func()
	Topic       string
}

// VenueSyncAPI is the one-shot side of the venue boundary.
type VenueSyncAPI interface {
	OrderBookSnapshot(symbol *MarketSymbol, depth int) (*BookSnapshot, error)
}

// VenueStreamAPI opens the live book stream for a (symbol, depth).
// Implementations must reject depth 1 (broken on the venue side).
type VenueStreamAPI interface {
	BookStream(symbol *MarketSymbol, depth int) (*Subscription[*BookMessage], error)
}
