package domain

import "errors"

var (
	// Fatal to the subscription: the local book no longer matches the venue.
	ErrChecksumMismatch = errors.New("order book checksum mismatch")
	// A delta asked to delete a price level the local book never had.
	ErrLevelNotFound = errors.New("price level not found for deletion")
	// Book data that cannot be priced: zero/negative or non-finite numbers.
	ErrCorruptBookData = errors.New("corrupt order book data")
	// Depth 1 live subscriptions are broken on the venue side.
	ErrInvalidDepth = errors.New("depth must be at least 2 for a live order book")
)
