// Package feed supplies market data to the trading engine: latest prices,
// rolling per-symbol statistics, and threshold-based alerts. The engine only
// ever consumes the read-only MarketData surface; event delivery runs on the
// feed's own goroutines.
package feed

import (
	"context"

	"crypto-sim-trader/internal/models"
)

// MarketData is the read-only surface the trading engine consumes.
type MarketData interface {
	// Start connects the underlying source and begins ingesting events.
	// It fails fast if the source cannot be reached.
	Start(ctx context.Context) error

	// Stop disconnects the source. Safe to call more than once.
	Stop()

	// LatestPrice returns the last trade price for a symbol, if any has
	// been observed.
	LatestPrice(symbol string) (float64, bool)

	// Snapshot returns the symbol's current price and derived statistics.
	Snapshot(symbol string) (models.Snapshot, bool)

	// SubscribeAlerts registers a callback for market alerts. Callbacks
	// are invoked from the feed's delivery goroutine and must not block.
	SubscribeAlerts(fn func(models.Alert))
}

// Sink receives raw market events from a Source.
type Sink interface {
	RecordTrade(symbol string, price, size float64)
	RecordBar(symbol string, open, high, low, close, volume float64)
}

// Source delivers raw market events into a Sink. Implementations own their
// delivery goroutines; Start must fail fast when the initial connection
// cannot be established.
type Source interface {
	Start(ctx context.Context, sink Sink) error
	Stop()
}
