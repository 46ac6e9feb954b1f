// Package indicators provides streaming technical indicators over closed
// candles. Replay uses them to build the snapshot attached to each signal
// and candle update.
package indicators

import "github.com/rustyeddy/papertrader/market"

// Indicator computes a single streaming value from candles.
// It is deterministic and safe to use in live and replay sessions.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)" or "RSI(14)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next *closed* candle and updates internal state.
	Update(c market.Candle)

	// Ready reports whether Value() is meaningful (warmup completed).
	Ready() bool

	// Value returns the current value, or 0 before Ready.
	Value() float64
}
