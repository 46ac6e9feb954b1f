package market

import "math"

// Indicators is the per-candle snapshot supplied by the indicator provider.
// ADX is optional; zero means not computed.
type Indicators struct {
	ATR       float64 `json:"atr"`
	RSI       float64 `json:"rsi"`
	EMA20     float64 `json:"ema20"`
	EMA50     float64 `json:"ema50"`
	SwingHigh float64 `json:"swing_high"`
	SwingLow  float64 `json:"swing_low"`
	ADX       float64 `json:"adx,omitempty"`
}

// HasATR reports whether ATR is usable for trailing.
func (in Indicators) HasATR() bool {
	return in.ATR > 0 && !math.IsNaN(in.ATR) && !math.IsInf(in.ATR, 0)
}
