package risk

import (
	"fmt"
	"math"

	"github.com/rustyeddy/papertrader/trade"
)

// NoTradeConfig drives the composite no-trade filter. Each filter is an
// independent yes/no; the signal is refused when at least Threshold fire.
type NoTradeConfig struct {
	Enabled        bool    `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Threshold      int     `json:"threshold" yaml:"threshold" mapstructure:"threshold"`
	ADXMin         float64 `json:"adx_min" yaml:"adx_min" mapstructure:"adx_min"`
	EMAFlatATR     float64 `json:"ema_flat_atr" yaml:"ema_flat_atr" mapstructure:"ema_flat_atr"`
	RSILow         float64 `json:"rsi_low" yaml:"rsi_low" mapstructure:"rsi_low"`
	RSIHigh        float64 `json:"rsi_high" yaml:"rsi_high" mapstructure:"rsi_high"`
	MinATRPct      float64 `json:"min_atr_pct" yaml:"min_atr_pct" mapstructure:"min_atr_pct"`
	NarrowRangeATR float64 `json:"narrow_range_atr" yaml:"narrow_range_atr" mapstructure:"narrow_range_atr"`
}

func DefaultNoTradeConfig() NoTradeConfig {
	return NoTradeConfig{
		Enabled:        false,
		Threshold:      3,
		ADXMin:         20,
		EMAFlatATR:     0.2,
		RSILow:         45,
		RSIHigh:        55,
		MinATRPct:      0.001,
		NarrowRangeATR: 1.5,
	}
}

func (c NoTradeConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Threshold < 1 || c.Threshold > len(noTradeFilters) {
		return fmt.Errorf("risk: no_trade threshold must be between 1 and %d", len(noTradeFilters))
	}
	if c.RSILow > c.RSIHigh {
		return fmt.Errorf("risk: no_trade rsi_low %.1f above rsi_high %.1f", c.RSILow, c.RSIHigh)
	}
	return nil
}

type NoTradeInput struct {
	Signal    trade.Signal
	InSession bool
}

// NoTradeFilter is one named condition of the composite filter.
type NoTradeFilter struct {
	Name  string
	Fires func(NoTradeConfig, NoTradeInput) bool
}

var noTradeFilters = []NoTradeFilter{
	{"choppy_adx", func(c NoTradeConfig, in NoTradeInput) bool {
		adx := in.Signal.Indicators.ADX
		return adx > 0 && adx < c.ADXMin
	}},
	{"flat_emas", func(c NoTradeConfig, in NoTradeInput) bool {
		ind := in.Signal.Indicators
		return ind.HasATR() && ind.EMA20 > 0 && ind.EMA50 > 0 &&
			math.Abs(ind.EMA20-ind.EMA50) < c.EMAFlatATR*ind.ATR
	}},
	{"neutral_rsi", func(c NoTradeConfig, in NoTradeInput) bool {
		rsi := in.Signal.Indicators.RSI
		return rsi > 0 && rsi >= c.RSILow && rsi <= c.RSIHigh
	}},
	{"low_volatility", func(c NoTradeConfig, in NoTradeInput) bool {
		ind := in.Signal.Indicators
		return ind.HasATR() && in.Signal.EntryPrice > 0 && ind.ATR/in.Signal.EntryPrice < c.MinATRPct
	}},
	{"narrow_range", func(c NoTradeConfig, in NoTradeInput) bool {
		ind := in.Signal.Indicators
		return ind.HasATR() && ind.SwingHigh > ind.SwingLow && ind.SwingLow > 0 &&
			ind.SwingHigh-ind.SwingLow < c.NarrowRangeATR*ind.ATR
	}},
	{"outside_session", func(_ NoTradeConfig, in NoTradeInput) bool {
		return !in.InSession
	}},
}

// NoTradeFilters lists the filter names in evaluation order.
func NoTradeFilters() []string {
	names := make([]string, len(noTradeFilters))
	for i, f := range noTradeFilters {
		names[i] = f.Name
	}
	return names
}

type NoTradeResult struct {
	Score   int      `json:"score"`
	Fired   []string `json:"fired,omitempty"`
	Blocked bool     `json:"blocked"`
}

func EvaluateNoTrade(c NoTradeConfig, in NoTradeInput) NoTradeResult {
	var res NoTradeResult
	for _, f := range noTradeFilters {
		if f.Fires(c, in) {
			res.Score++
			res.Fired = append(res.Fired, f.Name)
		}
	}
	res.Blocked = c.Enabled && res.Score >= c.Threshold
	return res
}
