// Package strategy holds the built-in signal generators replay can run
// when no signal file is given. A Strategy sees one instrument's closed
// candles with their indicator snapshot and may emit a signal per candle.
package strategy

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/trade"
)

type Strategy interface {
	Name() string
	OnCandle(c market.Candle, ind market.Indicators) (trade.Signal, bool)
}

// Params configures the built-in strategies.
type Params struct {
	// StopATR places the initial stop this many ATRs from entry.
	StopATR float64 `json:"stop_atr" yaml:"stop_atr" mapstructure:"stop_atr"`
	// RR sets the target as a multiple of the initial risk; 0 means no target.
	RR float64 `json:"rr" yaml:"rr" mapstructure:"rr"`
	// Options emits CALL/PUT instead of BUY/SELL.
	Options bool `json:"options" yaml:"options" mapstructure:"options"`
	// ADXMin gates ema-cross-adx: crosses below this trend strength are skipped.
	ADXMin float64 `json:"adx_min" yaml:"adx_min" mapstructure:"adx_min"`
	// Style picks the trend-momentum stop distance: 1.2 ATRs intraday,
	// 2 ATRs swing. StopATR does not apply to it.
	Style string `json:"style" yaml:"style" mapstructure:"style"`
	// RSICall and RSIPut are the trend-momentum RSI confirmation levels.
	RSICall float64 `json:"rsi_call" yaml:"rsi_call" mapstructure:"rsi_call"`
	RSIPut  float64 `json:"rsi_put" yaml:"rsi_put" mapstructure:"rsi_put"`
}

func DefaultParams() Params {
	return Params{StopATR: 1.5, RR: 2, Options: true, ADXMin: 20, Style: StyleIntraday, RSICall: 50, RSIPut: 50}
}

// New returns a fresh strategy instance for one instrument. Instances keep
// per-instrument state and must not be shared between instruments.
func New(name string, p Params) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "noop", "none", "":
		return Noop{}, nil
	case "ema-cross", "emacross":
		return NewEMACross(p), nil
	case "ema-cross-adx", "emacrossadx":
		return NewEMACrossADX(p), nil
	case "trend-momentum", "trendmomentum":
		return NewTrendMomentum(p), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: noop, ema-cross, ema-cross-adx, trend-momentum)", name)
	}
}

// Noop never trades.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) OnCandle(market.Candle, market.Indicators) (trade.Signal, bool) {
	return trade.Signal{}, false
}
