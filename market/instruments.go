// market/instruments.go
package market

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindEquity      Kind = "equity"
	KindIndexOption Kind = "index-option"
	KindStockOption Kind = "stock-option"
)

func (k Kind) Valid() bool {
	switch k {
	case KindEquity, KindIndexOption, KindStockOption:
		return true
	}
	return false
}

// Instrument is immutable reference data for a tradable symbol.
type Instrument struct {
	Symbol   string  `json:"symbol" yaml:"symbol" mapstructure:"symbol"`
	Kind     Kind    `json:"kind" yaml:"kind" mapstructure:"kind"`
	TickSize float64 `json:"tick_size" yaml:"tick_size" mapstructure:"tick_size"`
	LotSize  float64 `json:"lot_size" yaml:"lot_size" mapstructure:"lot_size"`
}

func (i Instrument) Validate() error {
	if strings.TrimSpace(i.Symbol) == "" {
		return fmt.Errorf("instrument symbol is required")
	}
	if !i.Kind.Valid() {
		return fmt.Errorf("instrument %s: unknown kind %q", i.Symbol, i.Kind)
	}
	if i.TickSize <= 0 {
		return fmt.Errorf("instrument %s: tick_size must be positive", i.Symbol)
	}
	if i.LotSize < 0 {
		return fmt.Errorf("instrument %s: lot_size must not be negative", i.Symbol)
	}
	return nil
}

// RoundToTick rounds p to the nearest multiple of the tick size.
// Decimal arithmetic keeps 107.4 from turning into 107.39999999999999.
func (i Instrument) RoundToTick(p float64) float64 {
	if i.TickSize <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
		return p
	}
	tick := decimal.NewFromFloat(i.TickSize)
	v := decimal.NewFromFloat(p).Div(tick).Round(0).Mul(tick)
	f, _ := v.Float64()
	return f
}

// RoundLots rounds a quantity down to a whole number of lots.
func (i Instrument) RoundLots(qty float64) float64 {
	if qty <= 0 {
		return 0
	}
	lot := i.LotSize
	if lot <= 0 {
		lot = 1
	}
	lots := decimal.NewFromFloat(qty).Div(decimal.NewFromFloat(lot)).Floor()
	f, _ := lots.Mul(decimal.NewFromFloat(lot)).Float64()
	return f
}

type Registry map[string]Instrument

// Lookup returns the instrument for symbol. Unknown symbols get an equity
// with a 0.05 tick so a feed for an unconfigured symbol still evaluates.
func (r Registry) Lookup(symbol string) (Instrument, bool) {
	if in, ok := r[symbol]; ok {
		return in, true
	}
	return Instrument{Symbol: symbol, Kind: KindEquity, TickSize: 0.05, LotSize: 1}, false
}

func NewRegistry(list []Instrument) (Registry, error) {
	r := make(Registry, len(list))
	for _, in := range list {
		if err := in.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r[in.Symbol]; dup {
			return nil, fmt.Errorf("duplicate instrument %s", in.Symbol)
		}
		r[in.Symbol] = in
	}
	return r, nil
}

var DefaultInstruments = []Instrument{
	{Symbol: "NIFTY50", Kind: KindIndexOption, TickSize: 0.05, LotSize: 75},
	{Symbol: "BANKNIFTY", Kind: KindIndexOption, TickSize: 0.05, LotSize: 35},
	{Symbol: "FINNIFTY", Kind: KindIndexOption, TickSize: 0.05, LotSize: 65},
	{Symbol: "SENSEX", Kind: KindIndexOption, TickSize: 0.05, LotSize: 20},
}
