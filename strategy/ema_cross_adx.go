package strategy

import (
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/trade"
)

// EMACrossADX is EMACross gated on trend strength. A cross is traded only
// when the snapshot's ADX is at least ADXMin; a weak-trend cross still
// moves the baseline, so it is not replayed on the next candle. A snapshot
// without ADX holds.
type EMACrossADX struct {
	cross  *EMACross
	adxMin float64
}

func NewEMACrossADX(p Params) *EMACrossADX {
	if p.ADXMin <= 0 {
		p.ADXMin = DefaultParams().ADXMin
	}
	return &EMACrossADX{cross: NewEMACross(p), adxMin: p.ADXMin}
}

func (s *EMACrossADX) Name() string { return "ema-cross-adx" }

func (s *EMACrossADX) OnCandle(c market.Candle, ind market.Indicators) (trade.Signal, bool) {
	sig, ok := s.cross.OnCandle(c, ind)
	if !ok || ind.ADX < s.adxMin {
		return trade.Signal{}, false
	}
	sig.Strategy = s.Name()
	return sig, true
}
