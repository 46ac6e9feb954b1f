package strategy

import (
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/trade"
)

// EMACross signals on a cross of the fast and slow EMAs of the indicator
// snapshot:
//   - bull cross (fast moves above slow) is a long signal
//   - bear cross is a short signal
//   - the stop is StopATR ATRs from the close, the target RR risks beyond it
//
// An opposite cross while a trade is live reaches the engine as a
// reversal.
type EMACross struct {
	params Params

	lastDiff     float64
	haveLastDiff bool
}

func NewEMACross(p Params) *EMACross {
	if p.StopATR <= 0 {
		p.StopATR = DefaultParams().StopATR
	}
	return &EMACross{params: p}
}

func (s *EMACross) Name() string { return "ema-cross" }

func (s *EMACross) OnCandle(c market.Candle, ind market.Indicators) (trade.Signal, bool) {
	// Wait until the snapshot is warmed up.
	if ind.EMA20 <= 0 || ind.EMA50 <= 0 || !ind.HasATR() {
		return trade.Signal{}, false
	}
	diff := ind.EMA20 - ind.EMA50
	if !s.haveLastDiff {
		s.lastDiff = diff
		s.haveLastDiff = true
		return trade.Signal{}, false
	}

	bullCross := diff > 0 && s.lastDiff <= 0
	bearCross := diff < 0 && s.lastDiff >= 0
	s.lastDiff = diff

	switch {
	case bullCross:
		return s.signal(c, ind, true, "BullCross"), true
	case bearCross:
		return s.signal(c, ind, false, "BearCross"), true
	default:
		return trade.Signal{}, false
	}
}

func (s *EMACross) signal(c market.Candle, ind market.Indicators, long bool, pattern string) trade.Signal {
	sig := newSignal(c, ind, direction(long, s.params.Options), s.params.StopATR*ind.ATR, s.params.RR)
	sig.Confidence = 0.5
	sig.Strategy = s.Name()
	sig.Pattern = pattern
	return sig
}

func direction(long, options bool) trade.Direction {
	switch {
	case long && options:
		return trade.Call
	case long:
		return trade.Buy
	case options:
		return trade.Put
	}
	return trade.Sell
}

// newSignal enters at the close of c with the stop dist away and the target
// rr times dist beyond entry. A closed candle signals at its end.
func newSignal(c market.Candle, ind market.Indicators, dir trade.Direction, dist, rr float64) trade.Signal {
	entry := c.Close
	stop := entry - dir.Sign()*dist
	var target float64
	if rr > 0 {
		target = entry + dir.Sign()*dist*rr
	}

	at := c.Start
	if c.Closed && c.Timeframe != "" {
		if d, err := market.TimeframeDuration(c.Timeframe); err == nil {
			at = at.Add(d)
		}
	}
	return trade.Signal{
		Symbol:     c.Symbol,
		Direction:  dir,
		EntryPrice: entry,
		StopLoss:   stop,
		Target:     target,
		Time:       at,
		Indicators: ind,
	}
}
