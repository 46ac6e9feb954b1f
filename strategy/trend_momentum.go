package strategy

import (
	"math"

	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/trade"
)

const (
	StyleIntraday = "intraday"
	StyleSwing    = "swing"
)

// Stop distance in ATRs per trading style.
var trendStopATR = map[string]float64{
	StyleIntraday: 1.2,
	StyleSwing:    2.0,
}

// TrendMomentum enters in the direction of an established EMA trend once
// momentum confirms it. A long needs the close and EMA20 above EMA50, RSI
// above RSICall and rising, and a bullish candle (engulfing, hammer or a
// plain up close). Shorts mirror that. It fires once per trend leg; the leg
// resets when price or EMA20 falls back to the other side of EMA50.
type TrendMomentum struct {
	params  Params
	stopATR float64

	prev    market.Candle
	prevRSI float64
	primed  bool
	leg     int
	fired   bool
}

func NewTrendMomentum(p Params) *TrendMomentum {
	d := DefaultParams()
	if p.Style == "" {
		p.Style = d.Style
	}
	if p.RSICall <= 0 {
		p.RSICall = d.RSICall
	}
	if p.RSIPut <= 0 {
		p.RSIPut = d.RSIPut
	}
	mult, ok := trendStopATR[p.Style]
	if !ok {
		mult = trendStopATR[StyleIntraday]
	}
	return &TrendMomentum{params: p, stopATR: mult}
}

func (s *TrendMomentum) Name() string { return "trend-momentum" }

func (s *TrendMomentum) OnCandle(c market.Candle, ind market.Indicators) (trade.Signal, bool) {
	if ind.EMA20 <= 0 || ind.EMA50 <= 0 || !ind.HasATR() || ind.RSI <= 0 || math.IsNaN(ind.RSI) {
		return trade.Signal{}, false
	}
	prev, prevRSI, primed := s.prev, s.prevRSI, s.primed
	s.prev, s.prevRSI, s.primed = c, ind.RSI, true

	leg := 0
	switch {
	case c.Close > ind.EMA50 && ind.EMA20 > ind.EMA50:
		leg = 1
	case c.Close < ind.EMA50 && ind.EMA20 < ind.EMA50:
		leg = -1
	}
	if leg != s.leg {
		s.leg, s.fired = leg, false
	}
	if !primed || leg == 0 || s.fired {
		return trade.Signal{}, false
	}

	var pattern string
	if leg > 0 {
		if ind.RSI <= s.params.RSICall || ind.RSI <= prevRSI {
			return trade.Signal{}, false
		}
		pattern = bullishPattern(prev, c)
	} else {
		if ind.RSI >= s.params.RSIPut || ind.RSI >= prevRSI {
			return trade.Signal{}, false
		}
		pattern = bearishPattern(prev, c)
	}
	if pattern == "" {
		return trade.Signal{}, false
	}
	s.fired = true

	sig := newSignal(c, ind, direction(leg > 0, s.params.Options), s.stopATR*ind.ATR, s.params.RR)
	sig.Confidence = 0.6
	sig.Strategy = s.Name()
	sig.Pattern = pattern
	return sig, true
}

func bullishPattern(prev, c market.Candle) string {
	switch {
	case prev.Close < prev.Open && c.Close > c.Open && c.Close > prev.Open && c.Open < prev.Close:
		return "BullishEngulfing"
	case isHammer(c):
		return "Hammer"
	case c.Close > c.Open:
		return "BullishCandle"
	}
	return ""
}

func bearishPattern(prev, c market.Candle) string {
	switch {
	case prev.Close > prev.Open && c.Close < c.Open && c.Close < prev.Open && c.Open > prev.Close:
		return "BearishEngulfing"
	case isShootingStar(c):
		return "ShootingStar"
	case c.Close < c.Open:
		return "BearishCandle"
	}
	return ""
}

// A hammer has a lower wick over twice its body and an upper wick shorter
// than the body. The shooting star is its mirror.
func isHammer(c market.Candle) bool {
	body := math.Abs(c.Close - c.Open)
	return math.Min(c.Open, c.Close)-c.Low > 2*body && c.High-math.Max(c.Open, c.Close) < body
}

func isShootingStar(c market.Candle) bool {
	body := math.Abs(c.Close - c.Open)
	return c.High-math.Max(c.Open, c.Close) > 2*body && math.Min(c.Open, c.Close)-c.Low < body
}
