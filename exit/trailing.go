package exit

import (
	"math"

	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/trade"
)

type Regime string

const (
	RegimeUnknown Regime = ""
	RegimeTrend   Regime = "TREND"
	RegimeChoppy  Regime = "CHOPPY"
)

// Classify uses ADX when the provider supplies it, otherwise the distance
// between EMA20 and EMA50 measured in ATRs.
func Classify(ind market.Indicators, cfg ATRConfig) Regime {
	if ind.ADX > 0 {
		if ind.ADX >= cfg.ADXTrend {
			return RegimeTrend
		}
		return RegimeChoppy
	}
	if ind.HasATR() && ind.EMA20 > 0 && ind.EMA50 > 0 {
		if math.Abs(ind.EMA20-ind.EMA50)/ind.ATR >= cfg.EMASeparation {
			return RegimeTrend
		}
		return RegimeChoppy
	}
	return RegimeUnknown
}

func (cfg ATRConfig) Multiplier(r Regime) float64 {
	if r == RegimeChoppy {
		return cfg.ChoppyMultiplier
	}
	return cfg.TrendMultiplier
}

// ATRStop is the ATR trailing level: extreme - m*atr for longs and
// extreme + m*atr for shorts. extreme is the highest (long) or lowest
// (short) price since entry.
func ATRStop(d trade.Direction, extreme, atr, m float64) float64 {
	return extreme - d.Sign()*m*atr
}

// StepStop returns the level locked by the highest step reached at peakR,
// or 0 when no step has been reached.
func StepStop(d trade.Direction, entry, risk, peakR float64, levels []StepLevel) float64 {
	stop := 0.0
	for _, l := range levels {
		if peakR < l.ProfitR {
			continue
		}
		stop = d.Protective(stop, entry+d.Sign()*l.LockR*risk)
	}
	return stop
}

// Ratchet returns the more protective of the current and candidate
// levels, so a trailing stop can only tighten.
func Ratchet(d trade.Direction, current, candidate float64) float64 {
	return d.Protective(current, candidate)
}

// candidate merges the ATR and step levels for a trade whose best price so
// far is extreme.
func (e *Evaluator) candidate(t *trade.Trade, extreme float64, ind market.Indicators, regime Regime) float64 {
	risk := t.Risk()
	peakR := 0.0
	if risk > 0 {
		peakR = trade.Excursion(t.Direction, t.EntryPrice, extreme) / risk
	}

	var atrLevel, stepLevel float64
	if e.cfg.ATR.Enabled && ind.HasATR() && peakR >= e.cfg.ATR.ActivationR {
		atrLevel = ATRStop(t.Direction, extreme, ind.ATR, e.cfg.ATR.Multiplier(regime))
	}
	if e.cfg.Steps.Enabled && risk > 0 {
		stepLevel = StepStop(t.Direction, t.EntryPrice, risk, peakR, e.cfg.Steps.Levels)
	}
	level := t.Direction.Protective(atrLevel, stepLevel)
	if level <= 0 {
		return 0
	}
	in, _ := e.instruments.Lookup(t.Symbol)
	return in.RoundToTick(level)
}
