package risk

import (
	"math"

	"github.com/rustyeddy/papertrader/market"
)

type Inputs struct {
	Capital    float64
	RiskPct    float64 // 0.01
	EntryPrice float64
	StopPrice  float64
	Instrument market.Instrument
	Fixed      float64 // overrides risk sizing when > 0
}

type Result struct {
	Quantity    float64
	RiskPerUnit float64
	RiskAmount  float64
}

// Calculate sizes a position so that a stop-out loses at most
// Capital*RiskPct: floor(capital*risk / |entry-stop|), rounded down to
// whole lots.
func Calculate(in Inputs) Result {
	perUnit := math.Abs(in.EntryPrice - in.StopPrice)
	riskAmt := in.Capital * in.RiskPct
	res := Result{RiskPerUnit: perUnit, RiskAmount: riskAmt}

	if in.Fixed > 0 {
		res.Quantity = in.Fixed
		return res
	}
	if perUnit == 0 || riskAmt <= 0 {
		return res
	}
	res.Quantity = in.Instrument.RoundLots(math.Floor(riskAmt / perUnit))
	return res
}
