package risk

import (
	"fmt"

	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/trade"
)

// Request is everything the Governor looks at for one signal.
type Request struct {
	Signal     trade.Signal
	Quantity   float64
	OpenTrades int
	Daily      DailyState
}

type Decision struct {
	Allowed    bool        `json:"allowed"`
	Violations []Violation `json:"violations,omitempty"`

	Quantity       float64       `json:"quantity"`
	PlannedRisk    float64       `json:"planned_risk"`
	PlannedRiskPct float64       `json:"planned_risk_pct"`
	PlannedRR      float64       `json:"planned_rr"`
	NoTrade        NoTradeResult `json:"no_trade"`
	Daily          DailyState    `json:"daily"`
}

func (d *Decision) add(r Reason, code, msg string) {
	d.Violations = append(d.Violations, Violation{Reason: r, Code: code, Msg: msg})
	d.Allowed = false
}

// Err returns nil for an admitted signal and an *AdmissionError otherwise.
func (d Decision) Err(symbol string) error {
	if d.Allowed {
		return nil
	}
	return &AdmissionError{Symbol: symbol, Violations: d.Violations}
}

type Governor struct {
	policy  Policy
	session Session
}

func NewGovernor(p Policy) (*Governor, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s, _ := NewSession(p.SessionStart, p.SessionEnd, p.Timezone)
	return &Governor{policy: p, session: s}, nil
}

func (g *Governor) Policy() Policy   { return g.policy }
func (g *Governor) Session() Session { return g.session }

// Size returns the quantity for sig on instrument under the policy.
func (g *Governor) Size(sig trade.Signal, in market.Instrument) Result {
	return Calculate(Inputs{
		Capital:    g.policy.Capital,
		RiskPct:    g.policy.RiskPerTradePct,
		EntryPrice: sig.EntryPrice,
		StopPrice:  sig.StopLoss,
		Instrument: in,
		Fixed:      g.policy.FixedQuantity,
	})
}

// RecordClose books a close into d under the policy's loss limit.
func (g *Governor) RecordClose(d *DailyState, t *trade.Trade) bool {
	return d.RecordClose(t.Realized(), g.policy.DailyLossLimit(), t.ExitTime)
}

// CheckAdmission is a pure check of one signal against the policy and the
// day's state. All violations are collected, not just the first.
func (g *Governor) CheckAdmission(req Request) Decision {
	p := g.policy
	sig := req.Signal
	d := Decision{Allowed: true, Quantity: req.Quantity, Daily: req.Daily}

	if err := sig.Validate(); err != nil {
		d.add(ReasonInvalidSignal, "INVALID_SIGNAL", err.Error())
		return d
	}
	if req.Quantity <= 0 {
		d.add(ReasonRiskTooHigh, "NO_UNITS",
			fmt.Sprintf("stop distance %.2f leaves no whole lot within risk budget", sig.Risk()))
	}

	d.PlannedRisk = PlannedRisk(req.Quantity, sig.EntryPrice, sig.StopLoss)
	d.PlannedRiskPct = RiskPct(d.PlannedRisk, p.Capital)
	d.PlannedRR = RR(sig.EntryPrice, sig.StopLoss, sig.Target)

	if d.PlannedRiskPct > p.RiskPerTradePct+1e-12 {
		d.add(ReasonRiskTooHigh, "RISK_TOO_HIGH",
			fmt.Sprintf("planned risk %.2f%% exceeds max %.2f%%", 100*d.PlannedRiskPct, 100*p.RiskPerTradePct))
	}
	if p.MinRR > 0 && sig.Target != 0 && d.PlannedRR < p.MinRR {
		d.add(ReasonRiskTooHigh, "RR_TOO_LOW",
			fmt.Sprintf("RR %.2f below minimum %.2f", d.PlannedRR, p.MinRR))
	}

	if p.MaxOpenTrades > 0 && req.OpenTrades >= p.MaxOpenTrades {
		d.add(ReasonTooManyOpenTrades, "TOO_MANY_OPEN_TRADES",
			fmt.Sprintf("open trades %d >= max %d", req.OpenTrades, p.MaxOpenTrades))
	}

	day := req.Daily
	if day.LossLimitBreached {
		d.add(ReasonDailyCapReached, "DAILY_LOSS_LIMIT",
			fmt.Sprintf("day realized %.2f breached limit %.2f", day.RealizedPnL, -p.DailyLossLimit()))
	}
	if p.MaxTradesPerDay > 0 && day.Trades >= p.MaxTradesPerDay {
		d.add(ReasonDailyCapReached, "MAX_TRADES_PER_DAY",
			fmt.Sprintf("trades today %d >= max %d", day.Trades, p.MaxTradesPerDay))
	}
	if p.MaxConsecutiveLosses > 0 && day.ConsecutiveLosses >= p.MaxConsecutiveLosses {
		d.add(ReasonDailyCapReached, "MAX_CONSECUTIVE_LOSSES",
			fmt.Sprintf("consecutive losses %d >= max %d", day.ConsecutiveLosses, p.MaxConsecutiveLosses))
	}

	inSession := g.session.Contains(sig.Time)
	if !inSession {
		d.add(ReasonOutsideSession, "OUTSIDE_SESSION",
			fmt.Sprintf("signal at %s is outside %s-%s", sig.Time.Format("15:04"), p.SessionStart, p.SessionEnd))
	}

	d.NoTrade = EvaluateNoTrade(p.NoTrade, NoTradeInput{Signal: sig, InSession: inSession})
	if d.NoTrade.Blocked {
		d.add(ReasonNoTradeZone, "NO_TRADE_ZONE",
			fmt.Sprintf("%d of %d filters fired: %v", d.NoTrade.Score, len(noTradeFilters), d.NoTrade.Fired))
	}
	return d
}
