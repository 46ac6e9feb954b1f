package paper

import (
	"time"

	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/perf"
	"github.com/rustyeddy/papertrader/risk"
	"github.com/rustyeddy/papertrader/trade"
)

type Status struct {
	Status          string          `json:"status"`
	Symbols         []string        `json:"symbols"`
	Timeframe       string          `json:"timeframe,omitempty"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedTrades int             `json:"completed_trades_count"`
	ActiveTrades    int             `json:"active_trades_count"`
	StaleTrades     int             `json:"stale_trades_count"`
	Daily           risk.DailyState `json:"daily"`
}

func (e *Engine) Status() Status {
	s := Status{
		Status:          "stopped",
		Symbols:         e.cfg.Symbols,
		Timeframe:       e.cfg.Timeframe,
		StartedAt:       e.startedAt.Load(),
		CompletedTrades: len(e.ledger.Closed(trade.Filter{})),
		Daily:           e.Daily(),
	}
	if e.Running() {
		s.Status = "running"
	}
	for _, t := range e.ledger.Active() {
		s.ActiveTrades++
		if t.Stale {
			s.StaleTrades++
		}
	}
	return s
}

// ActiveTrades returns copies of every non-terminal trade.
func (e *Engine) ActiveTrades() []trade.Trade { return e.ledger.Active() }

func (e *Engine) ClosedTrades(f trade.Filter) []trade.Trade { return e.ledger.Closed(f) }

// InstrumentSummaries is the per-symbol dashboard view, priced at the
// latest update of each instrument.
func (e *Engine) InstrumentSummaries() []perf.InstrumentSummary {
	return perf.ByInstrument(e.cfg.Symbols, e.ledger.Active(), e.ledger.Closed(trade.Filter{}), e.prices.Last)
}

// Performance summarizes closed trades with daily P&L bucketed by the
// session's trading day.
func (e *Engine) Performance(f trade.Filter) perf.Summary {
	return perf.Summarize(e.ledger.Closed(f), perf.InLocation(e.session.Location()))
}

// EquitySnapshot marks the session to market at at.
func (e *Engine) EquitySnapshot(at time.Time) journal.EquitySnapshot {
	snap := journal.EquitySnapshot{Time: at, Capital: e.cfg.Risk.Capital}
	for _, t := range e.ledger.Closed(trade.Filter{}) {
		snap.Realized += t.Realized()
	}
	for _, t := range e.ledger.Active() {
		snap.OpenTrades++
		snap.Unrealized += t.UnrealizedPnL
	}
	snap.Equity = snap.Capital + snap.Realized + snap.Unrealized
	return snap
}
