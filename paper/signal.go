package paper

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/papertrader/exit"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/risk"
	"github.com/rustyeddy/papertrader/trade"
)

// OnSignal handles one strategy signal. An opposing signal first
// supersedes the instrument's live trade through the exit evaluator; the
// signal is then checked by the governor and handed to the ledger. A
// refusal is returned as a *risk.AdmissionError.
func (e *Engine) OnSignal(sig trade.Signal) (trade.Trade, error) {
	e.metrics.Signals.WithLabelValues(sig.Symbol).Inc()

	st := e.symbol(sig.Symbol)
	st.mu.Lock()
	defer st.mu.Unlock()

	if sig.Validate() == nil {
		// A reversal is a price update for the live trade and obeys the
		// same ordering as candles and ticks.
		if e.opposesLive(sig) && !st.last.IsZero() && sig.Time.Before(st.last) {
			return e.deny(sig, risk.Decision{}, risk.Deny(sig.Symbol, risk.ReasonStaleSignal, "STALE_SIGNAL",
				fmt.Sprintf("signal at %s is before the last update at %s",
					sig.Time.Format(time.RFC3339), st.last.Format(time.RFC3339))))
		}
		e.reverse(st, sig)
	}

	if !e.running.Load() {
		return e.deny(sig, risk.Decision{}, risk.Deny(sig.Symbol, risk.ReasonSessionStopped, "SESSION_STOPPED",
			"paper session is not running"))
	}

	in, _ := e.cfg.Instruments.Lookup(sig.Symbol)
	size := e.gov.Size(sig, in)

	e.admitMu.Lock()
	dec := e.gov.CheckAdmission(risk.Request{
		Signal:     sig,
		Quantity:   size.Quantity,
		OpenTrades: e.ledger.OpenCount(),
		Daily:      e.dailyAt(sig.Time),
	})
	t, err := e.ledger.CreateTrade(sig, dec)
	if err == nil {
		e.dayMu.Lock()
		if e.rollLocked(sig.Time) {
			e.daily.RecordOpen()
		}
		e.dayMu.Unlock()
	}
	e.admitMu.Unlock()

	if err != nil {
		return e.deny(sig, dec, err)
	}

	e.metrics.Admissions.WithLabelValues(sig.Symbol).Inc()
	e.log.Info("signal admitted",
		zap.String("trade_id", t.ID),
		zap.String("symbol", t.Symbol),
		zap.String("direction", string(t.Direction)),
		zap.String("state", string(t.State)),
		zap.Float64("entry", sig.EntryPrice),
		zap.Float64("stop", sig.StopLoss),
		zap.Float64("target", sig.Target),
		zap.Float64("quantity", t.Quantity),
		zap.Float64("planned_risk", dec.PlannedRisk),
		zap.Float64("planned_rr", dec.PlannedRR),
		zap.Any("indicators", sig.Indicators),
		zap.Any("daily", dec.Daily),
	)
	e.recordDecision(sig, dec, t.ID, nil)
	e.publish(tradeEvent(EventAdmitted, t, sig.Time))
	e.updateGauges()
	return t, nil
}

// reverse closes the live trade of sig's instrument when sig opposes it.
// The evaluator still applies its priority order, so a price already
// through the stop exits as a stop.
func (e *Engine) reverse(st *symbolState, sig trade.Signal) {
	for _, t := range e.ledger.ForSymbol(sig.Symbol) {
		if !t.State.Live() || !t.Direction.Opposes(sig.Direction) {
			continue
		}
		// At the instant of the last update the market price is known.
		px := sig.EntryPrice
		if sig.Time.Equal(st.last) {
			if last := e.prices.Last(sig.Symbol); last > 0 {
				px = last
			}
		}
		if sig.Time.After(st.last) {
			st.last = sig.Time
		}
		c := market.Tick{Symbol: sig.Symbol, Price: px, Time: sig.Time}.Candle()
		if _, err := e.evaluate(t, exit.Update{Candle: c, Indicators: sig.Indicators, Reversal: &sig}, sig.Time); err != nil {
			e.metrics.EvaluationErrors.WithLabelValues("reversal").Inc()
			e.log.Error("reversal failed", zap.String("trade_id", t.ID), zap.Error(err))
		}
	}
}

func (e *Engine) opposesLive(sig trade.Signal) bool {
	for _, t := range e.ledger.ForSymbol(sig.Symbol) {
		if t.State.Live() && t.Direction.Opposes(sig.Direction) {
			return true
		}
	}
	return false
}

func (e *Engine) deny(sig trade.Signal, dec risk.Decision, err error) (trade.Trade, error) {
	var violations []risk.Violation
	var ae *risk.AdmissionError
	if errors.As(err, &ae) {
		violations = ae.Violations
		for _, v := range ae.Violations {
			e.metrics.Denials.WithLabelValues(string(v.Reason)).Inc()
		}
	} else {
		e.metrics.Denials.WithLabelValues("ERROR").Inc()
	}

	codes := make([]string, 0, len(violations))
	for _, v := range violations {
		codes = append(codes, v.Code)
	}
	e.log.Info("signal denied",
		zap.String("symbol", sig.Symbol),
		zap.String("direction", string(sig.Direction)),
		zap.String("strategy", sig.Strategy),
		zap.Strings("codes", codes),
		zap.Float64("entry", sig.EntryPrice),
		zap.Float64("stop", sig.StopLoss),
		zap.Any("indicators", sig.Indicators),
		zap.Any("daily", dec.Daily),
		zap.Error(err),
	)
	e.recordDecision(sig, dec, "", err)
	e.publish(Event{Kind: EventDenied, Time: sig.Time, Symbol: sig.Symbol, Violations: violations, Message: err.Error()})
	return trade.Trade{}, err
}

func (e *Engine) recordDecision(sig trade.Signal, dec risk.Decision, tradeID string, err error) {
	rec, jerr := journal.NewDecisionRecord(sig, dec, tradeID, err)
	if jerr == nil {
		jerr = e.journal.RecordDecision(rec)
	}
	if jerr != nil {
		e.log.Error("journal decision", zap.String("symbol", sig.Symbol), zap.Error(jerr))
	}
}
