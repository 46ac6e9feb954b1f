package paper

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/papertrader/exit"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/trade"
)

// asOf is when a candle's data is known: its close for a closed candle of
// a known timeframe, otherwise its start. Ticks are their own time.
func asOf(c market.Candle) time.Time {
	if c.Closed && c.Timeframe != "" {
		if d, err := market.TimeframeDuration(c.Timeframe); err == nil {
			return c.Start.Add(d)
		}
	}
	return c.Start
}

// OnCandle evaluates every trade of the candle's instrument. Updates must
// be strictly ordered per instrument. Pending next-open trades fill at the
// candle's open. A failure on one trade does not stop the others; all
// failures are joined into the returned error.
func (e *Engine) OnCandle(c market.Candle, ind market.Indicators) error {
	st := e.symbol(c.Symbol)
	st.mu.Lock()
	defer st.mu.Unlock()
	return e.onCandle(st, c, ind)
}

// OnTick evaluates a last-traded price as a degenerate candle using the
// instrument's latest indicator snapshot.
func (e *Engine) OnTick(t market.Tick) error {
	st := e.symbol(t.Symbol)
	st.mu.Lock()
	defer st.mu.Unlock()
	return e.onCandle(st, t.Candle(), st.ind)
}

func (e *Engine) onCandle(st *symbolState, c market.Candle, ind market.Indicators) error {
	at := asOf(c)
	if !st.last.IsZero() && !at.After(st.last) {
		return fmt.Errorf("%w: %s update at %s is not after %s", ErrOutOfOrder,
			c.Symbol, at.Format(time.RFC3339), st.last.Format(time.RFC3339))
	}
	if err := c.Validate(); err != nil {
		e.flagStale(c.Symbol, err)
		return fmt.Errorf("%w: %v", ErrDataGap, err)
	}
	st.last = at
	st.ind = ind
	e.prices.Set(market.Tick{Symbol: c.Symbol, Price: c.Close, Time: at})

	var errs []error
	for _, t := range e.ledger.ForSymbol(c.Symbol) {
		var err error
		switch {
		case t.State == trade.WaitingForExecution:
			err = e.fillAndEvaluate(t, c, ind, at)
		case t.State.Live():
			_, err = e.evaluate(t, exit.Update{Candle: c, Indicators: ind}, at)
		}
		if err != nil {
			e.metrics.EvaluationErrors.WithLabelValues("evaluate").Inc()
			e.log.Error("evaluation failed", zap.String("trade_id", t.ID), zap.String("symbol", t.Symbol), zap.Error(err))
			errs = append(errs, fmt.Errorf("trade %s: %w", t.ID, err))
		}
	}
	e.updateGauges()
	return errors.Join(errs...)
}

func (e *Engine) flagStale(symbol string, cause error) {
	for _, t := range e.ledger.ForSymbol(symbol) {
		if !t.State.Live() {
			continue
		}
		flagged, err := e.ledger.FlagStale(t.ID)
		if err != nil {
			continue
		}
		e.metrics.EvaluationErrors.WithLabelValues("data_gap").Inc()
		e.log.Warn("trade held on bad data", zap.String("trade_id", t.ID), zap.String("symbol", symbol), zap.Error(cause))
		e.publish(tradeEvent(EventStale, flagged, flagged.LastUpdate))
	}
	e.updateGauges()
}

// fillAndEvaluate opens a next-open trade at c's open, then evaluates the
// rest of the candle against it.
func (e *Engine) fillAndEvaluate(t trade.Trade, c market.Candle, ind market.Indicators, at time.Time) error {
	if c.Start.Before(t.SignalTime) {
		return nil
	}
	filled, err := e.ledger.Fill(t.ID, c.Open, c.Start)
	if err != nil {
		return err
	}
	if filled.State == trade.Cancelled {
		e.metrics.TradesCancelled.WithLabelValues(filled.CancelReason).Inc()
		e.log.Info("trade cancelled", zap.String("trade_id", filled.ID), zap.String("reason", filled.CancelReason),
			zap.Float64("open", c.Open), zap.Float64("stop", filled.StopLoss))
		e.publish(tradeEvent(EventCancelled, filled, c.Start))
		return nil
	}
	e.log.Info("trade filled", zap.String("trade_id", filled.ID), zap.Float64("price", filled.EntryPrice))
	e.publish(tradeEvent(EventFilled, filled, c.Start))
	_, err = e.evaluate(filled, exit.Update{Candle: c, Indicators: ind}, at)
	return err
}

// evaluate runs the exit evaluator for one live trade and applies the
// result to the ledger. It reports whether the trade closed.
func (e *Engine) evaluate(t trade.Trade, u exit.Update, at time.Time) (bool, error) {
	dec, err := e.eval.Evaluate(&t, u)
	if err != nil {
		return false, err
	}
	c := u.Candle

	if dec.Exit {
		// Mark only the path up to the fill; the rest of the bar never happened for this trade.
		hi, lo := math.Max(c.Open, dec.Price), math.Min(c.Open, dec.Price)
		if _, err := e.ledger.RecordCandle(t.ID, hi, lo, dec.Price, at); err != nil {
			return false, err
		}
		closed, err := e.ledger.CloseTrade(t.ID, dec.Price, dec.Reason, at)
		if err != nil {
			return false, err
		}
		e.onClosed(closed, dec.Regime)
		return true, nil
	}

	if _, err := e.ledger.RecordCandle(t.ID, c.High, c.Low, c.Close, at); err != nil {
		return false, err
	}
	if dec.Trailing != 0 && dec.Trailing != t.TrailingStop {
		moved, err := e.ledger.UpdateStops(t.ID, 0, dec.Trailing)
		if err != nil {
			return false, err
		}
		e.log.Debug("trailing stop moved",
			zap.String("trade_id", t.ID),
			zap.Float64("from", t.TrailingStop),
			zap.Float64("to", moved.TrailingStop),
			zap.String("regime", string(dec.Regime)),
			zap.Float64("atr", u.Indicators.ATR),
		)
		e.publish(tradeEvent(EventStops, moved, at))
	}
	return false, nil
}

// onClosed books a closed trade into the day's risk state, the journal,
// the metrics and the event stream.
func (e *Engine) onClosed(t trade.Trade, regime exit.Regime) {
	e.dayMu.Lock()
	var tripped bool
	if e.rollLocked(t.ExitTime) {
		tripped = e.gov.RecordClose(&e.daily, &t)
	}
	daily := e.daily
	e.dayMu.Unlock()

	e.metrics.TradesClosed.WithLabelValues(string(t.ExitReason)).Inc()
	e.metrics.RealizedPnL.Set(daily.RealizedPnL)
	e.log.Info("trade closed",
		zap.String("trade_id", t.ID),
		zap.String("symbol", t.Symbol),
		zap.String("reason", string(t.ExitReason)),
		zap.Float64("entry", t.EntryPrice),
		zap.Float64("exit", t.ExitPrice),
		zap.Float64("pnl", t.Realized()),
		zap.Float64("mfe", t.MFE),
		zap.Float64("mae", t.MAE),
		zap.String("regime", string(regime)),
		zap.Any("daily", daily),
	)
	if err := e.journal.RecordTrade(journal.FromTrade(t)); err != nil {
		e.log.Error("journal trade", zap.String("trade_id", t.ID), zap.Error(err))
	}
	e.publish(tradeEvent(EventClosed, t, t.ExitTime))

	if tripped {
		e.metrics.DailyLatch.Set(1)
		e.log.Warn("daily loss limit reached; admissions stopped for the day",
			zap.String("day", daily.Day),
			zap.Float64("realized_pnl", daily.RealizedPnL),
			zap.Float64("limit", e.cfg.Risk.DailyLossLimit()),
		)
		e.publish(Event{Kind: EventLatch, Time: t.ExitTime, Message: fmt.Sprintf("day %s realized %.2f", daily.Day, daily.RealizedPnL)})
	}
}

func (e *Engine) updateGauges() {
	var open, stale int
	var unrealized float64
	for _, t := range e.ledger.Active() {
		open++
		if t.Stale {
			stale++
		}
		unrealized += t.UnrealizedPnL
	}
	e.metrics.OpenTrades.Set(float64(open))
	e.metrics.StaleTrades.Set(float64(stale))
	e.metrics.UnrealizedPnL.Set(unrealized)
}
