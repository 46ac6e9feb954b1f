package paper

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Run drives the staleness watchdog and the periodic equity snapshot until
// ctx is done. A zero interval disables that ticker.
func (e *Engine) Run(ctx context.Context) error {
	var staleC, equityC <-chan time.Time
	if e.cfg.StaleAfter > 0 {
		t := time.NewTicker(max(e.cfg.StaleAfter/4, time.Second))
		defer t.Stop()
		staleC = t.C
	}
	if e.cfg.EquityInterval > 0 {
		t := time.NewTicker(e.cfg.EquityInterval)
		defer t.Stop()
		equityC = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-staleC:
			e.CheckStale(e.now())
		case <-equityC:
			e.RecordEquity(e.now())
		}
	}
}

// CheckStale flags live trades that have had no update for StaleAfter and
// returns their ids. Stale trades are held, never closed.
func (e *Engine) CheckStale(now time.Time) []string {
	if e.cfg.StaleAfter <= 0 {
		return nil
	}
	ids := e.ledger.MarkStale(now.Add(-e.cfg.StaleAfter))
	for _, id := range ids {
		t, ok := e.ledger.Get(id)
		if !ok {
			continue
		}
		e.log.Warn("trade stale", zap.String("trade_id", id), zap.String("symbol", t.Symbol),
			zap.Time("last_update", t.LastUpdate), zap.Duration("stale_after", e.cfg.StaleAfter))
		e.publish(tradeEvent(EventStale, t, now))
	}
	if len(ids) > 0 {
		e.updateGauges()
	}
	return ids
}

// RecordEquity journals an equity snapshot taken at at.
func (e *Engine) RecordEquity(at time.Time) {
	snap := e.EquitySnapshot(at)
	if err := e.journal.RecordEquity(snap); err != nil {
		e.log.Error("journal equity", zap.Error(err))
	}
}
