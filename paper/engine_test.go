package paper

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/papertrader/exit"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/ledger"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/risk"
	"github.com/rustyeddy/papertrader/trade"
)

// 09:30 IST, inside the default session.
var t0 = time.Date(2025, 1, 6, 4, 0, 0, 0, time.UTC)

func testConfig() Config {
	reg, _ := market.NewRegistry([]market.Instrument{
		{Symbol: "AAA", Kind: market.KindEquity, TickSize: 0.05, LotSize: 1},
		{Symbol: "BBB", Kind: market.KindEquity, TickSize: 0.05, LotSize: 1},
	})
	ex := exit.DefaultConfig()
	ex.Steps.Enabled = false
	return Config{
		Symbols:     []string{"AAA", "BBB"},
		Instruments: reg,
		Timeframe:   "1min",
		Risk:        risk.DefaultPolicy(),
		Exit:        ex,
		Ledger:      ledger.DefaultRules(),
		StaleAfter:  2 * time.Minute,
		AutoStart:   true,
	}
}

func newEngine(t *testing.T, mutate func(*Config), opts ...Option) *Engine {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	opts = append([]Option{WithClock(func() time.Time { return t0.Add(10 * time.Minute) })}, opts...)
	e, err := New(cfg, opts...)
	require.NoError(t, err)
	return e
}

func long(symbol string, at time.Time) trade.Signal {
	return trade.Signal{
		Symbol:     symbol,
		Direction:  trade.Call,
		EntryPrice: 100,
		StopLoss:   98,
		Target:     106,
		Strategy:   "breakout",
		Pattern:    "flag",
		Time:       at,
	}
}

func bar(symbol string, start time.Time, o, h, l, c float64) market.Candle {
	return market.Candle{Symbol: symbol, Timeframe: "1min", Open: o, High: h, Low: l, Close: c, Start: start, Closed: true}
}

func drain(ch <-chan Event) []EventKind {
	var kinds []EventKind
	for {
		select {
		case ev := <-ch:
			kinds = append(kinds, ev.Kind)
		default:
			return kinds
		}
	}
}

func TestSignalToStopLoss(t *testing.T) {
	t.Parallel()

	e := newEngine(t, nil)
	events, cancel := e.Subscribe(16)
	defer cancel()

	tr, err := e.OnSignal(long("AAA", t0))
	require.NoError(t, err)
	assert.Equal(t, trade.Open, tr.State)
	assert.Equal(t, 500.0, tr.Quantity)

	require.NoError(t, e.OnCandle(bar("AAA", t0.Add(time.Minute), 100, 101, 97.5, 98), market.Indicators{}))

	closed := e.ClosedTrades(trade.Filter{})
	require.Len(t, closed, 1)
	got := closed[0]
	assert.Equal(t, trade.ExitStopLoss, got.ExitReason)
	assert.Equal(t, 98.0, got.ExitPrice)
	assert.True(t, got.ExitTime.Equal(t0.Add(2*time.Minute)), "exit at candle close")
	assert.InDelta(t, -1000.0, got.Realized(), 1e-9)
	assert.InDelta(t, 2.0, got.MAE, 1e-9)

	daily := e.Daily()
	assert.Equal(t, "2025-01-06", daily.Day)
	assert.InDelta(t, -1000.0, daily.RealizedPnL, 1e-9)
	assert.Equal(t, 1, daily.Losses)

	assert.Equal(t, []EventKind{EventAdmitted, EventClosed}, drain(events))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.Metrics().TradesClosed.WithLabelValues("STOP_LOSS")))
	assert.Equal(t, 0.0, testutil.ToFloat64(e.Metrics().OpenTrades))
}

func TestStopBeatsTargetInOneCandle(t *testing.T) {
	t.Parallel()

	e := newEngine(t, nil)
	_, err := e.OnSignal(long("AAA", t0))
	require.NoError(t, err)
	require.NoError(t, e.OnCandle(bar("AAA", t0.Add(time.Minute), 100, 107, 97, 105), market.Indicators{}))

	closed := e.ClosedTrades(trade.Filter{})
	require.Len(t, closed, 1)
	assert.Equal(t, trade.ExitStopLoss, closed[0].ExitReason)
	assert.Equal(t, 98.0, closed[0].ExitPrice)
}

func TestATRTrailingExit(t *testing.T) {
	t.Parallel()

	e := newEngine(t, nil)
	sig := long("AAA", t0)
	sig.StopLoss, sig.Target = 95, 0
	tr, err := e.OnSignal(sig)
	require.NoError(t, err)
	assert.Equal(t, 200.0, tr.Quantity)

	trend := market.Indicators{ATR: 2, ADX: 30}
	require.NoError(t, e.OnCandle(bar("AAA", t0.Add(time.Minute), 100, 110, 99.5, 109), trend))
	got, ok := e.Ledger().Get(tr.ID)
	require.True(t, ok)
	assert.InDelta(t, 107.4, got.TrailingStop, 1e-9)

	// A wider ATR never loosens the level.
	trend.ATR = 3
	require.NoError(t, e.OnCandle(bar("AAA", t0.Add(2*time.Minute), 109, 109.5, 108, 109), trend))
	got, _ = e.Ledger().Get(tr.ID)
	assert.InDelta(t, 107.4, got.TrailingStop, 1e-9)

	require.NoError(t, e.OnCandle(bar("AAA", t0.Add(3*time.Minute), 108, 108, 107, 107.2), trend))
	got, _ = e.Ledger().Get(tr.ID)
	assert.Equal(t, trade.Closed, got.State)
	assert.Equal(t, trade.ExitTrailingStop, got.ExitReason)
	assert.InDelta(t, 107.4, got.ExitPrice, 1e-9)
	assert.InDelta(t, 1480.0, got.Realized(), 1e-6)
}

func TestMarketCloseExit(t *testing.T) {
	t.Parallel()

	e := newEngine(t, nil)
	_, err := e.OnSignal(long("AAA", t0))
	require.NoError(t, err)

	// 15:15 IST
	closeBar := bar("AAA", time.Date(2025, 1, 6, 9, 45, 0, 0, time.UTC), 101, 102, 100.5, 101.5)
	require.NoError(t, e.OnCandle(closeBar, market.Indicators{}))

	closed := e.ClosedTrades(trade.Filter{})
	require.Len(t, closed, 1)
	assert.Equal(t, trade.ExitMarketClose, closed[0].ExitReason)
	assert.Equal(t, 101.5, closed[0].ExitPrice)
}

func TestDailyLatchDeniesFreshInstrument(t *testing.T) {
	t.Parallel()

	e := newEngine(t, func(c *Config) { c.Risk.MaxDailyLoss = 1000 })
	events, cancel := e.Subscribe(16)
	defer cancel()

	_, err := e.OnSignal(long("AAA", t0))
	require.NoError(t, err)
	require.NoError(t, e.OnCandle(bar("AAA", t0.Add(time.Minute), 100, 100, 97, 97.5), market.Indicators{}))

	daily := e.Daily()
	assert.True(t, daily.LossLimitBreached)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.Metrics().DailyLatch))

	_, err = e.OnSignal(long("BBB", t0.Add(5*time.Minute)))
	require.Error(t, err)
	assert.True(t, risk.HasReason(err, risk.ReasonDailyCapReached), err.Error())
	assert.ErrorContains(t, err, "DAILY_LOSS_LIMIT")
	assert.Empty(t, e.ActiveTrades())

	assert.Equal(t, []EventKind{EventAdmitted, EventClosed, EventLatch, EventDenied}, drain(events))

	// The next trading day starts clean.
	next := long("BBB", t0.Add(24*time.Hour))
	_, err = e.OnSignal(next)
	require.NoError(t, err)
	assert.False(t, e.Daily().LossLimitBreached)
	assert.Equal(t, 0.0, testutil.ToFloat64(e.Metrics().DailyLatch))
}

func TestOpposingSignalReverses(t *testing.T) {
	t.Parallel()

	e := newEngine(t, nil)
	_, err := e.OnSignal(long("AAA", t0))
	require.NoError(t, err)

	short := trade.Signal{
		Symbol:     "AAA",
		Direction:  trade.Put,
		EntryPrice: 101,
		StopLoss:   103,
		Target:     95,
		Strategy:   "breakout",
		Time:       t0.Add(5 * time.Minute),
	}
	tr, err := e.OnSignal(short)
	require.NoError(t, err, "the reversing signal is not held by the cooldown")
	assert.Equal(t, trade.Put, tr.Direction)

	closed := e.ClosedTrades(trade.Filter{})
	require.Len(t, closed, 1)
	assert.Equal(t, trade.ExitSignalReversal, closed[0].ExitReason)
	assert.InDelta(t, 500.0, closed[0].Realized(), 1e-9)

	active := e.ActiveTrades()
	require.Len(t, active, 1)
	assert.Equal(t, trade.Put, active[0].Direction)

	// the reversal advanced the instrument's clock
	err = e.OnTick(market.Tick{Symbol: "AAA", Price: 100.5, Time: t0.Add(4 * time.Minute)})
	assert.ErrorIs(t, err, ErrOutOfOrder)
}

func TestStaleOpposingSignalIsDenied(t *testing.T) {
	t.Parallel()

	e := newEngine(t, nil)
	_, err := e.OnSignal(long("AAA", t0))
	require.NoError(t, err)
	// as of t0+2m the market is at 104
	require.NoError(t, e.OnCandle(bar("AAA", t0.Add(time.Minute), 103, 104.5, 102.5, 104), market.Indicators{}))

	short := trade.Signal{
		Symbol:     "AAA",
		Direction:  trade.Put,
		EntryPrice: 97,
		StopLoss:   99,
		Target:     91,
		Strategy:   "breakout",
		Time:       t0.Add(90 * time.Second),
	}
	_, err = e.OnSignal(short)
	require.Error(t, err)
	assert.True(t, risk.HasReason(err, risk.ReasonStaleSignal))

	assert.Empty(t, e.ClosedTrades(trade.Filter{}), "a late signal never closes the trade")
	active := e.ActiveTrades()
	require.Len(t, active, 1)
	assert.Equal(t, trade.Call, active[0].Direction)
	assert.Equal(t, 104.0, active[0].LastPrice)
}

func TestReversalAtLastUpdateUsesMarketPrice(t *testing.T) {
	t.Parallel()

	e := newEngine(t, nil)
	_, err := e.OnSignal(long("AAA", t0))
	require.NoError(t, err)
	require.NoError(t, e.OnCandle(bar("AAA", t0.Add(time.Minute), 103, 104.5, 102.5, 104), market.Indicators{}))

	short := trade.Signal{
		Symbol:     "AAA",
		Direction:  trade.Put,
		EntryPrice: 103.5,
		StopLoss:   105.5,
		Target:     99.5,
		Strategy:   "breakout",
		Time:       t0.Add(2 * time.Minute),
	}
	_, err = e.OnSignal(short)
	require.NoError(t, err)

	closed := e.ClosedTrades(trade.Filter{})
	require.Len(t, closed, 1)
	assert.Equal(t, trade.ExitSignalReversal, closed[0].ExitReason)
	assert.Equal(t, 104.0, closed[0].ExitPrice)
	assert.True(t, closed[0].ExitTime.Equal(t0.Add(2*time.Minute)))
}

func TestNextOpenExecution(t *testing.T) {
	t.Parallel()

	e := newEngine(t, func(c *Config) { c.Ledger.Execution = ledger.ExecNextOpen })
	events, cancel := e.Subscribe(16)
	defer cancel()

	a, err := e.OnSignal(long("AAA", t0))
	require.NoError(t, err)
	assert.Equal(t, trade.WaitingForExecution, a.State)
	b, err := e.OnSignal(long("BBB", t0))
	require.NoError(t, err)

	require.NoError(t, e.OnCandle(bar("AAA", t0.Add(time.Minute), 100.5, 101, 100, 100.8), market.Indicators{}))
	got, _ := e.Ledger().Get(a.ID)
	assert.Equal(t, trade.Open, got.State)
	assert.Equal(t, 100.5, got.EntryPrice)
	assert.True(t, got.EntryTime.Equal(t0.Add(time.Minute)))

	require.NoError(t, e.OnCandle(bar("BBB", t0.Add(time.Minute), 97.9, 98.5, 97, 98), market.Indicators{}))
	got, _ = e.Ledger().Get(b.ID)
	assert.Equal(t, trade.Cancelled, got.State)
	assert.Equal(t, ledger.CancelGapThroughStop, got.CancelReason)

	assert.Equal(t, []EventKind{EventAdmitted, EventAdmitted, EventFilled, EventCancelled}, drain(events))
}

func TestUpdateOrderingAndDataGaps(t *testing.T) {
	t.Parallel()

	e := newEngine(t, nil)
	tr, err := e.OnSignal(long("AAA", t0))
	require.NoError(t, err)

	require.NoError(t, e.OnCandle(bar("AAA", t0.Add(time.Minute), 100, 101, 99.5, 100.5), market.Indicators{}))
	err = e.OnCandle(bar("AAA", t0.Add(time.Minute), 100, 101, 99.5, 100.5), market.Indicators{})
	assert.ErrorIs(t, err, ErrOutOfOrder)
	err = e.OnTick(market.Tick{Symbol: "AAA", Price: 100.6, Time: t0.Add(90 * time.Second)})
	assert.ErrorIs(t, err, ErrOutOfOrder, "tick inside an already closed bar")

	bad := bar("AAA", t0.Add(2*time.Minute), 100, 99, 101, 100)
	err = e.OnCandle(bad, market.Indicators{})
	assert.ErrorIs(t, err, ErrDataGap)
	got, _ := e.Ledger().Get(tr.ID)
	assert.Equal(t, trade.Open, got.State, "bad data never closes a trade")
	assert.True(t, got.Stale)
	assert.Equal(t, 1, e.Status().StaleTrades)

	require.NoError(t, e.OnTick(market.Tick{Symbol: "AAA", Price: 100.7, Time: t0.Add(3 * time.Minute)}))
	got, _ = e.Ledger().Get(tr.ID)
	assert.False(t, got.Stale)
	assert.Equal(t, 100.7, got.LastPrice)
}

func TestManualExit(t *testing.T) {
	t.Parallel()

	e := newEngine(t, nil)
	_, err := e.OnSignal(long("AAA", t0))
	require.NoError(t, err)
	require.NoError(t, e.OnTick(market.Tick{Symbol: "AAA", Price: 101, Time: t0.Add(time.Minute)}))

	ok, msg := e.ManualExit("AAA", t0.Add(time.Second))
	assert.False(t, ok)
	assert.Equal(t, "Trade not found", msg)

	ok, msg = e.ManualExit("AAA", t0)
	assert.True(t, ok, msg)
	closed := e.ClosedTrades(trade.Filter{})
	require.Len(t, closed, 1)
	assert.Equal(t, trade.ExitManual, closed[0].ExitReason)
	assert.Equal(t, 101.0, closed[0].ExitPrice)
	assert.True(t, closed[0].ExitTime.Equal(t0.Add(10*time.Minute)))

	ok, msg = e.ManualExit("AAA", t0)
	assert.False(t, ok)
	assert.Equal(t, "Trade already CLOSED", msg)
}

func TestManualPartialExit(t *testing.T) {
	t.Parallel()

	e := newEngine(t, nil)
	events, cancel := e.Subscribe(16)
	defer cancel()
	_, err := e.OnSignal(long("AAA", t0))
	require.NoError(t, err)
	require.NoError(t, e.OnTick(market.Tick{Symbol: "AAA", Price: 101, Time: t0.Add(time.Minute)}))

	_, err = e.ManualPartialExit("AAA", t0.Add(time.Second), 200)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	_, err = e.ManualPartialExit("AAA", t0, 500)
	assert.ErrorIs(t, err, trade.ErrInvalidTransition)

	part, err := e.ManualPartialExit("AAA", t0, 200)
	require.NoError(t, err)
	assert.Equal(t, trade.PartialExit, part.State)
	assert.Equal(t, 300.0, part.OpenQuantity)
	assert.InDelta(t, 200.0, part.PartialPnL, 1e-9)
	require.Len(t, part.Partials, 1)
	assert.Equal(t, trade.ExitManual, part.Partials[0].Reason)
	assert.Len(t, e.ActiveTrades(), 1)

	// The remainder still exits on its stop.
	require.NoError(t, e.OnCandle(bar("AAA", t0.Add(10*time.Minute), 101, 101, 97.5, 98), market.Indicators{}))
	closed := e.ClosedTrades(trade.Filter{})
	require.Len(t, closed, 1)
	assert.Equal(t, trade.ExitStopLoss, closed[0].ExitReason)
	assert.InDelta(t, 200.0-600.0, closed[0].Realized(), 1e-9)
	assert.Equal(t, []EventKind{EventAdmitted, EventPartial, EventClosed}, drain(events))
}

func TestManualAndAutomaticExitRace(t *testing.T) {
	t.Parallel()

	for i := 0; i < 20; i++ {
		e := newEngine(t, nil)
		_, err := e.OnSignal(long("AAA", t0))
		require.NoError(t, err)

		var wg sync.WaitGroup
		results := make(chan bool, 4)
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, _ := e.ManualExit("AAA", t0)
				results <- ok
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.OnCandle(bar("AAA", t0.Add(time.Minute), 100, 100, 97, 97.5), market.Indicators{})
		}()
		wg.Wait()
		close(results)

		manual := 0
		for ok := range results {
			if ok {
				manual++
			}
		}
		closed := e.ClosedTrades(trade.Filter{})
		require.Len(t, closed, 1)
		if closed[0].ExitReason == trade.ExitManual {
			assert.Equal(t, 1, manual)
		} else {
			assert.Equal(t, trade.ExitStopLoss, closed[0].ExitReason)
			assert.Equal(t, 0, manual)
		}
		booked := testutil.ToFloat64(e.Metrics().TradesClosed.WithLabelValues("MANUAL")) +
			testutil.ToFloat64(e.Metrics().TradesClosed.WithLabelValues("STOP_LOSS"))
		assert.Equal(t, 1.0, booked, "the close is booked once")
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	e := newEngine(t, func(c *Config) { c.AutoStart = false })
	assert.Equal(t, "stopped", e.Status().Status)

	_, err := e.OnSignal(long("AAA", t0))
	assert.True(t, risk.HasReason(err, risk.ReasonSessionStopped))

	assert.True(t, e.Start())
	assert.False(t, e.Start())
	st := e.Status()
	assert.Equal(t, "running", st.Status)
	require.NotNil(t, st.StartedAt)

	_, err = e.OnSignal(long("AAA", t0))
	require.NoError(t, err)

	assert.True(t, e.Stop())
	assert.False(t, e.Stop())
	// Open trades are still managed after a stop.
	require.NoError(t, e.OnCandle(bar("AAA", t0.Add(time.Minute), 100, 106.5, 99.5, 106), market.Indicators{}))
	closed := e.ClosedTrades(trade.Filter{})
	require.Len(t, closed, 1)
	assert.Equal(t, trade.ExitTarget, closed[0].ExitReason)
}

func TestCheckStale(t *testing.T) {
	t.Parallel()

	e := newEngine(t, nil)
	tr, err := e.OnSignal(long("AAA", t0))
	require.NoError(t, err)

	assert.Empty(t, e.CheckStale(t0.Add(time.Minute)))
	assert.Equal(t, []string{tr.ID}, e.CheckStale(t0.Add(3*time.Minute)))
	assert.Empty(t, e.CheckStale(t0.Add(4*time.Minute)), "already flagged")
	assert.Equal(t, 1.0, testutil.ToFloat64(e.Metrics().StaleTrades))
}

func TestCloseAllAtEndOfData(t *testing.T) {
	t.Parallel()

	e := newEngine(t, nil)
	_, err := e.OnSignal(long("AAA", t0))
	require.NoError(t, err)
	_, err = e.OnSignal(long("BBB", t0))
	require.NoError(t, err)
	require.NoError(t, e.OnCandle(bar("AAA", t0.Add(time.Minute), 100, 103, 99.5, 102), market.Indicators{}))

	closed := e.CloseAll(trade.ExitEndOfData, t0.Add(time.Minute))
	require.Len(t, closed, 2)
	for _, c := range closed {
		assert.Equal(t, trade.ExitEndOfData, c.ExitReason)
		assert.False(t, c.ExitTime.Before(c.EntryTime))
	}
	assert.Empty(t, e.ActiveTrades())

	perf := e.Performance(trade.Filter{})
	assert.Equal(t, 2, perf.TotalTrades)
	assert.Equal(t, 1, perf.Wins)
	assert.InDelta(t, 1000.0, perf.TotalPnL, 1e-9)
}

func TestQueries(t *testing.T) {
	t.Parallel()

	e := newEngine(t, nil)
	_, err := e.OnSignal(long("AAA", t0))
	require.NoError(t, err)
	require.NoError(t, e.OnCandle(bar("AAA", t0.Add(time.Minute), 100, 101.5, 99.5, 101), market.Indicators{}))

	rows := e.InstrumentSummaries()
	require.Len(t, rows, 2)
	byName := map[string]float64{}
	for _, r := range rows {
		byName[r.Symbol] = r.UnrealizedPnL
		if r.Symbol == "AAA" {
			assert.Equal(t, 101.0, r.CurrentPrice)
			assert.Equal(t, 1, r.ActiveTrades)
		}
	}
	assert.InDelta(t, 500.0, byName["AAA"], 1e-9)
	assert.Zero(t, byName["BBB"])

	snap := e.EquitySnapshot(t0.Add(2 * time.Minute))
	assert.Equal(t, 1, snap.OpenTrades)
	assert.InDelta(t, 100500.0, snap.Equity, 1e-9)

	st := e.Status()
	assert.Equal(t, 1, st.ActiveTrades)
	assert.Equal(t, 0, st.CompletedTrades)
	assert.Equal(t, []string{"AAA", "BBB"}, st.Symbols)
}

func TestJournalReceivesTradesAndDecisions(t *testing.T) {
	t.Parallel()

	j, err := journal.NewSQLite(filepath.Join(t.TempDir(), "paper.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	e := newEngine(t, nil, WithJournal(j))
	_, err = e.OnSignal(long("AAA", t0))
	require.NoError(t, err)
	_, err = e.OnSignal(long("AAA", t0.Add(time.Second)))
	require.Error(t, err)
	require.NoError(t, e.OnCandle(bar("AAA", t0.Add(time.Minute), 100, 106.5, 99.5, 106), market.Indicators{}))
	e.RecordEquity(t0.Add(3 * time.Minute))

	recs, err := j.ListTrades(trade.Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "TARGET", recs[0].Reason)
	assert.InDelta(t, 3000.0, recs[0].RealizedPL, 1e-9)

	decisions, err := j.ListDecisionsBetween(t0.Add(-time.Hour), t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.True(t, decisions[0].Allowed)
	assert.False(t, decisions[1].Allowed)
	assert.Contains(t, decisions[1].Codes, "DUPLICATE_INSTRUMENT")

	equity, err := j.ListEquityBetween(t0, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, equity, 1)
	assert.InDelta(t, 103000.0, equity[0].Equity, 1e-9)
}
