package perf

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/papertrader/trade"
)

var t0 = time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC)

func closed(t *testing.T, symbol string, exit float64, at time.Time) trade.Trade {
	t.Helper()
	tr := trade.New(symbol+at.Format("150405"), trade.Signal{
		Symbol: symbol, Direction: trade.Call, EntryPrice: 100, StopLoss: 98, Time: t0,
	}, 1)
	require.NoError(t, tr.Transition(trade.WaitingForExecution))
	require.NoError(t, tr.Fill(100, t0))
	require.NoError(t, tr.Close(exit, at, trade.ExitManual))
	return *tr
}

func TestSummarizeEmpty(t *testing.T) {
	t.Parallel()

	s := Summarize(nil)
	assert.Equal(t, 0, s.TotalTrades)
	assert.Equal(t, 0.0, s.WinRate)
	assert.False(t, math.IsNaN(s.WinRate))
	assert.False(t, math.IsNaN(s.Expectancy))
	assert.Equal(t, 0.0, s.ProfitFactor)
	assert.Empty(t, s.Daily)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	day2 := t0.Add(24 * time.Hour)
	trades := []trade.Trade{
		// Deliberately out of exit order.
		closed(t, "A", 104, t0.Add(3*time.Hour)), // +4
		closed(t, "B", 110, t0.Add(time.Hour)),   // +10
		closed(t, "A", 97, t0.Add(2*time.Hour)),  // -3
		closed(t, "C", 95, day2),                 // -5
		closed(t, "C", 100, day2.Add(time.Hour)), // 0 counts as a loss
	}

	s := Summarize(trades)
	assert.Equal(t, 5, s.TotalTrades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 3, s.Losses)
	assert.InDelta(t, 0.4, s.WinRate, 1e-12)
	assert.InDelta(t, 6, s.TotalPnL, 1e-9)
	assert.InDelta(t, 14, s.GrossProfit, 1e-9)
	assert.InDelta(t, 8, s.GrossLoss, 1e-9)
	assert.InDelta(t, 1.75, s.ProfitFactor, 1e-9)
	assert.InDelta(t, 1.2, s.Expectancy, 1e-9)
	assert.InDelta(t, 7, s.AvgWin, 1e-9)
	assert.InDelta(t, 8.0/3, s.AvgLoss, 1e-9)
	assert.InDelta(t, 10, s.LargestWin, 1e-9)
	assert.InDelta(t, 5, s.LargestLoss, 1e-9)
	assert.Equal(t, 2, s.MaxConsecutiveLosses)

	// Cumulative by exit time: 10, 7, 11, 6, 6 -> worst decline 11 -> 6.
	assert.InDelta(t, 5, s.MaxDrawdown, 1e-9)

	require.Len(t, s.Daily, 2)
	assert.Equal(t, DayPnL{Day: "2025-03-03", PnL: 11, Trades: 3}, s.Daily[0])
	assert.Equal(t, DayPnL{Day: "2025-03-04", PnL: -5, Trades: 2}, s.Daily[1])
	assert.True(t, s.FirstExit.Equal(t0.Add(time.Hour)))
}

func TestSummarizeIsPureAndIdempotent(t *testing.T) {
	t.Parallel()

	trades := []trade.Trade{
		closed(t, "A", 104, t0.Add(3*time.Hour)),
		closed(t, "B", 99, t0.Add(time.Hour)),
	}
	first := Summarize(trades)
	second := Summarize(trades)
	assert.Equal(t, first, second)
	assert.Equal(t, "A", trades[0].Symbol, "input order is untouched")
}

func TestProfitFactorWithoutLosses(t *testing.T) {
	t.Parallel()

	s := Summarize([]trade.Trade{
		closed(t, "A", 103, t0.Add(time.Hour)),
		closed(t, "A", 102, t0.Add(2*time.Hour)),
	})
	assert.InDelta(t, 5, s.ProfitFactor, 1e-9)
	assert.Equal(t, 0.0, s.MaxDrawdown)
}

func TestSummarizeIgnoresOpenTrades(t *testing.T) {
	t.Parallel()

	open := trade.New("open", trade.Signal{Symbol: "A", Direction: trade.Call, EntryPrice: 100, StopLoss: 98, Time: t0}, 1)
	s := Summarize([]trade.Trade{*open, closed(t, "A", 101, t0.Add(time.Hour))})
	assert.Equal(t, 1, s.TotalTrades)
}

func TestDailyBucketsInLocation(t *testing.T) {
	t.Parallel()

	ist := time.FixedZone("IST", 5*3600+1800)
	late := time.Date(2025, 3, 3, 20, 0, 0, 0, time.UTC) // 01:30 next day in IST
	s := Summarize([]trade.Trade{closed(t, "A", 101, late)}, InLocation(ist))
	require.Len(t, s.Daily, 1)
	assert.Equal(t, "2025-03-04", s.Daily[0].Day)
}

func TestByInstrument(t *testing.T) {
	t.Parallel()

	live := trade.New("live", trade.Signal{Symbol: "NIFTY50", Direction: trade.Call, EntryPrice: 100, StopLoss: 98, Time: t0}, 2)
	require.NoError(t, live.Transition(trade.WaitingForExecution))
	require.NoError(t, live.Fill(100, t0))
	live.Mark(101.5, t0.Add(time.Minute))

	rows := ByInstrument(
		[]string{"NIFTY50", "SENSEX"},
		[]trade.Trade{*live},
		[]trade.Trade{closed(t, "NIFTY50", 104, t0.Add(time.Hour)), closed(t, "NIFTY50", 99, t0.Add(2*time.Hour))},
		func(s string) float64 { return map[string]float64{"NIFTY50": 101.5}[s] },
	)
	require.Len(t, rows, 2)

	n := rows[0]
	assert.Equal(t, "NIFTY50", n.Symbol)
	assert.Equal(t, 101.5, n.CurrentPrice)
	assert.Equal(t, 2, n.TotalTrades)
	assert.Equal(t, 1, n.Wins)
	assert.Equal(t, 1, n.Losses)
	assert.InDelta(t, 0.5, n.WinRate, 1e-12)
	assert.InDelta(t, 3, n.TotalPnL, 1e-9)
	assert.InDelta(t, 3, n.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 6, n.NetPnL, 1e-9)
	assert.Equal(t, 1, n.ActiveTrades)

	assert.Equal(t, InstrumentSummary{Symbol: "SENSEX"}, rows[1])
}

func TestPrintSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	PrintSummary(&buf, "Paper Session", Summarize([]trade.Trade{closed(t, "A", 104, t0.Add(time.Hour))}))
	out := buf.String()
	assert.Contains(t, out, "Paper Session")
	assert.Contains(t, out, "Win Rate:      100.00%")
	assert.Contains(t, out, "2025-03-03")

	buf.Reset()
	PrintInstruments(&buf, []InstrumentSummary{{Symbol: "NIFTY50", WinRate: 0.5}})
	assert.Contains(t, buf.String(), "50.00%")
}
