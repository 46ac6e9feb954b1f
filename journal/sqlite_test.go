package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/papertrader/perf"
	"github.com/rustyeddy/papertrader/trade"
)

func openSQLite(t *testing.T) *SQLite {
	t.Helper()
	j, err := NewSQLite(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestSQLiteTrades(t *testing.T) {
	t.Parallel()

	j := openSQLite(t)
	win := sampleRecord("T1", 60, t0.Add(time.Hour))
	loss := sampleRecord("T2", -20, t0.Add(2*time.Hour))
	loss.Instrument = "BANKNIFTY"
	loss.Reason = "STOP_LOSS"
	late := sampleRecord("T3", 10, t0.Add(48*time.Hour))

	for _, r := range []TradeRecord{late, loss, win} {
		require.NoError(t, j.RecordTrade(r))
	}

	got, err := j.GetTrade("T2")
	require.NoError(t, err)
	assert.Equal(t, "BANKNIFTY", got.Instrument)
	assert.InDelta(t, -20.0, got.RealizedPL, 1e-9)
	assert.True(t, got.CloseTime.Equal(loss.CloseTime))

	_, err = j.GetTrade("missing")
	assert.Error(t, err)

	between, err := j.ListTradesClosedBetween(t0, t0.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, between, 2)
	assert.Equal(t, "T1", between[0].TradeID)
	assert.Equal(t, "T2", between[1].TradeID)

	tests := []struct {
		name   string
		filter trade.Filter
		want   []string
	}{
		{"all", trade.Filter{}, []string{"T1", "T2", "T3"}},
		{"symbol", trade.Filter{Symbol: "banknifty"}, []string{"T2"}},
		{"wins", trade.Filter{Outcome: trade.OutcomeWin}, []string{"T1", "T3"}},
		{"losses", trade.Filter{Outcome: trade.OutcomeLoss}, []string{"T2"}},
		{"from", trade.Filter{From: t0.Add(24 * time.Hour)}, []string{"T3"}},
		{"strategy miss", trade.Filter{Strategy: "mean_reversion"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := j.ListTrades(tt.filter)
			require.NoError(t, err)
			var ids []string
			for _, r := range recs {
				ids = append(ids, r.TradeID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestSQLiteSummaryFromJournal(t *testing.T) {
	t.Parallel()

	j := openSQLite(t)
	require.NoError(t, j.RecordTrade(sampleRecord("T1", 60, t0.Add(time.Hour))))
	require.NoError(t, j.RecordTrade(sampleRecord("T2", -20, t0.Add(2*time.Hour))))

	recs, err := j.ListTrades(trade.Filter{})
	require.NoError(t, err)

	s := perf.Summarize(Trades(recs))
	assert.Equal(t, 2, s.TotalTrades)
	assert.InDelta(t, 40.0, s.TotalPnL, 1e-9)
	assert.InDelta(t, 3.0, s.ProfitFactor, 1e-9)
}

func TestSQLiteDecisionsAndEquity(t *testing.T) {
	t.Parallel()

	j := openSQLite(t)
	require.NoError(t, j.RecordDecision(DecisionRecord{
		Time: t0, Symbol: "NIFTY50", Direction: "CALL", Allowed: false,
		Codes: "COOLDOWN_ACTIVE", Context: `{"signal":{}}`,
	}))
	require.NoError(t, j.RecordDecision(DecisionRecord{
		Time: t0.Add(time.Minute), Symbol: "NIFTY50", Direction: "CALL", Allowed: true,
		TradeID: "T1", Context: `{}`,
	}))
	require.NoError(t, j.RecordEquity(EquitySnapshot{
		Time: t0, Capital: 100000, Realized: 50, Unrealized: -10, Equity: 100040, OpenTrades: 1,
	}))

	decs, err := j.ListDecisionsBetween(t0, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, decs, 2)
	assert.False(t, decs[0].Allowed)
	assert.Equal(t, "COOLDOWN_ACTIVE", decs[0].Codes)
	assert.True(t, decs[1].Allowed)
	assert.Equal(t, "T1", decs[1].TradeID)

	eq, err := j.ListEquityBetween(t0, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, eq, 1)
	assert.InDelta(t, 100040.0, eq[0].Equity, 1e-9)
	assert.Equal(t, 1, eq[0].OpenTrades)

	none, err := j.ListEquityBetween(t0.Add(time.Hour), t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}
