package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	rows, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournalHeaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j, err := NewCSV(dir)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	assert.Equal(t, tradeHeader, readCSV(t, filepath.Join(dir, "trades.csv"))[0])
	assert.Equal(t, decisionHeader, readCSV(t, filepath.Join(dir, "decisions.csv"))[0])
	assert.Equal(t, equityHeader, readCSV(t, filepath.Join(dir, "equity.csv"))[0])
}

func TestCSVJournalRecords(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j, err := NewCSV(dir)
	require.NoError(t, err)

	rec := sampleRecord("T1", -12.5, t0.Add(time.Hour))
	require.NoError(t, j.RecordTrade(rec))
	require.NoError(t, j.RecordDecision(DecisionRecord{
		Time: t0, Symbol: "NIFTY50", Direction: "PUT", Codes: "NO_TRADE_ZONE", Context: `{"a":1}`,
	}))
	require.NoError(t, j.RecordEquity(EquitySnapshot{
		Time: t0, Capital: 1000.1, Realized: 1, Unrealized: -2, Equity: 999.1, OpenTrades: 2,
	}))
	require.NoError(t, j.Close())

	decs := readCSV(t, filepath.Join(dir, "decisions.csv"))
	require.Len(t, decs, 2)
	assert.Equal(t, []string{t0.Format(time.RFC3339), "NIFTY50", "PUT", "", "false", "NO_TRADE_ZONE", "", `{"a":1}`}, decs[1])

	eq := readCSV(t, filepath.Join(dir, "equity.csv"))
	require.Len(t, eq, 2)
	assert.Equal(t, []string{t0.Format(time.RFC3339), "1000.100000", "1.000000", "-2.000000", "999.100000", "2"}, eq[1])

	fh, err := os.Open(filepath.Join(dir, "trades.csv"))
	require.NoError(t, err)
	defer fh.Close()

	got, err := ReadTradesCSV(fh)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec.TradeID, got[0].TradeID)
	assert.Equal(t, rec.Reason, got[0].Reason)
	assert.InDelta(t, rec.RealizedPL, got[0].RealizedPL, 1e-6)
	assert.InDelta(t, rec.ExitPrice, got[0].ExitPrice, 1e-6)
	assert.True(t, rec.CloseTime.Equal(got[0].CloseTime))
}

func TestReadTradesCSVBadRow(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "trades.csv")
	j, err := NewCSV(dir)
	require.NoError(t, err)
	rec := sampleRecord("T1", 5, t0)
	require.NoError(t, j.RecordTrade(rec))
	require.NoError(t, j.Close())

	rows := readCSV(t, path)
	rows[1][6] = "abc"
	fh, err := os.Create(path)
	require.NoError(t, err)
	w := csv.NewWriter(fh)
	require.NoError(t, w.WriteAll(rows))
	require.NoError(t, fh.Close())

	fh, err = os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	_, err = ReadTradesCSV(fh)
	assert.ErrorContains(t, err, "entry_price")
}
