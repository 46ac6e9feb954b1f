// journal/csv.go
package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

var (
	tradeHeader    = []string{"trade_id", "instrument", "direction", "strategy", "pattern", "quantity", "entry_price", "exit_price", "initial_stop", "stop_loss", "trailing_stop", "target", "open_time", "close_time", "realized_pl", "mfe", "mae", "reason"}
	decisionHeader = []string{"time", "symbol", "direction", "strategy", "allowed", "codes", "trade_id", "context"}
	equityHeader   = []string{"time", "capital", "realized", "unrealized", "equity", "open_trades"}
)

// CSVJournal writes trades.csv, decisions.csv and equity.csv into a
// directory.
type CSVJournal struct {
	mu        sync.Mutex
	trades    *csv.Writer
	decisions *csv.Writer
	equity    *csv.Writer
	files     []*os.File
}

func NewCSV(dir string) (*CSVJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	j := &CSVJournal{}
	var err error
	if j.trades, err = j.open(filepath.Join(dir, "trades.csv"), tradeHeader); err != nil {
		_ = j.Close()
		return nil, err
	}
	if j.decisions, err = j.open(filepath.Join(dir, "decisions.csv"), decisionHeader); err != nil {
		_ = j.Close()
		return nil, err
	}
	if j.equity, err = j.open(filepath.Join(dir, "equity.csv"), equityHeader); err != nil {
		_ = j.Close()
		return nil, err
	}
	return j, nil
}

func (j *CSVJournal) open(path string, header []string) (*csv.Writer, error) {
	fh, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	j.files = append(j.files, fh)
	w := csv.NewWriter(fh)
	if err := write(w, header); err != nil {
		return nil, err
	}
	return w, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return write(j.trades, []string{
		t.TradeID,
		t.Instrument,
		t.Direction,
		t.Strategy,
		t.Pattern,
		f(t.Quantity),
		f(t.EntryPrice),
		f(t.ExitPrice),
		f(t.InitialStop),
		f(t.StopLoss),
		f(t.TrailingStop),
		f(t.Target),
		t.OpenTime.UTC().Format(time.RFC3339),
		t.CloseTime.UTC().Format(time.RFC3339),
		f(t.RealizedPL),
		f(t.MFE),
		f(t.MAE),
		t.Reason,
	})
}

func (j *CSVJournal) RecordDecision(d DecisionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return write(j.decisions, []string{
		d.Time.UTC().Format(time.RFC3339),
		d.Symbol,
		d.Direction,
		d.Strategy,
		strconv.FormatBool(d.Allowed),
		d.Codes,
		d.TradeID,
		d.Context,
	})
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return write(j.equity, []string{
		e.Time.UTC().Format(time.RFC3339),
		f(e.Capital),
		f(e.Realized),
		f(e.Unrealized),
		f(e.Equity),
		strconv.Itoa(e.OpenTrades),
	})
}

func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var first error
	for _, w := range []*csv.Writer{j.trades, j.decisions, j.equity} {
		if w == nil {
			continue
		}
		w.Flush()
		if err := w.Error(); err != nil && first == nil {
			first = err
		}
	}
	for _, fh := range j.files {
		if err := fh.Close(); err != nil && first == nil {
			first = err
		}
	}
	j.files = nil
	return first
}

func write(w *csv.Writer, rec []string) error {
	if err := w.Write(rec); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

// ReadTradesCSV loads trade records written by CSVJournal.
func ReadTradesCSV(r io.Reader) ([]TradeRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(tradeHeader)

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if rows[0][0] == tradeHeader[0] {
		rows = rows[1:]
	}

	out := make([]TradeRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := parseTradeRow(row)
		if err != nil {
			return nil, fmt.Errorf("trades csv row %d: %w", i+1, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseTradeRow(row []string) (TradeRecord, error) {
	var (
		rec  TradeRecord
		err  error
		nums [10]float64
	)
	numCols := []int{5, 6, 7, 8, 9, 10, 11, 14, 15, 16}
	for i, c := range numCols {
		if nums[i], err = strconv.ParseFloat(row[c], 64); err != nil {
			return rec, fmt.Errorf("%s: %w", tradeHeader[c], err)
		}
	}
	if rec.OpenTime, err = time.Parse(time.RFC3339, row[12]); err != nil {
		return rec, fmt.Errorf("open_time: %w", err)
	}
	if rec.CloseTime, err = time.Parse(time.RFC3339, row[13]); err != nil {
		return rec, fmt.Errorf("close_time: %w", err)
	}
	rec.TradeID = row[0]
	rec.Instrument = row[1]
	rec.Direction = row[2]
	rec.Strategy = row[3]
	rec.Pattern = row[4]
	rec.Quantity = nums[0]
	rec.EntryPrice = nums[1]
	rec.ExitPrice = nums[2]
	rec.InitialStop = nums[3]
	rec.StopLoss = nums[4]
	rec.TrailingStop = nums[5]
	rec.Target = nums[6]
	rec.RealizedPL = nums[7]
	rec.MFE = nums[8]
	rec.MAE = nums[9]
	rec.Reason = row[17]
	return rec, nil
}
