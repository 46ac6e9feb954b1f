package replay

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/trade"
)

// Candle CSV columns:
//
//	time,symbol,open,high,low,close[,volume]
//
// Signal CSV columns:
//
//	time,symbol,direction,entry,stop[,target,confidence,strategy,pattern]
//
// A header row (first column "time") is optional. Times are RFC3339.

// ReadCandlesFile reads a candle CSV. Every candle gets timeframe tf and
// is treated as closed.
func ReadCandlesFile(path, tf string) ([]market.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCandles(f, tf)
}

func ReadCandles(r io.Reader, tf string) ([]market.Candle, error) {
	var out []market.Candle
	err := readRows(r, 6, func(line int, row []string) error {
		at, err := parseTime(row[0])
		if err != nil {
			return err
		}
		var px [4]float64
		for i := range px {
			if px[i], err = parseFloat(row[2+i], true); err != nil {
				return fmt.Errorf("%s: %w", []string{"open", "high", "low", "close"}[i], err)
			}
		}
		c := market.Candle{
			Symbol:    strings.TrimSpace(row[1]),
			Timeframe: tf,
			Open:      px[0],
			High:      px[1],
			Low:       px[2],
			Close:     px[3],
			Start:     at,
			Closed:    true,
		}
		if len(row) > 6 {
			if c.Volume, err = parseFloat(row[6], false); err != nil {
				return fmt.Errorf("volume: %w", err)
			}
		}
		out = append(out, c)
		return nil
	})
	return out, err
}

func ReadSignalsFile(path string) ([]trade.Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSignals(f)
}

func ReadSignals(r io.Reader) ([]trade.Signal, error) {
	var out []trade.Signal
	err := readRows(r, 5, func(line int, row []string) error {
		at, err := parseTime(row[0])
		if err != nil {
			return err
		}
		dir, err := trade.ParseDirection(row[2])
		if err != nil {
			return err
		}
		sig := trade.Signal{Symbol: strings.TrimSpace(row[1]), Direction: dir, Time: at}
		if sig.EntryPrice, err = parseFloat(row[3], true); err != nil {
			return fmt.Errorf("entry: %w", err)
		}
		if sig.StopLoss, err = parseFloat(row[4], true); err != nil {
			return fmt.Errorf("stop: %w", err)
		}
		if len(row) > 5 {
			if sig.Target, err = parseFloat(row[5], false); err != nil {
				return fmt.Errorf("target: %w", err)
			}
		}
		if len(row) > 6 {
			if sig.Confidence, err = parseFloat(row[6], false); err != nil {
				return fmt.Errorf("confidence: %w", err)
			}
		}
		if len(row) > 7 {
			sig.Strategy = strings.TrimSpace(row[7])
		}
		if len(row) > 8 {
			sig.Pattern = strings.TrimSpace(row[8])
		}
		out = append(out, sig)
		return nil
	})
	return out, err
}

func readRows(r io.Reader, minCols int, fn func(line int, row []string) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line++
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "time") {
			continue
		}
		if len(row) < minCols {
			return fmt.Errorf("line %d: need at least %d columns, got %d", line, minCols, len(row))
		}
		if err := fn(line, row); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("bad time %q: %w", s, err)
	}
	return t, nil
}

// parseFloat parses a price column. Empty is 0 unless required.
func parseFloat(s string, required bool) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		if required {
			return 0, fmt.Errorf("missing value")
		}
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", s)
	}
	return v, nil
}
