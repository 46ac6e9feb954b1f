package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/papertrader/trade"
)

const tradeColumns = `trade_id, instrument, direction, strategy, pattern, quantity, entry_price, exit_price,
	initial_stop, stop_loss, trailing_stop, target, open_time, close_time, realized_pl, mfe, mae, reason`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (TradeRecord, error) {
	var rec TradeRecord
	err := s.Scan(
		&rec.TradeID,
		&rec.Instrument,
		&rec.Direction,
		&rec.Strategy,
		&rec.Pattern,
		&rec.Quantity,
		&rec.EntryPrice,
		&rec.ExitPrice,
		&rec.InitialStop,
		&rec.StopLoss,
		&rec.TrailingStop,
		&rec.Target,
		&rec.OpenTime,
		&rec.CloseTime,
		&rec.RealizedPL,
		&rec.MFE,
		&rec.MAE,
		&rec.Reason,
	)
	return rec, err
}

// GetTrade returns a single trade record by ID.
func (j *SQLite) GetTrade(tradeID string) (TradeRecord, error) {
	row := j.db.QueryRow(`SELECT `+tradeColumns+` FROM trades WHERE trade_id = ?`, tradeID)
	rec, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TradeRecord{}, fmt.Errorf("trade %q not found", tradeID)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// ListTradesClosedBetween returns trades whose close_time is within [start, end).
func (j *SQLite) ListTradesClosedBetween(start, end time.Time) ([]TradeRecord, error) {
	return j.ListTrades(trade.Filter{From: start, To: end})
}

// ListTrades returns trades matching f ordered by close time. Outcome
// follows the dashboard: a win is strictly positive P&L.
func (j *SQLite) ListTrades(f trade.Filter) ([]TradeRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.Symbol != "" {
		where = append(where, "instrument = ? COLLATE NOCASE")
		args = append(args, f.Symbol)
	}
	if f.Strategy != "" {
		where = append(where, "strategy = ? COLLATE NOCASE")
		args = append(args, f.Strategy)
	}
	switch f.Outcome {
	case trade.OutcomeWin:
		where = append(where, "realized_pl > 0")
	case trade.OutcomeLoss:
		where = append(where, "realized_pl <= 0")
	}
	if !f.From.IsZero() {
		where = append(where, "close_time >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		where = append(where, "close_time < ?")
		args = append(args, f.To.UTC())
	}

	q := `SELECT ` + tradeColumns + ` FROM trades`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY close_time ASC"

	rows, err := j.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListDecisionsBetween returns admission decisions within [start, end).
func (j *SQLite) ListDecisionsBetween(start, end time.Time) ([]DecisionRecord, error) {
	rows, err := j.db.Query(`
		SELECT time, symbol, direction, strategy, allowed, codes, trade_id, context
		FROM decisions
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		if err := rows.Scan(
			&rec.Time,
			&rec.Symbol,
			&rec.Direction,
			&rec.Strategy,
			&rec.Allowed,
			&rec.Codes,
			&rec.TradeID,
			&rec.Context,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (j *SQLite) ListEquityBetween(start, end time.Time) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT time, capital, realized, unrealized, equity, open_trades
		FROM equity
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var rec EquitySnapshot
		if err := rows.Scan(
			&rec.Time,
			&rec.Capital,
			&rec.Realized,
			&rec.Unrealized,
			&rec.Equity,
			&rec.OpenTrades,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
