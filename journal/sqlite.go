package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// One writer; instruments close trades concurrently.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, instrument, direction, strategy, pattern, quantity, entry_price, exit_price,
		 initial_stop, stop_loss, trailing_stop, target, open_time, close_time, realized_pl, mfe, mae, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.Instrument, t.Direction, t.Strategy, t.Pattern, t.Quantity, t.EntryPrice, t.ExitPrice,
		t.InitialStop, t.StopLoss, t.TrailingStop, t.Target, t.OpenTime.UTC(), t.CloseTime.UTC(),
		t.RealizedPL, t.MFE, t.MAE, t.Reason,
	)
	return err
}

func (j *SQLite) RecordDecision(d DecisionRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO decisions
		(time, symbol, direction, strategy, allowed, codes, trade_id, context)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Time.UTC(), d.Symbol, d.Direction, d.Strategy, d.Allowed, d.Codes, d.TradeID, d.Context,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(time, capital, realized, unrealized, equity, open_trades)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Time.UTC(), e.Capital, e.Realized, e.Unrealized, e.Equity, e.OpenTrades,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
