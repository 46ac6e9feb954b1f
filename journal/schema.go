// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	instrument TEXT NOT NULL,
	direction TEXT NOT NULL,
	strategy TEXT NOT NULL DEFAULT '',
	pattern TEXT NOT NULL DEFAULT '',
	quantity REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	initial_stop REAL NOT NULL,
	stop_loss REAL NOT NULL,
	trailing_stop REAL NOT NULL DEFAULT 0,
	target REAL NOT NULL DEFAULT 0,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	realized_pl REAL NOT NULL,
	mfe REAL NOT NULL DEFAULT 0,
	mae REAL NOT NULL DEFAULT 0,
	reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_close_time ON trades(close_time);

CREATE TABLE IF NOT EXISTS decisions (
	time DATETIME NOT NULL,
	symbol TEXT NOT NULL,
	direction TEXT NOT NULL,
	strategy TEXT NOT NULL DEFAULT '',
	allowed INTEGER NOT NULL,
	codes TEXT NOT NULL DEFAULT '',
	trade_id TEXT NOT NULL DEFAULT '',
	context TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_time ON decisions(time);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	capital REAL NOT NULL,
	realized REAL NOT NULL,
	unrealized REAL NOT NULL,
	equity REAL NOT NULL,
	open_trades INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`
