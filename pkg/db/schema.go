package db

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS orders (
    id TEXT PRIMARY KEY,
    symbol TEXT NOT NULL,
    side TEXT NOT NULL,
    price REAL NOT NULL,
    size REAL NOT NULL,
    leverage INTEGER DEFAULT 1,
    reason TEXT,
    mode TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS closed_trades (
    id TEXT PRIMARY KEY,
    side TEXT NOT NULL,
    entry_price REAL NOT NULL,
    exit_price REAL NOT NULL,
    size REAL NOT NULL,
    leverage INTEGER DEFAULT 1,
    pnl REAL NOT NULL,
    pnl_pct REAL NOT NULL,
    reason TEXT,
    opened_at DATETIME,
    closed_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_orders_created ON orders(created_at);
CREATE INDEX IF NOT EXISTS idx_closed_trades_closed ON closed_trades(closed_at);
`

// ApplyMigrations creates the schema if it does not exist.
func ApplyMigrations(d *Database) error {
	_, err := d.DB.Exec(schema)
	return err
}
