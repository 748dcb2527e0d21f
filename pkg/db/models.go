package db

import (
	"context"
	"time"
)

// Order represents a submitted order stored in the DB.
type Order struct {
	ID        string
	Symbol    string
	Side      string
	Price     float64
	Size      float64
	Leverage  int
	Reason    string
	Mode      string // live or dry-run
	Status    string
	CreatedAt time.Time
}

// ClosedTrade is a finalized round trip stored in the DB.
type ClosedTrade struct {
	ID         string
	Side       string
	EntryPrice float64
	ExitPrice  float64
	Size       float64
	Leverage   int
	PnL        float64
	PnLPct     float64
	Reason     string
	OpenedAt   time.Time
	ClosedAt   time.Time
}

// CreateOrder inserts a new order row.
func (d *Database) CreateOrder(ctx context.Context, o Order) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO orders (
			id, symbol, side, price, size, leverage, reason, mode, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
	`,
		o.ID, o.Symbol, o.Side, o.Price, o.Size, o.Leverage, o.Reason, o.Mode, o.Status, o.CreatedAt,
	)
	return err
}

// CreateClosedTrade inserts a finalized trade row.
func (d *Database) CreateClosedTrade(ctx context.Context, t ClosedTrade) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO closed_trades (
			id, side, entry_price, exit_price, size, leverage, pnl, pnl_pct, reason, opened_at, closed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
	`,
		t.ID, t.Side, t.EntryPrice, t.ExitPrice, t.Size, t.Leverage, t.PnL, t.PnLPct, t.Reason, t.OpenedAt, t.ClosedAt,
	)
	return err
}

// ListClosedTrades returns the most recent closed trades.
func (d *Database) ListClosedTrades(ctx context.Context, limit int) ([]ClosedTrade, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, side, entry_price, exit_price, size, leverage, pnl, pnl_pct, reason, opened_at, closed_at
		FROM closed_trades ORDER BY closed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []ClosedTrade
	for rows.Next() {
		var t ClosedTrade
		if err := rows.Scan(&t.ID, &t.Side, &t.EntryPrice, &t.ExitPrice, &t.Size, &t.Leverage, &t.PnL, &t.PnLPct, &t.Reason, &t.OpenedAt, &t.ClosedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// ListRecentOrders returns the most recent submitted orders.
func (d *Database) ListRecentOrders(ctx context.Context, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, symbol, side, price, size, leverage, reason, mode, status, created_at
		FROM orders ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.Symbol, &o.Side, &o.Price, &o.Size, &o.Leverage, &o.Reason, &o.Mode, &o.Status, &o.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}
