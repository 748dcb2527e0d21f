package order

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Relic999/aester-dex/internal/events"
	"github.com/Relic999/aester-dex/internal/position"
	"github.com/Relic999/aester-dex/pkg/db"
)

// DryRunExecutor records entries in memory and never touches the exchange.
// Orders are still journaled to the database and emitted on the bus so the
// downstream pipeline behaves exactly as in live mode.
type DryRunExecutor struct {
	DB  *db.Database
	Bus *events.Bus

	mu      sync.Mutex
	entries []DryRunEntry
}

// DryRunEntry is one simulated execution.
type DryRunEntry struct {
	Instruction Instruction
	Action      string // ENTER or CLOSE
	Reason      string
	At          time.Time
}

// NewDryRunExecutor builds a dry-run executor.
func NewDryRunExecutor(database *db.Database, bus *events.Bus) *DryRunExecutor {
	return &DryRunExecutor{DB: database, Bus: bus}
}

// EnterLong simulates a market buy.
func (d *DryRunExecutor) EnterLong(ctx context.Context, ins Instruction) error {
	return d.enter(ctx, ins, "BUY")
}

// EnterShort simulates a market sell.
func (d *DryRunExecutor) EnterShort(ctx context.Context, ins Instruction) error {
	return d.enter(ctx, ins, "SELL")
}

func (d *DryRunExecutor) enter(ctx context.Context, ins Instruction, side string) error {
	if d.Bus != nil {
		d.Bus.Publish(events.EventOrderSubmitted, ins)
	}

	d.mu.Lock()
	d.entries = append(d.entries, DryRunEntry{Instruction: ins, Action: "ENTER", At: time.Now()})
	d.mu.Unlock()

	if d.DB != nil {
		row := db.Order{
			ID:        ins.ID,
			Symbol:    ins.Symbol,
			Side:      side,
			Price:     ins.Price,
			Size:      ins.Size,
			Leverage:  ins.Leverage,
			Reason:    ins.SignalReason,
			Mode:      "dry-run",
			Status:    "FILLED",
			CreatedAt: ins.Timestamp,
		}
		if err := d.DB.CreateOrder(ctx, row); err != nil {
			log.Printf("DRY-RUN: store order error: %v", err)
		}
	}

	log.Printf("DRY-RUN: %s %s size=%.2f @ %.4f (%s)", side, ins.Symbol, ins.Size, ins.Price, ins.SignalReason)
	if d.Bus != nil {
		d.Bus.Publish(events.EventOrderFilled, ins)
	}
	return nil
}

// ClosePosition simulates flattening the held position.
func (d *DryRunExecutor) ClosePosition(ctx context.Context, reason string, pos position.Position, meta CloseMeta) error {
	if pos.Flat() {
		return nil
	}
	d.mu.Lock()
	d.entries = append(d.entries, DryRunEntry{Action: "CLOSE", Reason: reason, At: time.Now()})
	d.mu.Unlock()

	price := meta.Price
	if price == 0 {
		price = meta.Close
	}
	log.Printf("DRY-RUN: closed %s size=%.2f @ %.4f reason=%s", pos.Side, pos.Size, price, reason)
	return nil
}

// Entries returns a copy of the simulated execution history.
func (d *DryRunExecutor) Entries() []DryRunEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DryRunEntry, len(d.entries))
	copy(out, d.entries)
	return out
}
