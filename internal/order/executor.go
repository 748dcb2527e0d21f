package order

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Relic999/aester-dex/internal/events"
	"github.com/Relic999/aester-dex/internal/position"
	"github.com/Relic999/aester-dex/pkg/db"
	"github.com/Relic999/aester-dex/pkg/exchange/aster"
)

// Executor turns trade instructions into exchange actions. All calls may
// fail; balance-related failures are recoverable and classified by the bot.
type Executor interface {
	EnterLong(ctx context.Context, ins Instruction) error
	EnterShort(ctx context.Context, ins Instruction) error
	ClosePosition(ctx context.Context, reason string, pos position.Position, meta CloseMeta) error
}

// LiveExecutor submits real market orders through the exchange client and
// journals them to the database.
type LiveExecutor struct {
	Client *aster.Client
	DB     *db.Database
	Bus    *events.Bus
	Symbol string

	leverageSet int // last leverage pushed to the exchange
}

// NewLiveExecutor builds a live executor.
func NewLiveExecutor(client *aster.Client, database *db.Database, bus *events.Bus, symbol string) *LiveExecutor {
	return &LiveExecutor{Client: client, DB: database, Bus: bus, Symbol: symbol}
}

// EnterLong opens or extends a long with a market buy.
func (e *LiveExecutor) EnterLong(ctx context.Context, ins Instruction) error {
	return e.enter(ctx, ins, "BUY")
}

// EnterShort opens or extends a short with a market sell.
func (e *LiveExecutor) EnterShort(ctx context.Context, ins Instruction) error {
	return e.enter(ctx, ins, "SELL")
}

func (e *LiveExecutor) enter(ctx context.Context, ins Instruction, side string) error {
	if e.Bus != nil {
		e.Bus.Publish(events.EventOrderSubmitted, ins)
	}

	if ins.Leverage > 0 && ins.Leverage != e.leverageSet {
		if err := e.Client.SetLeverage(ctx, e.Symbol, ins.Leverage); err != nil {
			log.Printf("executor: set leverage %dx failed: %v", ins.Leverage, err)
		} else {
			e.leverageSet = ins.Leverage
		}
	}

	qty := ins.Size
	if ins.Price > 0 {
		// Size is notional USDT; the exchange wants base quantity.
		qty = ins.Size / ins.Price
	}

	ack, err := e.Client.SubmitMarketOrder(ctx, e.Symbol, side, qty, ins.ID, false)
	e.journal(ctx, ins, side, err)
	if err != nil {
		if e.Bus != nil {
			e.Bus.Publish(events.EventOrderRejected, err.Error())
		}
		return fmt.Errorf("submit %s: %w", side, err)
	}

	log.Printf("executor: %s %s qty=%.6f order=%d status=%s", side, e.Symbol, qty, ack.OrderID, ack.Status)
	if e.Bus != nil {
		e.Bus.Publish(events.EventOrderFilled, ins)
	}
	return nil
}

// ClosePosition flattens the held position with a reduce-only market order.
func (e *LiveExecutor) ClosePosition(ctx context.Context, reason string, pos position.Position, meta CloseMeta) error {
	if pos.Flat() || pos.Size == 0 {
		return nil
	}
	side := "SELL"
	if pos.Side == position.SideShort {
		side = "BUY"
	}

	price := meta.Price
	if price == 0 {
		price = meta.Close
	}
	qty := pos.Size
	if price > 0 {
		qty = pos.Size / price
	}

	clientID := fmt.Sprintf("close-%d", time.Now().UnixMilli())
	ack, err := e.Client.SubmitMarketOrder(ctx, e.Symbol, side, qty, clientID, true)
	if err != nil {
		return fmt.Errorf("close (%s): %w", reason, err)
	}
	log.Printf("executor: closed %s %s qty=%.6f order=%d reason=%s", pos.Side, e.Symbol, qty, ack.OrderID, reason)
	return nil
}

// journal stores the order row; failures are logged, never fatal.
func (e *LiveExecutor) journal(ctx context.Context, ins Instruction, side string, execErr error) {
	if e.DB == nil {
		return
	}
	status := "FILLED"
	if execErr != nil {
		status = "REJECTED"
	}
	row := db.Order{
		ID:        ins.ID,
		Symbol:    e.Symbol,
		Side:      side,
		Price:     ins.Price,
		Size:      ins.Size,
		Leverage:  ins.Leverage,
		Reason:    ins.SignalReason,
		Mode:      "live",
		Status:    status,
		CreatedAt: ins.Timestamp,
	}
	if err := e.DB.CreateOrder(ctx, row); err != nil {
		log.Printf("executor: store order error: %v", err)
	}
}
