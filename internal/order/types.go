package order

import (
	"time"

	"github.com/Relic999/aester-dex/internal/position"
)

// Instruction is a market-style trade instruction handed to an executor.
type Instruction struct {
	ID           string
	Symbol       string
	Side         position.Side
	Size         float64
	Leverage     int
	Price        float64 // reference price at signal time
	SignalReason string
	Timestamp    time.Time
}

// CloseMeta carries context for a close; the exit price is derived from it.
type CloseMeta struct {
	Close float64 // closing bar price, when the exit came from a bar
	Price float64 // explicit price, when known
}
