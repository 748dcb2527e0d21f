package stats

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Relic999/aester-dex/internal/position"
)

// TradeRecord is a closed trade. Records are append-only.
type TradeRecord struct {
	ID         string        `json:"id"`
	Side       position.Side `json:"side"`
	EntryPrice float64       `json:"entryPrice"`
	ExitPrice  float64       `json:"exitPrice"`
	Size       float64       `json:"size"`
	Leverage   int           `json:"leverage"`
	OpenedAt   time.Time     `json:"openedAt"`
	ClosedAt   time.Time     `json:"closedAt"`
	PnL        float64       `json:"pnl"`
	PnLPct     float64       `json:"pnlPct"`
	Reason     string        `json:"reason"`
}

// Summary aggregates the closed-trade history.
type Summary struct {
	TotalTrades  int     `json:"totalTrades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"winRate"` // percent
	TotalPnL     float64 `json:"totalPnl"`
	AvgWin       float64 `json:"avgWin"`
	AvgLoss      float64 `json:"avgLoss"` // positive magnitude
	ProfitFactor float64 `json:"profitFactor"`
	MaxDrawdown  float64 `json:"maxDrawdown"`
	LargestWin   float64 `json:"largestWin"`
	LargestLoss  float64 `json:"largestLoss"` // negative
}

// Tracker owns per-trade PnL accounting and rolling aggregates.
type Tracker struct {
	mu     sync.Mutex
	open   *TradeRecord
	closed []TradeRecord
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// StartTrade opens a pending record. An already-open record is replaced;
// the orchestrator closes positions before flipping, so this only happens
// when a close slipped past us.
func (t *Tracker) StartTrade(side position.Side, entryPrice, size float64, leverage int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open = &TradeRecord{
		ID:         uuid.NewString(),
		Side:       side,
		EntryPrice: entryPrice,
		Size:       size,
		Leverage:   leverage,
		OpenedAt:   time.Now(),
	}
}

// CloseTrade finalizes the pending record. Returns nil when no trade is open.
func (t *Tracker) CloseTrade(exitPrice float64, reason string) *TradeRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open == nil {
		return nil
	}

	rec := *t.open
	t.open = nil

	rec.ExitPrice = exitPrice
	rec.ClosedAt = time.Now()
	rec.Reason = reason

	priceDiff := exitPrice - rec.EntryPrice
	if rec.Side == position.SideShort {
		priceDiff = rec.EntryPrice - exitPrice
	}
	rec.PnL = priceDiff * rec.Size
	if rec.EntryPrice != 0 {
		rec.PnLPct = priceDiff / rec.EntryPrice * 100 * float64(rec.Leverage)
	}

	t.closed = append(t.closed, rec)
	return &rec
}

// HasOpen reports whether a trade is currently pending.
func (t *Tracker) HasOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open != nil
}

// Closed returns a copy of the closed-trade history.
func (t *Tracker) Closed() []TradeRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TradeRecord, len(t.closed))
	copy(out, t.closed)
	return out
}

// Summarize computes the aggregate metrics over all closed trades.
func (t *Tracker) Summarize() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Summary{TotalTrades: len(t.closed)}
	if s.TotalTrades == 0 {
		return s
	}

	var grossWin, grossLoss float64
	var cum, peak float64
	for _, rec := range t.closed {
		s.TotalPnL += rec.PnL
		if rec.PnL > 0 {
			s.Wins++
			grossWin += rec.PnL
			if rec.PnL > s.LargestWin {
				s.LargestWin = rec.PnL
			}
		} else if rec.PnL < 0 {
			s.Losses++
			grossLoss += -rec.PnL
			if rec.PnL < s.LargestLoss {
				s.LargestLoss = rec.PnL
			}
		}

		cum += rec.PnL
		if cum > peak {
			peak = cum
		}
		if dd := peak - cum; dd > s.MaxDrawdown {
			s.MaxDrawdown = dd
		}
	}

	s.WinRate = float64(s.Wins) / float64(s.TotalTrades) * 100
	if s.Wins > 0 {
		s.AvgWin = grossWin / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = grossLoss / float64(s.Losses)
	}

	switch {
	case s.Wins == 0:
		s.ProfitFactor = 0
	case grossLoss == 0:
		s.ProfitFactor = math.Inf(1)
	default:
		s.ProfitFactor = grossWin / grossLoss
	}
	return s
}
