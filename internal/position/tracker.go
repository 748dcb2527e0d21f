package position

import (
	"log"
	"math"
	"sync"
	"time"
)

const orderExpiry = 30 * time.Second

// PendingOrder is an order awaiting confirmation by an observed position change.
type PendingOrder struct {
	ID          string
	Side        Side
	Size        float64
	Price       float64
	Timestamp   time.Time
	Confirmed   bool
	ConfirmedAt time.Time
	expiresAt   time.Time
}

// OrderTracker keeps pending-order bookkeeping. Unconfirmed orders expire
// after 30 seconds; expiry is checked on each reconciliation pass rather than
// with per-order timers.
type OrderTracker struct {
	mu     sync.Mutex
	orders map[string]*PendingOrder
}

// NewOrderTracker creates an empty tracker.
func NewOrderTracker() *OrderTracker {
	return &OrderTracker{orders: make(map[string]*PendingOrder)}
}

// TrackOrder registers a freshly submitted order.
func (t *OrderTracker) TrackOrder(id string, side Side, size, price float64, ts time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.orders[id] = &PendingOrder{
		ID:        id,
		Side:      side,
		Size:      size,
		Price:     price,
		Timestamp: ts,
		expiresAt: ts.Add(orderExpiry),
	}
}

// ConfirmByPositionChange confirms the first (earliest tracked) unconfirmed
// order matching the observed side and size. Returns the confirmed order, or nil.
func (t *OrderTracker) ConfirmByPositionChange(side Side, size float64) *PendingOrder {
	t.mu.Lock()
	defer t.mu.Unlock()
	var first *PendingOrder
	for _, o := range t.orders {
		if o.Confirmed || o.Side != side || math.Abs(o.Size-size) >= sizeTolerance {
			continue
		}
		if first == nil || o.Timestamp.Before(first.Timestamp) {
			first = o
		}
	}
	if first != nil {
		first.Confirmed = true
		first.ConfirmedAt = time.Now()
	}
	return first
}

// ExpireStale purges unconfirmed orders past their deadline, returning them.
func (t *OrderTracker) ExpireStale(now time.Time) []*PendingOrder {
	t.mu.Lock()
	defer t.mu.Unlock()
	var expired []*PendingOrder
	for id, o := range t.orders {
		if o.Confirmed {
			continue
		}
		if now.After(o.expiresAt) {
			log.Printf("pending order %s expired unconfirmed (%s %.4f)", o.ID, o.Side, o.Size)
			expired = append(expired, o)
			delete(t.orders, id)
		}
	}
	return expired
}

// Clear drops all pending orders (used when the exchange reports flat).
func (t *OrderTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.orders = make(map[string]*PendingOrder)
}

// Pending returns the number of tracked orders.
func (t *OrderTracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.orders)
}
