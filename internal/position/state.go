package position

import (
	"fmt"
	"log"
	"math"
	"strconv"
	"sync"
	"time"
)

const (
	sizeTolerance  = 1e-4
	entryTolerance = 0.01 // 1% relative
	maxFailures    = 2
)

// RestSnapshot is the polled exchange position, already extracted from the
// wire response. Numeric fields keep the exchange's string encoding.
type RestSnapshot struct {
	Symbol           string
	PositionAmt      string
	EntryPrice       string
	MarkPrice        string
	UnRealizedProfit string
	Leverage         string
}

// LocalState mirrors the exchange position as the bot believes it to be.
type LocalState struct {
	Size          float64
	Side          Side
	AvgEntry      float64
	UnrealizedPnl float64
	LastUpdate    time.Time
	PendingOrder  bool
}

// StateManager reconciles the local position view against polled exchange
// state. Two consecutive reconciliation failures make the bot freeze-eligible.
type StateManager struct {
	mu       sync.Mutex
	local    LocalState
	failures int
}

// NewStateManager creates a state manager starting flat.
func NewStateManager() *StateManager {
	return &StateManager{local: LocalState{Side: SideFlat}}
}

// Local returns a snapshot of the local state.
func (m *StateManager) Local() LocalState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.local
}

// SetLocal overwrites the local view after a fill.
func (m *StateManager) SetLocal(side Side, size, avgEntry float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.local.Side = side
	m.local.Size = size
	m.local.AvgEntry = avgEntry
	m.local.LastUpdate = time.Now()
}

// MarkPending records that an order is in flight.
func (m *StateManager) MarkPending(pending bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.local.PendingOrder = pending
}

// Failures returns the consecutive reconciliation failure count.
func (m *StateManager) Failures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures
}

// FreezeEligible reports whether repeated divergence warrants a trading freeze.
func (m *StateManager) FreezeEligible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures >= maxFailures
}

// UpdateFromRest reconciles the polled snapshot against local state.
// Returns true when the snapshot was accepted (matched or overridden).
func (m *StateManager) UpdateFromRest(snap RestSnapshot) (bool, error) {
	amt, err := strconv.ParseFloat(snap.PositionAmt, 64)
	if err != nil {
		return false, fmt.Errorf("parse positionAmt %q: %w", snap.PositionAmt, err)
	}
	entry, err := strconv.ParseFloat(snap.EntryPrice, 64)
	if err != nil {
		return false, fmt.Errorf("parse entryPrice %q: %w", snap.EntryPrice, err)
	}
	pnl := 0.0
	if snap.UnRealizedProfit != "" {
		if v, err := strconv.ParseFloat(snap.UnRealizedProfit, 64); err == nil {
			pnl = v
		}
	}

	rest := LocalState{
		Size:          math.Abs(amt),
		Side:          sideOfAmt(amt),
		AvgEntry:      entry,
		UnrealizedPnl: pnl,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sizeMatch := math.Abs(rest.Size-m.local.Size) < sizeTolerance
	sideMatch := rest.Side == m.local.Side

	bothFlat := rest.Side == SideFlat && m.local.Side == SideFlat
	entryMatch := true
	if !bothFlat && rest.Side != SideFlat {
		entryMatch = rest.AvgEntry == 0 ||
			math.Abs(rest.AvgEntry-m.local.AvgEntry)/rest.AvgEntry < entryTolerance
	}

	reconciled := sizeMatch && sideMatch && (bothFlat || entryMatch)

	switch {
	case reconciled:
		m.overwrite(rest)
		return true, nil
	case rest.Side == SideFlat && m.local.Side != SideFlat:
		// Position was closed externally; the exchange wins.
		log.Printf("position closed on exchange but open locally, trusting exchange")
		m.overwrite(rest)
		return true, nil
	case rest.Side != SideFlat && m.local.Side == SideFlat:
		// Bot restarted or a position was opened externally; the exchange wins.
		log.Printf("position open on exchange but flat locally, trusting exchange")
		m.overwrite(rest)
		return true, nil
	default:
		m.failures++
		log.Printf("position reconciliation failed (%d/%d): local %s %.4f@%.4f vs rest %s %.4f@%.4f",
			m.failures, maxFailures,
			m.local.Side, m.local.Size, m.local.AvgEntry,
			rest.Side, rest.Size, rest.AvgEntry)
		return false, nil
	}
}

// overwrite replaces the local view and resets the failure counter.
// Caller holds the lock.
func (m *StateManager) overwrite(rest LocalState) {
	pending := m.local.PendingOrder
	m.local = rest
	m.local.PendingOrder = pending
	m.local.LastUpdate = time.Now()
	m.failures = 0
}

func sideOfAmt(amt float64) Side {
	switch {
	case amt > 0:
		return SideLong
	case amt < 0:
		return SideShort
	default:
		return SideFlat
	}
}
