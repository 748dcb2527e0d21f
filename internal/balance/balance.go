package balance

import (
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Relic999/aester-dex/pkg/exchange/aster"
)

// Cache holds the USDT wallet balance. It is written by the snapshot handler
// (or seeded once via Set in dry-run) and read from the orchestrator's entry
// path.
type Cache struct {
	mu        sync.RWMutex
	total     float64
	available float64
	lastSync  time.Time
}

// NewCache creates an empty balance cache.
func NewCache() *Cache {
	return &Cache{}
}

// UpdateFromSnapshot selects the USDT record from a polled balance list.
func (c *Cache) UpdateFromSnapshot(balances []aster.Balance) {
	for _, b := range balances {
		if !strings.EqualFold(b.Asset, "USDT") {
			continue
		}
		total, err := strconv.ParseFloat(b.Balance, 64)
		if err != nil {
			log.Printf("balance: parse %q: %v", b.Balance, err)
			return
		}
		avail := total
		if b.AvailableBalance != "" {
			if v, err := strconv.ParseFloat(b.AvailableBalance, 64); err == nil {
				avail = v
			}
		}

		c.mu.Lock()
		c.total = total
		c.available = avail
		c.lastSync = time.Now()
		c.mu.Unlock()
		return
	}
}

// Set seeds the balance directly (dry-run mode).
func (c *Cache) Set(amount float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total = amount
	c.available = amount
	c.lastSync = time.Now()
}

// Total returns the USDT wallet balance.
func (c *Cache) Total() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.total
}

// Available returns the available USDT balance.
func (c *Cache) Available() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.available
}

// LastSync returns when the balance was last refreshed.
func (c *Cache) LastSync() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSync
}
