package common

import (
	"context"
	"log"
	"sync"
	"time"
)

// TimeSync manages time synchronization with an exchange server.
type TimeSync struct {
	getServerTime func() (int64, error)
	offset        int64 // milliseconds offset (server - local)
	lastSync      time.Time
	syncInterval  time.Duration
	mu            sync.RWMutex
}

// NewTimeSync creates a new time synchronization manager.
func NewTimeSync(getServerTime func() (int64, error)) *TimeSync {
	return &TimeSync{
		getServerTime: getServerTime,
		syncInterval:  30 * time.Minute,
	}
}

// Start begins periodic time synchronization.
func (ts *TimeSync) Start(ctx context.Context) {
	if err := ts.Sync(ctx); err != nil {
		log.Printf("initial time sync failed: %v", err)
	}

	go func() {
		ticker := time.NewTicker(ts.syncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ts.Sync(ctx); err != nil {
					log.Printf("time sync failed: %v", err)
				}
			}
		}
	}()
}

// Sync fetches server time once and records the offset.
func (ts *TimeSync) Sync(ctx context.Context) error {
	serverTime, err := ts.getServerTime()
	if err != nil {
		return err
	}

	ts.mu.Lock()
	ts.offset = serverTime - time.Now().UnixMilli()
	ts.lastSync = time.Now()
	ts.mu.Unlock()
	return nil
}

// Offset returns the current server-local offset in milliseconds.
func (ts *TimeSync) Offset() int64 {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.offset
}

// Now returns the current time adjusted to the server clock, in milliseconds.
func (ts *TimeSync) Now() int64 {
	return time.Now().UnixMilli() + ts.Offset()
}
