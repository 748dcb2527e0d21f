package market

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/Relic999/aester-dex/internal/events"
)

// MockFeed generates synthetic trade ticks for local development and dry-run.
type MockFeed struct {
	Bus        *events.Bus
	StartPrice float64
	Step       float64
	Interval   time.Duration
}

func (m *MockFeed) Start(ctx context.Context) {
	if m.Bus == nil {
		log.Println("mock feed: bus not set")
		return
	}
	price := m.StartPrice
	if price == 0 {
		price = 100.0
	}
	if m.Step == 0 {
		m.Step = 0.5
	}
	if m.Interval == 0 {
		m.Interval = time.Second
	}

	go func() {
		t := time.NewTicker(m.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				// simple random walk
				price += (rand.Float64()*2 - 1) * m.Step
				m.Bus.Publish(events.EventTick, Tick{
					Time:  time.Now().UnixMilli(),
					Price: price,
					Size:  rand.Float64() * 2,
				})
			}
		}
	}()
}
