package market

import (
	"context"
	"log"
	"time"

	"github.com/Relic999/aester-dex/internal/events"
	"github.com/Relic999/aester-dex/pkg/exchange/aster"
)

// Feed streams trade prints from the exchange and publishes ticks on the bus.
// It owns reconnection; the stream client closes its channel on read error.
type Feed struct {
	Stream         *aster.StreamClient
	Bus            *events.Bus
	Symbol         string
	ReconnectDelay time.Duration
}

// Start begins streaming. Blocks only briefly; the read loop runs in a goroutine.
func (f *Feed) Start(ctx context.Context) {
	if f.Bus == nil || f.Stream == nil || f.Symbol == "" {
		log.Println("market feed not fully configured; skipping start")
		return
	}
	if f.ReconnectDelay == 0 {
		f.ReconnectDelay = 5 * time.Second
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			ch, stop, err := f.Stream.SubscribeTrades(ctx, f.Symbol)
			if err != nil {
				log.Printf("market feed: subscribe %s error: %v, retrying in %v", f.Symbol, err, f.ReconnectDelay)
				select {
				case <-ctx.Done():
					return
				case <-time.After(f.ReconnectDelay):
				}
				continue
			}

			for trade := range ch {
				f.Bus.Publish(events.EventTick, Tick{
					Time:  trade.Time,
					Price: trade.Price,
					Size:  trade.Qty,
				})
			}
			stop()

			select {
			case <-ctx.Done():
				return
			case <-time.After(f.ReconnectDelay):
				log.Printf("market feed: stream %s closed, reconnecting", f.Symbol)
			}
		}
	}()
}
