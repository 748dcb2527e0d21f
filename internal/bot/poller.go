package bot

import (
	"context"
	"log"
	"time"

	"github.com/Relic999/aester-dex/internal/position"
	"github.com/Relic999/aester-dex/pkg/exchange/aster"
)

// SnapshotSource fetches exchange state for reconciliation.
type SnapshotSource interface {
	FetchPosition(ctx context.Context) (position.RestSnapshot, error)
	FetchBalances(ctx context.Context) ([]aster.Balance, error)
}

// RestSource polls the signed REST API for one symbol.
type RestSource struct {
	Client *aster.Client
	Symbol string
}

// FetchPosition returns the position snapshot for the configured symbol.
// When the exchange omits the row entirely a flat snapshot is synthesized,
// since reconciliation relies on seeing "flat" explicitly.
func (r *RestSource) FetchPosition(ctx context.Context) (position.RestSnapshot, error) {
	rows, err := r.Client.GetPositionRisk(ctx, r.Symbol)
	if err != nil {
		return position.RestSnapshot{}, err
	}
	for _, row := range rows {
		if row.Symbol == r.Symbol {
			return position.RestSnapshot{
				Symbol:           row.Symbol,
				PositionAmt:      row.PositionAmt,
				EntryPrice:       row.EntryPrice,
				MarkPrice:        row.MarkPrice,
				UnRealizedProfit: row.UnRealizedProfit,
				Leverage:         row.Leverage,
			}, nil
		}
	}
	return position.RestSnapshot{
		Symbol:      r.Symbol,
		PositionAmt: "0",
		EntryPrice:  "0",
	}, nil
}

// FetchBalances returns the wallet balance list.
func (r *RestSource) FetchBalances(ctx context.Context) ([]aster.Balance, error) {
	return r.Client.GetBalances(ctx)
}

// pollLoop fetches snapshots on a timer and hands them to the serialized
// pipeline through the bot's channels. Slow consumers drop snapshots rather
// than block the poller; the next tick refreshes them anyway.
func (b *Bot) pollLoop(ctx context.Context) {
	interval := b.cfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := b.source.FetchPosition(ctx)
			if err != nil {
				log.Printf("poller: position snapshot error: %v", err)
			} else {
				select {
				case b.posSnaps <- snap:
				default:
				}
			}

			bal, err := b.source.FetchBalances(ctx)
			if err != nil {
				log.Printf("poller: balance snapshot error: %v", err)
			} else {
				select {
				case b.balSnaps <- bal:
				default:
				}
			}
		}
	}
}
