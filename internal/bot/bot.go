package bot

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Relic999/aester-dex/internal/balance"
	"github.com/Relic999/aester-dex/internal/events"
	"github.com/Relic999/aester-dex/internal/market"
	"github.com/Relic999/aester-dex/internal/monitor"
	"github.com/Relic999/aester-dex/internal/order"
	"github.com/Relic999/aester-dex/internal/position"
	"github.com/Relic999/aester-dex/internal/risk"
	"github.com/Relic999/aester-dex/internal/stats"
	"github.com/Relic999/aester-dex/internal/strategy"
	"github.com/Relic999/aester-dex/pkg/db"
	"github.com/Relic999/aester-dex/pkg/exchange/aster"
)

const (
	// WarmupBars suppresses trading until indicators stabilize.
	WarmupBars = 10
	// MinHoldBars is the minimum bars between entering and flipping.
	MinHoldBars = 6

	freezeDuration = 60 * time.Second
	dedupLimit     = 100

	minOrderSize = 5.0
	maxOrderSize = 500.0
	sizingBuffer = 0.7 // fraction of the balance slice actually deployed
)

// Config carries the orchestrator's runtime parameters.
type Config struct {
	Symbol      string
	Strategy    string // trend or hybrid
	TimeframeMs int64
	DryRun      bool

	MaxPositionSize       float64
	MaxLeverage           int
	MaxFlipsPerHour       int
	StopLossPct           float64
	TakeProfitPct         float64
	UseStopLoss           bool
	EmergencyStopLoss     float64
	PositionSizePct       float64
	RequireTrendingMarket bool
	ADXThreshold          float64

	PollInterval time.Duration
}

// Deps bundles the collaborators wired in from main.
type Deps struct {
	Bus      *events.Bus
	Engine   strategy.Engine
	Executor order.Executor
	StateMgr *position.StateManager
	Tracker  *position.OrderTracker
	Stats    *stats.Tracker
	TradeLog *stats.TradeLog
	DB       *db.Database
	Balance  *balance.Cache
	Metrics  *monitor.Metrics
	Warm     *WarmStore
	Source   SnapshotSource // nil in dry-run: reconciliation is skipped
}

// Bot owns the serialized trading pipeline: tick handling, bar closes,
// signal application, protective exits, and reconciliation all run on one
// goroutine so there is exactly one in-flight position-changing action.
type Bot struct {
	cfg    Config
	hybrid bool

	bus      *events.Bus
	engine   strategy.Engine
	executor order.Executor
	stateMgr *position.StateManager
	tracker  *position.OrderTracker
	stats    *stats.Tracker
	tradeLog *stats.TradeLog
	db       *db.Database
	balance  *balance.Cache
	metrics  *monitor.Metrics
	warm     *WarmStore
	source   SnapshotSource

	bars  *market.BarBuilder
	stops *risk.StopEvaluator
	flips *risk.FlipBudget

	// Pipeline state, owned by the run goroutine.
	pos              position.Position
	lastBarCloseTime int64
	barCount         int64
	positionOpenedAt int64
	frozen           bool
	freezeUntil      time.Time
	processed        map[string]struct{}
	processedFIFO    []string

	posSnaps chan position.RestSnapshot
	balSnaps chan []aster.Balance
	done     chan struct{}
}

// New wires the orchestrator. The strategy engine and executor are chosen by
// the caller; the bot is mode-agnostic apart from the dry-run balance bypass.
func New(cfg Config, deps Deps) (*Bot, error) {
	bars, err := market.NewBarBuilder(cfg.TimeframeMs)
	if err != nil {
		return nil, err
	}

	hybrid := cfg.Strategy == "hybrid"
	stops := risk.NewStopEvaluator(risk.StopConfig{
		TrailingEnabled:       hybrid,
		TrailingActivationPct: 0.5,
		TrailingDistancePct:   0.5,
		EmergencyEnabled:      hybrid || cfg.UseStopLoss,
		EmergencyStopPct:      cfg.EmergencyStopLoss,
		StopLossEnabled:       cfg.UseStopLoss,
		StopLossPct:           cfg.StopLossPct,
		TakeProfitPct:         cfg.TakeProfitPct,
	})

	return &Bot{
		cfg:       cfg,
		hybrid:    hybrid,
		bus:       deps.Bus,
		engine:    deps.Engine,
		executor:  deps.Executor,
		stateMgr:  deps.StateMgr,
		tracker:   deps.Tracker,
		stats:     deps.Stats,
		tradeLog:  deps.TradeLog,
		db:        deps.DB,
		balance:   deps.Balance,
		metrics:   deps.Metrics,
		warm:      deps.Warm,
		source:    deps.Source,
		bars:      bars,
		stops:     stops,
		flips:     risk.NewFlipBudget(cfg.MaxFlipsPerHour),
		pos:       position.Position{Side: position.SideFlat},
		processed: make(map[string]struct{}),
		posSnaps:  make(chan position.RestSnapshot, 1),
		balSnaps:  make(chan []aster.Balance, 1),
		done:      make(chan struct{}),
	}, nil
}

// Position returns the current local position.
func (b *Bot) Position() position.Position {
	return b.pos
}

// Frozen reports whether new entries are currently suspended.
func (b *Bot) Frozen() bool {
	return b.frozen && time.Now().Before(b.freezeUntil)
}

// BarCount returns the number of closed bars processed.
func (b *Bot) BarCount() int64 {
	return b.barCount
}

// Done is closed once the pipeline goroutine has exited.
func (b *Bot) Done() <-chan struct{} {
	return b.done
}

// Start restores warm state, begins the snapshot poller, and launches the
// pipeline goroutine consuming ticks from the bus.
func (b *Bot) Start(ctx context.Context) {
	if st := b.warm.Load(); st != nil {
		b.pos = st.Position
		b.lastBarCloseTime = st.LastBarCloseTime
		if !b.pos.Flat() {
			b.stateMgr.SetLocal(b.pos.Side, b.pos.Size, b.pos.EntryPrice)
			b.engine.SetPositionSide(b.pos.Side)
		}
		b.logf("✓ warm state restored: %s size=%.2f lastBar=%d", b.pos.Side, b.pos.Size, st.LastBarCloseTime)
	} else {
		b.logf("starting cold: no usable warm state")
	}

	if b.source != nil {
		go b.pollLoop(ctx)
	}

	ticks, unsub := b.bus.Subscribe(events.EventTick, 1024)
	go b.run(ctx, ticks, unsub)
}

// run is the single serialized pipeline loop.
func (b *Bot) run(ctx context.Context, ticks <-chan any, unsub func()) {
	defer close(b.done)
	defer b.bus.Publish(events.EventStop, struct{}{})
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			b.logf("shutting down, %d bars processed", b.barCount)
			return
		case msg, ok := <-ticks:
			if !ok {
				return
			}
			if t, valid := msg.(market.Tick); valid {
				b.onTick(ctx, t)
			}
		case snap := <-b.posSnaps:
			b.onPositionSnapshot(snap)
		case bal := <-b.balSnaps:
			b.onBalanceSnapshot(bal)
		}
	}
}

// onTick folds the tick into the bar builder and hands closed bars to the
// pipeline.
func (b *Bot) onTick(ctx context.Context, t market.Tick) {
	if b.metrics != nil {
		b.metrics.TicksProcessed.Inc()
	}

	if closed, _ := b.bars.PushTick(t); closed != nil {
		b.handleBarClose(ctx, *closed)
	}
}

// handleBarClose runs the gate chain and the strategy engine for one bar.
// Protective exits run before signal logic, but only for bars that pass the
// monotonic gate: a replayed bar carries stale prices no exit should act on.
func (b *Bot) handleBarClose(ctx context.Context, bar market.SyntheticBar) {
	// Monotonic gate: replayed or duplicate bars are dropped.
	if bar.EndTime <= b.lastBarCloseTime {
		return
	}
	b.lastBarCloseTime = bar.EndTime
	b.barCount++
	if b.metrics != nil {
		b.metrics.BarsClosed.Inc()
	}
	b.bus.Publish(events.EventBarClose, bar)

	b.checkProtectiveExits(ctx, bar)

	// Warmup gate.
	if b.barCount <= WarmupBars {
		if b.barCount == 1 {
			b.logf("warmup started: suppressing trading for %d bars", WarmupBars)
		}
		if b.barCount == WarmupBars {
			b.logf("warmup complete after %d bars", WarmupBars)
		}
		return
	}

	// Freeze gate.
	if b.frozen {
		if time.Now().Before(b.freezeUntil) {
			return
		}
		b.frozen = false
		b.logf("trading unfrozen")
	}

	sig, exit := b.engine.OnBarClose(bar)

	// Exit-first: a triggered exit consumes the bar and discards any signal.
	if !b.pos.Flat() && exit != nil {
		b.closePosition(ctx, exit.Reason, order.CloseMeta{Close: bar.Close})
		return
	}

	if sig == nil {
		return
	}

	// Signal dedup, bounded FIFO.
	key := fmt.Sprintf("%s-%d", sig.Type, bar.EndTime)
	if _, seen := b.processed[key]; seen {
		return
	}
	b.processed[key] = struct{}{}
	b.processedFIFO = append(b.processedFIFO, key)
	if len(b.processedFIFO) > dedupLimit {
		oldest := b.processedFIFO[0]
		b.processedFIFO = b.processedFIFO[1:]
		delete(b.processed, oldest)
	}

	b.bus.Publish(events.EventSignal, *sig)
	if b.metrics != nil {
		b.metrics.SignalsEmitted.WithLabelValues(string(sig.Type), string(sig.Reason)).Inc()
	}
	b.logf("signal %s (%s) @ %.4f", sig.Type, sig.Reason, bar.Close)

	b.applySignal(ctx, sig)
	b.persistWarmState()
}

// applySignal runs the entry gates and, when they pass, flips or enters.
func (b *Bot) applySignal(ctx context.Context, sig *strategy.Signal) {
	if b.hybrid && b.cfg.RequireTrendingMarket && !b.engine.AllowTrading(b.cfg.ADXThreshold) {
		b.logf("signal skipped: market regime not trending (ADX <= %.1f)", b.cfg.ADXThreshold)
		return
	}

	size := b.orderSize()
	side := position.SideLong
	if sig.Type == strategy.SignalShort {
		side = position.SideShort
	}

	// Same-side signals are ignored.
	if side == b.pos.Side {
		return
	}

	now := time.Now()
	if !b.flips.Allow(now) {
		b.logf("⚠️ Flip budget exhausted (%d/%d in the last hour), signal dropped",
			b.flips.Used(now), b.cfg.MaxFlipsPerHour)
		return
	}

	flipping := !b.pos.Flat()
	if flipping && b.barCount-b.positionOpenedAt < MinHoldBars {
		b.logf("flip rejected: held %d bars, minimum %d", b.barCount-b.positionOpenedAt, MinHoldBars)
		return
	}

	if flipping {
		reason := "flip-long"
		if side == position.SideShort {
			reason = "flip-short"
		}
		b.closePosition(ctx, reason, order.CloseMeta{Close: sig.Bar.Close})
	}

	ins := order.Instruction{
		ID:           fmt.Sprintf("order-%d", now.UnixMilli()),
		Symbol:       b.cfg.Symbol,
		Side:         side,
		Size:         size,
		Leverage:     b.cfg.MaxLeverage,
		Price:        sig.Bar.Close,
		SignalReason: string(sig.Reason),
		Timestamp:    now,
	}
	b.enterPosition(ctx, side, ins)
}

// orderSize computes the notional order size in quote currency.
func (b *Bot) orderSize() float64 {
	size := b.cfg.MaxPositionSize
	if b.cfg.PositionSizePct > 0 {
		budgeted := b.balance.Total() * b.cfg.PositionSizePct / 100 * sizingBuffer * float64(b.cfg.MaxLeverage)
		if budgeted < size {
			size = budgeted
		}
		if size < minOrderSize {
			size = minOrderSize
		}
		if size > maxOrderSize {
			size = maxOrderSize
		}
	}
	return size
}

// enterPosition checks the margin, invokes the executor, and on success
// optimistically assumes the fill.
func (b *Bot) enterPosition(ctx context.Context, side position.Side, ins order.Instruction) {
	if !b.cfg.DryRun {
		required := ins.Size / float64(ins.Leverage)
		if avail := b.balance.Available(); avail < required {
			b.logf("⚠️ insufficient balance for entry: need %.2f, have %.2f", required, avail)
			return
		}
	}

	var err error
	if side == position.SideLong {
		err = b.executor.EnterLong(ctx, ins)
	} else {
		err = b.executor.EnterShort(ctx, ins)
	}
	if err != nil {
		if aster.IsBalanceError(err) {
			b.logf("⚠️ entry skipped, exchange reports insufficient balance: %v", err)
			return
		}
		b.logf("❌ entry failed: %v", err)
		return
	}

	b.tracker.TrackOrder(ins.ID, side, ins.Size, ins.Price, ins.Timestamp)
	b.stateMgr.MarkPending(true)

	b.pos = position.Position{
		Side:       side,
		Size:       ins.Size,
		EntryPrice: ins.Price,
		OpenedAt:   ins.Timestamp.UnixMilli(),
	}
	b.positionOpenedAt = b.barCount
	b.stops.Reset()
	b.stateMgr.SetLocal(side, ins.Size, ins.Price)
	b.engine.SetPositionSide(side)
	b.stats.StartTrade(side, ins.Price, ins.Size, ins.Leverage)
	b.flips.Record(ins.Timestamp)

	if b.metrics != nil {
		b.metrics.TradesOpened.Inc()
		b.metrics.PositionSize.Set(signedSize(b.pos))
	}
	b.bus.Publish(events.EventPositionChange, b.pos)
	b.logf("position opened: %s size=%.2f @ %.4f (%s)", side, ins.Size, ins.Price, ins.SignalReason)
	b.persistWarmState()
}

// closePosition flattens the held position and finalizes accounting.
func (b *Bot) closePosition(ctx context.Context, reason string, meta order.CloseMeta) {
	if b.pos.Flat() {
		return
	}

	exitPrice := meta.Close
	if exitPrice == 0 {
		exitPrice = meta.Price
	}
	if exitPrice == 0 {
		exitPrice = b.pos.EntryPrice
	}

	if err := b.executor.ClosePosition(ctx, reason, b.pos, meta); err != nil {
		// Flatten locally anyway; reconciliation restores the position if
		// the exchange still holds it.
		b.logf("❌ close failed (%s): %v", reason, err)
	}

	if rec := b.stats.CloseTrade(exitPrice, reason); rec != nil {
		b.logf("trade closed: %s entry=%.4f exit=%.4f pnl=%.4f (%.2f%%) reason=%s",
			rec.Side, rec.EntryPrice, rec.ExitPrice, rec.PnL, rec.PnLPct, reason)
		if b.tradeLog != nil {
			if err := b.tradeLog.Append(*rec); err != nil {
				log.Printf("trade log append error: %v", err)
			}
		}
		if b.db != nil {
			row := db.ClosedTrade{
				ID:         rec.ID,
				Side:       string(rec.Side),
				EntryPrice: rec.EntryPrice,
				ExitPrice:  rec.ExitPrice,
				Size:       rec.Size,
				Leverage:   rec.Leverage,
				PnL:        rec.PnL,
				PnLPct:     rec.PnLPct,
				Reason:     rec.Reason,
				OpenedAt:   rec.OpenedAt,
				ClosedAt:   rec.ClosedAt,
			}
			if err := b.db.CreateClosedTrade(ctx, row); err != nil {
				log.Printf("store closed trade error: %v", err)
			}
		}
		if b.metrics != nil {
			b.metrics.TradesClosed.WithLabelValues(reason).Inc()
			b.metrics.TotalPnL.Set(b.stats.Summarize().TotalPnL)
		}
	}

	b.pos = position.Position{Side: position.SideFlat}
	b.stops.Reset()
	b.stateMgr.SetLocal(position.SideFlat, 0, 0)
	b.engine.SetPositionSide(position.SideFlat)

	if b.metrics != nil {
		b.metrics.PositionSize.Set(0)
	}
	b.bus.Publish(events.EventPositionChange, b.pos)
	b.persistWarmState()
}

// checkProtectiveExits evaluates trailing, emergency, regular stop-loss and
// take-profit, in that order, on every closed bar before signal logic.
func (b *Bot) checkProtectiveExits(ctx context.Context, bar market.SyntheticBar) {
	if b.pos.Flat() {
		return
	}
	if d := b.stops.Check(b.pos, bar.Close); d != nil {
		b.logf("protective exit: %s", d)
		b.closePosition(ctx, d.Reason, order.CloseMeta{Close: bar.Close})
	}
}

// onPositionSnapshot consumes a polled exchange snapshot: reconcile, apply
// pending-order side effects, and freeze after repeated divergence.
func (b *Bot) onPositionSnapshot(snap position.RestSnapshot) {
	expired := b.tracker.ExpireStale(time.Now())
	for _, o := range expired {
		b.bus.Publish(events.EventOrderExpired, o.ID)
	}

	ok, err := b.stateMgr.UpdateFromRest(snap)
	if err != nil {
		log.Printf("reconciliation: bad snapshot: %v", err)
		return
	}

	local := b.stateMgr.Local()
	if ok {
		if local.Side == position.SideFlat {
			b.tracker.Clear()
			b.stateMgr.MarkPending(false)
			if !b.pos.Flat() {
				b.logf("position closed externally, local view reset")
				b.pos = position.Position{Side: position.SideFlat}
				b.engine.SetPositionSide(position.SideFlat)
				b.stops.Reset()
				b.bus.Publish(events.EventPositionChange, b.pos)
			}
		} else {
			if o := b.tracker.ConfirmByPositionChange(local.Side, local.Size); o != nil {
				b.stateMgr.MarkPending(false)
				b.logf("order %s confirmed by position change", o.ID)
			}
			if b.pos.Flat() {
				b.logf("position found on exchange, adopting: %s size=%.2f @ %.4f",
					local.Side, local.Size, local.AvgEntry)
				b.pos = position.Position{
					Side:       local.Side,
					Size:       local.Size,
					EntryPrice: local.AvgEntry,
					OpenedAt:   time.Now().UnixMilli(),
				}
				b.positionOpenedAt = b.barCount
				b.engine.SetPositionSide(local.Side)
				b.stops.Reset()
				b.bus.Publish(events.EventPositionChange, b.pos)
			} else {
				b.pos.Size = local.Size
				if local.AvgEntry > 0 {
					b.pos.EntryPrice = local.AvgEntry
				}
			}
		}
		b.bus.Publish(events.EventReconciliation, true)
		b.persistWarmState()
		return
	}

	if b.metrics != nil {
		b.metrics.ReconciliationFailures.Inc()
	}
	b.bus.Publish(events.EventReconciliation, false)
	if b.stateMgr.FreezeEligible() && !b.frozen {
		b.frozen = true
		b.freezeUntil = time.Now().Add(freezeDuration)
		if b.metrics != nil {
			b.metrics.FreezesTriggered.Inc()
		}
		b.logf("⚠️ reconciliation diverged twice, trading frozen for %s", freezeDuration)
	}
	b.persistWarmState()
}

// onBalanceSnapshot refreshes the cached USDT balance.
func (b *Bot) onBalanceSnapshot(balances []aster.Balance) {
	b.balance.UpdateFromSnapshot(balances)
	if b.metrics != nil {
		b.metrics.USDTBalance.Set(b.balance.Total())
	}
	b.bus.Publish(events.EventBalance, b.balance.Total())
}

// persistWarmState saves the restart snapshot; failures are logged only.
func (b *Bot) persistWarmState() {
	st := WarmState{
		Position:         b.pos,
		LastBarCloseTime: b.lastBarCloseTime,
		Timestamp:        time.Now().UnixMilli(),
	}
	if err := b.warm.Save(st); err != nil {
		log.Printf("warm state save error: %v", err)
	}
}

// logf logs and mirrors the line onto the bus for the dashboard stream.
func (b *Bot) logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Println(msg)
	b.bus.Publish(events.EventLog, msg)
}

func signedSize(p position.Position) float64 {
	if p.Side == position.SideShort {
		return -p.Size
	}
	if p.Side == position.SideLong {
		return p.Size
	}
	return 0
}
