package strategy

import (
	"fmt"

	"github.com/Relic999/aester-dex/internal/indicators"
	"github.com/Relic999/aester-dex/internal/market"
	"github.com/Relic999/aester-dex/internal/position"
)

// TrendConfig parameterizes the edge-triggered triple-EMA strategy.
type TrendConfig struct {
	EMAFastLen  int
	EMAMidLen   int
	EMASlowLen  int
	RSILen      int
	RSIMinLong  float64
	RSIMaxShort float64
}

// TrendEngine emits a signal on the first bar where the EMA stack and RSI
// filter line up, and stays quiet until the condition resets.
type TrendEngine struct {
	cfg TrendConfig

	emaFast *indicators.EMA
	emaMid  *indicators.EMA
	emaSlow *indicators.EMA
	rsi     *indicators.RSI

	prevLongLook  bool
	prevShortLook bool
}

// NewTrendEngine builds a trend engine, validating indicator lengths.
func NewTrendEngine(cfg TrendConfig) (*TrendEngine, error) {
	emaFast, err := indicators.NewEMA(cfg.EMAFastLen)
	if err != nil {
		return nil, fmt.Errorf("trend: %w", err)
	}
	emaMid, err := indicators.NewEMA(cfg.EMAMidLen)
	if err != nil {
		return nil, fmt.Errorf("trend: %w", err)
	}
	emaSlow, err := indicators.NewEMA(cfg.EMASlowLen)
	if err != nil {
		return nil, fmt.Errorf("trend: %w", err)
	}
	rsi, err := indicators.NewRSI(cfg.RSILen)
	if err != nil {
		return nil, fmt.Errorf("trend: %w", err)
	}
	return &TrendEngine{
		cfg:     cfg,
		emaFast: emaFast,
		emaMid:  emaMid,
		emaSlow: emaSlow,
		rsi:     rsi,
	}, nil
}

// OnBarClose updates the indicator stack on the closing price and returns a
// signal only on a rising edge of the look condition.
func (e *TrendEngine) OnBarClose(bar market.SyntheticBar) (*Signal, *ExitDecision) {
	fast := e.emaFast.Update(bar.Close)
	mid := e.emaMid.Update(bar.Close)
	slow := e.emaSlow.Update(bar.Close)
	rsi := e.rsi.Update(bar.Close)

	_, rsiReady := e.rsi.Value()

	bullStack := fast > mid && mid > slow
	bearStack := fast < mid && mid < slow
	longLook := bullStack && rsiReady && rsi > e.cfg.RSIMinLong
	shortLook := bearStack && rsiReady && rsi < e.cfg.RSIMaxShort
	longTrig := longLook && !e.prevLongLook
	shortTrig := shortLook && !e.prevShortLook

	e.prevLongLook = longLook
	e.prevShortLook = shortLook

	trend := TrendState{
		BullStack: bullStack,
		BearStack: bearStack,
		LongLook:  longLook,
		ShortLook: shortLook,
		LongTrig:  longTrig,
		ShortTrig: shortTrig,
	}
	snap := e.snapshot()

	// At most one signal per bar; long wins if both edges somehow rise.
	if longTrig {
		return &Signal{
			Type:       SignalLong,
			Reason:     ReasonLongTrigger,
			Indicators: snap,
			Trend:      trend,
			Bar:        bar,
		}, nil
	}
	if shortTrig {
		return &Signal{
			Type:       SignalShort,
			Reason:     ReasonShortTrigger,
			Indicators: snap,
			Trend:      trend,
			Bar:        bar,
		}, nil
	}
	return nil, nil
}

// SetPositionSide satisfies Engine; the trend engine has no exit detector.
func (e *TrendEngine) SetPositionSide(position.Side) {}

// AllowTrading satisfies Engine; the trend engine carries no regime gate.
func (e *TrendEngine) AllowTrading(float64) bool { return true }

func (e *TrendEngine) snapshot() Snapshot {
	return Snapshot{
		EMAFast: valueOf(e.emaFast.Value()),
		EMAMid:  valueOf(e.emaMid.Value()),
		EMASlow: valueOf(e.emaSlow.Value()),
		RSI:     valueOf(e.rsi.Value()),
	}
}

func valueOf(v float64, ok bool) Value {
	return Value{V: v, Ok: ok}
}
