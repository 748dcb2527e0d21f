package strategy

import (
	"fmt"
	"math"

	"github.com/Relic999/aester-dex/internal/indicators"
	"github.com/Relic999/aester-dex/internal/market"
	"github.com/Relic999/aester-dex/internal/position"
)

const (
	minVolumeRing        = 10
	rsiFlatteningEpsilon = 2.0
)

// HybridConfig parameterizes the two-system hybrid strategy.
type HybridConfig struct {
	// V1 trend/bias system
	V1EMAFastLen      int
	V1EMAMidLen       int
	V1EMASlowLen      int
	V1EMAMicroFastLen int
	V1EMAMicroSlowLen int
	V1RSILen          int
	RSIMinLong        float64
	RSIMaxShort       float64
	MinBarsBetween    int
	MinMovePercent    float64

	// V2 momentum-surge system
	V2EMAFastLen         int
	V2EMAMidLen          int
	V2EMASlowLen         int
	V2RSILen             int
	RSIMomentumThreshold float64
	VolumeLookback       int
	VolumeMultiplier     float64

	// Exit detector
	ExitVolumeMultiplier float64

	// Regime gate
	ADXLen int
}

// HybridEngine combines a slow trend bias (V1), a momentum-surge detector
// (V2), an RSI/volume exit detector for open positions, and an ADX regime
// gate. V1 is evaluated first; at most one signal fires per bar.
type HybridEngine struct {
	cfg HybridConfig

	// V1
	v1Fast      *indicators.EMA
	v1Mid       *indicators.EMA
	v1Slow      *indicators.EMA
	v1MicroFast *indicators.EMA
	v1MicroSlow *indicators.EMA
	v1RSI       *indicators.RSI

	prevLongLook   bool
	prevShortLook  bool
	barsSince      int
	lastLongEntry  float64
	lastShortEntry float64

	// V2
	v2Fast     *indicators.EMA
	v2Mid      *indicators.EMA
	v2Slow     *indicators.EMA
	v2RSI      *indicators.RSI
	rsiHistory []float64 // last three samples, newest last
	volumeRing []float64
	ringSize   int

	adx  *indicators.ADX
	side position.Side
}

// NewHybridEngine builds a hybrid engine, validating all indicator lengths.
func NewHybridEngine(cfg HybridConfig) (*HybridEngine, error) {
	e := &HybridEngine{cfg: cfg, side: position.SideFlat}

	var err error
	build := func(dst **indicators.EMA, length int, name string) {
		if err != nil {
			return
		}
		var ema *indicators.EMA
		ema, err = indicators.NewEMA(length)
		if err != nil {
			err = fmt.Errorf("hybrid %s: %w", name, err)
			return
		}
		*dst = ema
	}
	build(&e.v1Fast, cfg.V1EMAFastLen, "v1 fast")
	build(&e.v1Mid, cfg.V1EMAMidLen, "v1 mid")
	build(&e.v1Slow, cfg.V1EMASlowLen, "v1 slow")
	build(&e.v1MicroFast, cfg.V1EMAMicroFastLen, "v1 micro fast")
	build(&e.v1MicroSlow, cfg.V1EMAMicroSlowLen, "v1 micro slow")
	build(&e.v2Fast, cfg.V2EMAFastLen, "v2 fast")
	build(&e.v2Mid, cfg.V2EMAMidLen, "v2 mid")
	build(&e.v2Slow, cfg.V2EMASlowLen, "v2 slow")
	if err != nil {
		return nil, err
	}

	if e.v1RSI, err = indicators.NewRSI(cfg.V1RSILen); err != nil {
		return nil, fmt.Errorf("hybrid v1 rsi: %w", err)
	}
	if e.v2RSI, err = indicators.NewRSI(cfg.V2RSILen); err != nil {
		return nil, fmt.Errorf("hybrid v2 rsi: %w", err)
	}
	if e.adx, err = indicators.NewADX(cfg.ADXLen); err != nil {
		return nil, fmt.Errorf("hybrid: %w", err)
	}

	e.ringSize = cfg.VolumeLookback
	if e.ringSize < minVolumeRing {
		e.ringSize = minVolumeRing
	}
	// Start past the bars-between filter so the first signal is not held back.
	e.barsSince = cfg.MinBarsBetween

	return e, nil
}

// SetPositionSide informs the exit detector of the held side.
func (e *HybridEngine) SetPositionSide(side position.Side) {
	if side == "" {
		side = position.SideFlat
	}
	e.side = side
}

// AllowTrading returns true while ADX is warming or once it exceeds the
// threshold; a quiet, range-bound regime blocks entries.
func (e *HybridEngine) AllowTrading(adxThreshold float64) bool {
	if _, ok := e.adx.Value(); !ok {
		return true
	}
	return e.adx.IsTrending(adxThreshold)
}

// OnBarClose advances every indicator exactly once for the closed bar, then
// evaluates exit first, V1 second, V2 last.
func (e *HybridEngine) OnBarClose(bar market.SyntheticBar) (*Signal, *ExitDecision) {
	e.adx.Update(bar.High, bar.Low, bar.Close)

	v1Fast := e.v1Fast.Update(bar.Close)
	v1Mid := e.v1Mid.Update(bar.Close)
	v1Slow := e.v1Slow.Update(bar.Close)
	v1MicroFast := e.v1MicroFast.Update(bar.Close)
	v1MicroSlow := e.v1MicroSlow.Update(bar.Close)
	v1RSI := e.v1RSI.Update(bar.Close)
	_, v1RSIReady := e.v1RSI.Value()

	v2Fast := e.v2Fast.Update(bar.Close)
	v2Mid := e.v2Mid.Update(bar.Close)
	v2Slow := e.v2Slow.Update(bar.Close)
	v2RSI := e.v2RSI.Update(bar.Close)
	_, v2RSIReady := e.v2RSI.Value()

	e.rsiHistory = append(e.rsiHistory, v2RSI)
	if len(e.rsiHistory) > 3 {
		e.rsiHistory = e.rsiHistory[len(e.rsiHistory)-3:]
	}

	avgVolume := mean(e.volumeRing)

	exit := e.evaluateExit(bar, avgVolume)

	e.barsSince++

	sig := e.evaluateV1(bar, v1Fast, v1Mid, v1Slow, v1MicroFast, v1MicroSlow, v1RSI, v1RSIReady)
	if sig == nil {
		sig = e.evaluateV2(bar, v2Fast, v2Mid, v2Slow, v2RSIReady, avgVolume)
	}

	e.volumeRing = append(e.volumeRing, bar.Volume)
	if len(e.volumeRing) > e.ringSize {
		e.volumeRing = e.volumeRing[len(e.volumeRing)-e.ringSize:]
	}

	return sig, exit
}

// evaluateExit checks the RSI/volume exit rules for the held side.
func (e *HybridEngine) evaluateExit(bar market.SyntheticBar, avgVolume float64) *ExitDecision {
	if e.side == position.SideFlat || len(e.rsiHistory) < 3 {
		return nil
	}

	newest := e.rsiHistory[2]
	oldest := e.rsiHistory[0]

	// A stalled RSI on fading volume reads as exhaustion; a still-moving RSI
	// against the position reads as reversal. Exhaustion is classified first
	// since a tiny adverse drift is still flattening, not reversal.
	rsiFlattening := math.Abs(newest-oldest) < rsiFlatteningEpsilon
	volumeDrop := false
	if avgVolume > 0 {
		volumeDrop = bar.Volume/avgVolume < e.cfg.ExitVolumeMultiplier
	}
	if rsiFlattening && volumeDrop {
		return &ExitDecision{Reason: ExitReasonFlatteningVolDrop}
	}

	adverse := (e.side == position.SideLong && newest < oldest) ||
		(e.side == position.SideShort && newest > oldest)
	if adverse {
		return &ExitDecision{Reason: ExitReasonRSIReversal}
	}
	return nil
}

// evaluateV1 runs the edge-triggered bias system with its micro pair,
// bars-between and minimum-move filters.
func (e *HybridEngine) evaluateV1(bar market.SyntheticBar, fast, mid, slow, microFast, microSlow, rsi float64, rsiReady bool) *Signal {
	bullStack := fast > mid && mid > slow
	bearStack := fast < mid && mid < slow
	longLook := bullStack && microFast > microSlow && rsiReady && rsi > e.cfg.RSIMinLong
	shortLook := bearStack && microFast < microSlow && rsiReady && rsi < e.cfg.RSIMaxShort
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

	fire := func(t SignalType, reason Reason, lastEntry *float64) *Signal {
		if e.barsSince < e.cfg.MinBarsBetween {
			return nil
		}
		if *lastEntry > 0 && e.cfg.MinMovePercent > 0 {
			movePct := math.Abs(bar.Close-*lastEntry) / *lastEntry * 100
			if movePct < e.cfg.MinMovePercent {
				return nil
			}
		}
		*lastEntry = bar.Close
		e.barsSince = 0
		return &Signal{
			Type:       t,
			Reason:     reason,
			System:     SystemV1,
			Indicators: e.snapshotV1(),
			Trend:      trend,
			Bar:        bar,
		}
	}

	if longTrig {
		return fire(SignalLong, ReasonV1Long, &e.lastLongEntry)
	}
	if shortTrig {
		return fire(SignalShort, ReasonV1Short, &e.lastShortEntry)
	}
	return nil
}

// evaluateV2 runs the momentum-surge system: an RSI jump confirmed by a
// volume spike, candle color, and the fast EMA stack.
func (e *HybridEngine) evaluateV2(bar market.SyntheticBar, fast, mid, slow float64, rsiReady bool, avgVolume float64) *Signal {
	if !rsiReady || len(e.rsiHistory) < 2 || avgVolume <= 0 {
		return nil
	}

	rsiNow := e.rsiHistory[len(e.rsiHistory)-1]
	rsiPrev := e.rsiHistory[len(e.rsiHistory)-2]
	rsiMomentum := rsiNow - rsiPrev
	rsiSurge := math.Abs(rsiMomentum) >= e.cfg.RSIMomentumThreshold

	volumeSpike := bar.Volume >= avgVolume*e.cfg.VolumeMultiplier
	greenCandle := bar.Close > bar.Open
	emaBullish := fast > mid && mid > slow
	emaBearish := fast < mid && mid < slow

	if rsiSurge && rsiMomentum > 0 && volumeSpike && greenCandle && emaBullish {
		return &Signal{
			Type:       SignalLong,
			Reason:     ReasonV2Long,
			System:     SystemV2,
			Indicators: e.snapshotV2(),
			Bar:        bar,
		}
	}
	if rsiSurge && rsiMomentum < 0 && volumeSpike && !greenCandle && emaBearish {
		return &Signal{
			Type:       SignalShort,
			Reason:     ReasonV2Short,
			System:     SystemV2,
			Indicators: e.snapshotV2(),
			Bar:        bar,
		}
	}
	return nil
}

func (e *HybridEngine) snapshotV1() Snapshot {
	return Snapshot{
		EMAFast:      valueOf(e.v1Fast.Value()),
		EMAMid:       valueOf(e.v1Mid.Value()),
		EMASlow:      valueOf(e.v1Slow.Value()),
		EMAMicroFast: valueOf(e.v1MicroFast.Value()),
		EMAMicroSlow: valueOf(e.v1MicroSlow.Value()),
		RSI:          valueOf(e.v1RSI.Value()),
		ADX:          valueOf(e.adx.Value()),
	}
}

func (e *HybridEngine) snapshotV2() Snapshot {
	return Snapshot{
		EMAFast: valueOf(e.v2Fast.Value()),
		EMAMid:  valueOf(e.v2Mid.Value()),
		EMASlow: valueOf(e.v2Slow.Value()),
		RSI:     valueOf(e.v2RSI.Value()),
		ADX:     valueOf(e.adx.Value()),
	}
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
