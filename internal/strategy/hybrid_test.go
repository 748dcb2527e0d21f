package strategy

import (
	"testing"

	"github.com/Relic999/aester-dex/internal/market"
	"github.com/Relic999/aester-dex/internal/position"
)

func hybridConfigForTest() HybridConfig {
	return HybridConfig{
		V1EMAFastLen:      8,
		V1EMAMidLen:       21,
		V1EMASlowLen:      48,
		V1EMAMicroFastLen: 3,
		V1EMAMicroSlowLen: 8,
		V1RSILen:          14,
		RSIMinLong:        42,
		RSIMaxShort:       58,
		MinBarsBetween:    1,
		MinMovePercent:    0.10,

		V2EMAFastLen:         5,
		V2EMAMidLen:          13,
		V2EMASlowLen:         21,
		V2RSILen:             7,
		RSIMomentumThreshold: 3.0,
		VolumeLookback:       4,
		VolumeMultiplier:     1.5,

		ExitVolumeMultiplier: 1.2,
		ADXLen:               14,
	}
}

func mustHybrid(t *testing.T, cfg HybridConfig) *HybridEngine {
	t.Helper()
	eng, err := NewHybridEngine(cfg)
	if err != nil {
		t.Fatalf("NewHybridEngine returned error: %v", err)
	}
	return eng
}

// The minimum-move filter suppresses a fresh V1 trigger until price has
// moved far enough from the previous long entry.
func TestHybridV1MinMoveFilter(t *testing.T) {
	eng := mustHybrid(t, hybridConfigForTest())
	eng.lastLongEntry = 100.00
	eng.barsSince = 5

	bullArgs := func(bar market.SyntheticBar) *Signal {
		eng.prevLongLook = false // fresh rising edge each attempt
		return eng.evaluateV1(bar, 3, 2, 1, 2, 1, 50, true)
	}

	if sig := bullArgs(market.SyntheticBar{Close: 100.05}); sig != nil {
		t.Fatalf("0.05%% move should be suppressed, got %+v", sig)
	}
	sig := bullArgs(market.SyntheticBar{Close: 100.15})
	if sig == nil {
		t.Fatal("0.15% move should fire")
	}
	if sig.Type != SignalLong || sig.Reason != ReasonV1Long || sig.System != SystemV1 {
		t.Fatalf("unexpected signal: %+v", sig)
	}
	if eng.lastLongEntry != 100.15 {
		t.Fatalf("entry price not stamped: %v", eng.lastLongEntry)
	}
	if eng.barsSince != 0 {
		t.Fatalf("bars-between counter not reset: %d", eng.barsSince)
	}
}

// The bars-between counter separates consecutive V1 signals.
func TestHybridV1MinBarsBetween(t *testing.T) {
	cfg := hybridConfigForTest()
	cfg.MinBarsBetween = 3
	cfg.MinMovePercent = 0
	eng := mustHybrid(t, cfg)
	eng.barsSince = 2

	eng.prevLongLook = false
	if sig := eng.evaluateV1(market.SyntheticBar{Close: 100}, 3, 2, 1, 2, 1, 50, true); sig != nil {
		t.Fatal("signal should be held back until the counter passes")
	}

	eng.barsSince = 3
	eng.prevLongLook = false
	if sig := eng.evaluateV1(market.SyntheticBar{Close: 100}, 3, 2, 1, 2, 1, 50, true); sig == nil {
		t.Fatal("signal should fire once the counter passes")
	}
}

// The micro pair must align with the main stack for V1 to look.
func TestHybridV1MicroPairGate(t *testing.T) {
	cfg := hybridConfigForTest()
	cfg.MinMovePercent = 0
	eng := mustHybrid(t, cfg)
	eng.barsSince = 5

	// Bull stack but micro pair inverted: no look, no trigger.
	if sig := eng.evaluateV1(market.SyntheticBar{Close: 100}, 3, 2, 1, 1, 2, 50, true); sig != nil {
		t.Fatalf("micro pair inverted should suppress, got %+v", sig)
	}
}

// A momentum surge with a volume spike on a green candle and a bullish fast
// stack produces a V2 long.
func TestHybridV2Surge(t *testing.T) {
	eng := mustHybrid(t, hybridConfigForTest())
	eng.rsiHistory = []float64{50, 55}

	bar := market.SyntheticBar{Open: 100, Close: 101, Volume: 30}
	sig := eng.evaluateV2(bar, 3, 2, 1, true, 10)
	if sig == nil {
		t.Fatal("expected V2 long")
	}
	if sig.Type != SignalLong || sig.Reason != ReasonV2Long || sig.System != SystemV2 {
		t.Fatalf("unexpected signal: %+v", sig)
	}
}

func TestHybridV2Gates(t *testing.T) {
	tests := []struct {
		name    string
		history []float64
		bar     market.SyntheticBar
		fast    float64
		mid     float64
		slow    float64
		avg     float64
	}{
		{
			name:    "momentum below threshold",
			history: []float64{50, 52},
			bar:     market.SyntheticBar{Open: 100, Close: 101, Volume: 30},
			fast:    3, mid: 2, slow: 1, avg: 10,
		},
		{
			name:    "no volume spike",
			history: []float64{50, 55},
			bar:     market.SyntheticBar{Open: 100, Close: 101, Volume: 12},
			fast:    3, mid: 2, slow: 1, avg: 10,
		},
		{
			name:    "red candle blocks long",
			history: []float64{50, 55},
			bar:     market.SyntheticBar{Open: 101, Close: 100, Volume: 30},
			fast:    3, mid: 2, slow: 1, avg: 10,
		},
		{
			name:    "stack not aligned",
			history: []float64{50, 55},
			bar:     market.SyntheticBar{Open: 100, Close: 101, Volume: 30},
			fast:    1, mid: 2, slow: 3, avg: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := mustHybrid(t, hybridConfigForTest())
			eng.rsiHistory = tt.history
			if sig := eng.evaluateV2(tt.bar, tt.fast, tt.mid, tt.slow, true, tt.avg); sig != nil {
				t.Fatalf("expected no signal, got %+v", sig)
			}
		})
	}
}

// A downward momentum surge on a red candle with a bearish stack is a V2 short.
func TestHybridV2Short(t *testing.T) {
	eng := mustHybrid(t, hybridConfigForTest())
	eng.rsiHistory = []float64{55, 50}

	bar := market.SyntheticBar{Open: 101, Close: 100, Volume: 30}
	sig := eng.evaluateV2(bar, 1, 2, 3, true, 10)
	if sig == nil {
		t.Fatal("expected V2 short")
	}
	if sig.Type != SignalShort || sig.Reason != ReasonV2Short {
		t.Fatalf("unexpected signal: %+v", sig)
	}
}

func TestHybridExitDetector(t *testing.T) {
	tests := []struct {
		name       string
		side       position.Side
		history    []float64
		volume     float64
		avgVolume  float64
		wantReason string
	}{
		{
			name:       "flattening with volume drop",
			side:       position.SideLong,
			history:    []float64{60, 59.5, 59},
			volume:     5,
			avgVolume:  10,
			wantReason: ExitReasonFlatteningVolDrop,
		},
		{
			name:       "adverse reversal",
			side:       position.SideLong,
			history:    []float64{60, 58, 55},
			volume:     20,
			avgVolume:  10,
			wantReason: ExitReasonRSIReversal,
		},
		{
			name:       "short adverse reversal",
			side:       position.SideShort,
			history:    []float64{40, 43, 46},
			volume:     20,
			avgVolume:  10,
			wantReason: ExitReasonRSIReversal,
		},
		{
			name:      "healthy trend holds",
			side:      position.SideLong,
			history:   []float64{55, 58, 62},
			volume:    20,
			avgVolume: 10,
		},
		{
			name:      "flattening alone without volume drop holds",
			side:      position.SideLong,
			history:   []float64{60, 60.5, 61},
			volume:    20,
			avgVolume: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := mustHybrid(t, hybridConfigForTest())
			eng.SetPositionSide(tt.side)
			eng.rsiHistory = tt.history

			exit := eng.evaluateExit(market.SyntheticBar{Volume: tt.volume}, tt.avgVolume)
			if tt.wantReason == "" {
				if exit != nil {
					t.Fatalf("expected no exit, got %+v", exit)
				}
				return
			}
			if exit == nil {
				t.Fatalf("expected exit %q, got none", tt.wantReason)
			}
			if exit.Reason != tt.wantReason {
				t.Fatalf("reason=%q, expected %q", exit.Reason, tt.wantReason)
			}
		})
	}
}

// Exit evaluation requires a held side and three RSI samples.
func TestHybridExitRequiresState(t *testing.T) {
	eng := mustHybrid(t, hybridConfigForTest())
	eng.rsiHistory = []float64{60, 58, 55}
	if exit := eng.evaluateExit(market.SyntheticBar{Volume: 5}, 10); exit != nil {
		t.Fatal("flat position must not produce exits")
	}

	eng.SetPositionSide(position.SideLong)
	eng.rsiHistory = []float64{60, 58}
	if exit := eng.evaluateExit(market.SyntheticBar{Volume: 5}, 10); exit != nil {
		t.Fatal("two RSI samples are not enough for the exit detector")
	}
}

// The regime gate allows trading while ADX warms and blocks quiet regimes
// once it is ready.
func TestHybridRegimeGate(t *testing.T) {
	cfg := hybridConfigForTest()
	cfg.ADXLen = 2
	eng := mustHybrid(t, cfg)

	if !eng.AllowTrading(25) {
		t.Fatal("gate must allow while ADX is warming")
	}

	// Strong directional bars prime ADX high.
	price := 100.0
	for i := 0; i < 10; i++ {
		price += 5
		eng.OnBarClose(market.SyntheticBar{
			StartTime: int64(i) * 30000,
			EndTime:   int64(i)*30000 + 29000,
			Open:      price - 5,
			High:      price + 1,
			Low:       price - 6,
			Close:     price,
			Volume:    10,
		})
	}
	adx, ok := eng.adx.Value()
	if !ok {
		t.Fatal("ADX should be primed")
	}
	if !eng.AllowTrading(adx - 1) {
		t.Fatal("gate should allow above threshold")
	}
	if eng.AllowTrading(adx + 1) {
		t.Fatal("gate should block below threshold")
	}
}

// V1 takes precedence over V2 on the same bar: on a bar that satisfies both
// systems V1 fires, and OnBarClose consults V2 only when V1 returns nil.
func TestHybridV1WinsOverV2(t *testing.T) {
	cfg := hybridConfigForTest()
	cfg.MinMovePercent = 0

	eng := mustHybrid(t, cfg)
	eng.rsiHistory = []float64{50, 55}
	eng.barsSince = 5
	eng.prevLongLook = false

	bar := market.SyntheticBar{Open: 100, Close: 101, Volume: 30}
	if v2 := eng.evaluateV2(bar, 3, 2, 1, true, 10); v2 == nil || v2.System != SystemV2 {
		t.Fatalf("bar should also satisfy V2, got %+v", v2)
	}
	sig := eng.evaluateV1(bar, 3, 2, 1, 2, 1, 50, true)
	if sig == nil || sig.System != SystemV1 {
		t.Fatalf("V1 should fire first, got %+v", sig)
	}
}
