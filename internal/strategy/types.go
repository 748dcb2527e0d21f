package strategy

import (
	"github.com/Relic999/aester-dex/internal/market"
	"github.com/Relic999/aester-dex/internal/position"
)

// SignalType is the direction of an entry signal.
type SignalType string

const (
	SignalLong  SignalType = "LONG"
	SignalShort SignalType = "SHORT"
)

// Reason identifies which rule produced a signal.
type Reason string

const (
	ReasonLongTrigger  Reason = "long-trigger"
	ReasonShortTrigger Reason = "short-trigger"
	ReasonV1Long       Reason = "v1-long"
	ReasonV1Short      Reason = "v1-short"
	ReasonV2Long       Reason = "v2-long"
	ReasonV2Short      Reason = "v2-short"
)

// System names the hybrid sub-system that fired; empty for the trend engine.
type System string

const (
	SystemV1 System = "v1"
	SystemV2 System = "v2"
)

// Value is an indicator output: Ok is false while the indicator is warming.
type Value struct {
	V  float64
	Ok bool
}

// Snapshot carries the indicator values current at signal time.
type Snapshot struct {
	EMAFast      Value
	EMAMid       Value
	EMASlow      Value
	EMAMicroFast Value
	EMAMicroSlow Value
	RSI          Value
	ADX          Value
}

// TrendState captures the stack and trigger flags at evaluation time.
type TrendState struct {
	BullStack bool
	BearStack bool
	LongLook  bool
	ShortLook bool
	LongTrig  bool
	ShortTrig bool
}

// Signal is a directional entry decision produced on a closed bar.
type Signal struct {
	Type       SignalType
	Reason     Reason
	System     System
	Indicators Snapshot
	Trend      TrendState
	Bar        market.SyntheticBar
}

// ExitDecision is produced by the hybrid exit detector for an open position.
type ExitDecision struct {
	Reason string // rsi-reversal or rsi-flattening-volume-drop
}

// Exit reasons emitted by the hybrid exit detector.
const (
	ExitReasonRSIReversal       = "rsi-reversal"
	ExitReasonFlatteningVolDrop = "rsi-flattening-volume-drop"
)

// Engine is implemented by both strategy engines. OnBarClose advances all
// internal state exactly once per closed bar and returns at most one entry
// signal, plus an exit decision when the currently held side should be
// closed (hybrid only; nil from the trend engine).
type Engine interface {
	OnBarClose(bar market.SyntheticBar) (*Signal, *ExitDecision)
	// SetPositionSide informs the engine of the held side so its exit
	// detector can evaluate adverse moves. No-op for the trend engine.
	SetPositionSide(side position.Side)
	// AllowTrading is the market-regime gate. The trend engine always
	// allows; the hybrid allows when ADX is warming or above threshold.
	AllowTrading(adxThreshold float64) bool
}
