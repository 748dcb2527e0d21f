package risk

import (
	"fmt"

	"github.com/Relic999/aester-dex/internal/position"
)

// Exit reasons produced by the protective-stop evaluator.
const (
	ReasonTrailingStop  = "trailing-stop"
	ReasonEmergencyStop = "emergency-stop"
	ReasonStopLoss      = "stop-loss"
	ReasonTakeProfit    = "take-profit"
)

// StopConfig parameterizes the protective exits. Percentages are in percent,
// not fractions (0.5 means 0.5%).
type StopConfig struct {
	TrailingEnabled       bool
	TrailingActivationPct float64 // min unrealized profit before the trail arms
	TrailingDistancePct   float64 // retrace from the best price that triggers

	EmergencyEnabled bool
	EmergencyStopPct float64

	StopLossEnabled bool
	StopLossPct     float64

	TakeProfitPct float64 // 0 disables
}

// StopDecision reports a triggered protective exit.
type StopDecision struct {
	Reason string
	Price  float64
}

// StopEvaluator tracks trailing extrema for the held position and evaluates
// the protective exits on each closed bar. Order matters: trailing, then
// emergency, then regular stop-loss, then take-profit.
type StopEvaluator struct {
	cfg          StopConfig
	highestPrice float64
	lowestPrice  float64
}

// NewStopEvaluator builds an evaluator with the given config.
func NewStopEvaluator(cfg StopConfig) *StopEvaluator {
	return &StopEvaluator{cfg: cfg}
}

// Reset clears the trailing extrema; called on every entry and close.
func (s *StopEvaluator) Reset() {
	s.highestPrice = 0
	s.lowestPrice = 0
}

// Check updates the trailing extrema and returns the first triggered exit,
// or nil. The close price of the just-closed bar drives every rule.
func (s *StopEvaluator) Check(pos position.Position, close float64) *StopDecision {
	if pos.Flat() || pos.EntryPrice <= 0 {
		return nil
	}

	long := pos.Side == position.SideLong
	if long {
		if close > s.highestPrice {
			s.highestPrice = close
		}
	} else {
		if s.lowestPrice == 0 || close < s.lowestPrice {
			s.lowestPrice = close
		}
	}

	if s.cfg.TrailingEnabled {
		if d := s.checkTrailing(pos, close, long); d != nil {
			return d
		}
	}
	if s.cfg.EmergencyEnabled && s.cfg.EmergencyStopPct > 0 {
		if d := checkStop(pos, close, long, s.cfg.EmergencyStopPct, ReasonEmergencyStop); d != nil {
			return d
		}
	}
	if s.cfg.StopLossEnabled && s.cfg.StopLossPct > 0 {
		if d := checkStop(pos, close, long, s.cfg.StopLossPct, ReasonStopLoss); d != nil {
			return d
		}
	}
	if s.cfg.TakeProfitPct > 0 {
		if d := checkTakeProfit(pos, close, long, s.cfg.TakeProfitPct); d != nil {
			return d
		}
	}
	return nil
}

// checkTrailing arms once unrealized profit exceeds the activation threshold
// and fires when price retraces from the best seen by the trail distance.
func (s *StopEvaluator) checkTrailing(pos position.Position, close float64, long bool) *StopDecision {
	activation := s.cfg.TrailingActivationPct / 100
	distance := s.cfg.TrailingDistancePct / 100

	if long {
		profit := (s.highestPrice - pos.EntryPrice) / pos.EntryPrice
		if profit > activation && close <= s.highestPrice*(1-distance) {
			return &StopDecision{Reason: ReasonTrailingStop, Price: close}
		}
		return nil
	}

	profit := (pos.EntryPrice - s.lowestPrice) / pos.EntryPrice
	if profit > activation && close >= s.lowestPrice*(1+distance) {
		return &StopDecision{Reason: ReasonTrailingStop, Price: close}
	}
	return nil
}

func checkStop(pos position.Position, close float64, long bool, pct float64, reason string) *StopDecision {
	frac := pct / 100
	if long && close <= pos.EntryPrice*(1-frac) {
		return &StopDecision{Reason: reason, Price: close}
	}
	if !long && close >= pos.EntryPrice*(1+frac) {
		return &StopDecision{Reason: reason, Price: close}
	}
	return nil
}

func checkTakeProfit(pos position.Position, close float64, long bool, pct float64) *StopDecision {
	frac := pct / 100
	if long && close >= pos.EntryPrice*(1+frac) {
		return &StopDecision{Reason: ReasonTakeProfit, Price: close}
	}
	if !long && close <= pos.EntryPrice*(1-frac) {
		return &StopDecision{Reason: ReasonTakeProfit, Price: close}
	}
	return nil
}

// String implements fmt.Stringer for log lines.
func (d *StopDecision) String() string {
	return fmt.Sprintf("%s @ %.4f", d.Reason, d.Price)
}
