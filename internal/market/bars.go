package market

import "fmt"

// Tick is a single trade print from the exchange stream.
type Tick struct {
	Time  int64 // ms
	Price float64
	Size  float64
}

// SyntheticBar is an OHLCV bar aggregated from ticks over a fixed window.
// Once emitted from the builder it is immutable.
type SyntheticBar struct {
	StartTime int64 `json:"startTime"`
	EndTime   int64 `json:"endTime"`
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// BarBuilder aggregates ticks into fixed-duration bars. The builder owns the
// open bar exclusively until it closes.
type BarBuilder struct {
	timeframeMs int64
	current     *SyntheticBar
}

// NewBarBuilder builds a bar builder for the given timeframe in milliseconds.
func NewBarBuilder(timeframeMs int64) (*BarBuilder, error) {
	if timeframeMs <= 0 {
		return nil, fmt.Errorf("market: timeframe must be > 0 ms, got %d", timeframeMs)
	}
	return &BarBuilder{timeframeMs: timeframeMs}, nil
}

// PushTick folds a tick into the open bar. When the tick lands on or past the
// timeframe boundary the open bar is returned as closed and the boundary tick
// opens the next bar.
func (b *BarBuilder) PushTick(t Tick) (closed *SyntheticBar, current SyntheticBar) {
	if b.current == nil {
		b.current = newBar(t)
		return nil, *b.current
	}

	if t.Time-b.current.StartTime >= b.timeframeMs {
		done := *b.current
		b.current = newBar(t)
		return &done, *b.current
	}

	bar := b.current
	if t.Price > bar.High {
		bar.High = t.Price
	}
	if t.Price < bar.Low {
		bar.Low = t.Price
	}
	bar.Close = t.Price
	bar.Volume += t.Size
	bar.EndTime = t.Time
	return nil, *bar
}

// Current returns a snapshot of the open bar, if any.
func (b *BarBuilder) Current() (SyntheticBar, bool) {
	if b.current == nil {
		return SyntheticBar{}, false
	}
	return *b.current, true
}

func newBar(t Tick) *SyntheticBar {
	return &SyntheticBar{
		StartTime: t.Time,
		EndTime:   t.Time,
		Open:      t.Price,
		High:      t.Price,
		Low:       t.Price,
		Close:     t.Price,
		Volume:    t.Size,
	}
}
