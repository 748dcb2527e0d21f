package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes pipeline counters and gauges for Prometheus scraping.
type Metrics struct {
	TicksProcessed         prometheus.Counter
	BarsClosed             prometheus.Counter
	SignalsEmitted         *prometheus.CounterVec
	TradesOpened           prometheus.Counter
	TradesClosed           *prometheus.CounterVec
	ReconciliationFailures prometheus.Counter
	FreezesTriggered       prometheus.Counter
	TotalPnL               prometheus.Gauge
	PositionSize           prometheus.Gauge
	USDTBalance            prometheus.Gauge
}

// New registers all metrics on the given registerer (nil uses the default).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		TicksProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "aester_ticks_processed_total",
			Help: "Trade ticks consumed from the stream.",
		}),
		BarsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "aester_bars_closed_total",
			Help: "Synthetic bars closed by the aggregator.",
		}),
		SignalsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aester_signals_total",
			Help: "Entry signals emitted, by type and reason.",
		}, []string{"type", "reason"}),
		TradesOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "aester_trades_opened_total",
			Help: "Positions entered.",
		}),
		TradesClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aester_trades_closed_total",
			Help: "Positions closed, by reason.",
		}, []string{"reason"}),
		ReconciliationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "aester_reconciliation_failures_total",
			Help: "Local vs exchange position mismatches.",
		}),
		FreezesTriggered: factory.NewCounter(prometheus.CounterOpts{
			Name: "aester_freezes_total",
			Help: "Trading freezes caused by repeated reconciliation failure.",
		}),
		TotalPnL: factory.NewGauge(prometheus.GaugeOpts{
			Name: "aester_total_pnl",
			Help: "Cumulative realized PnL in quote currency.",
		}),
		PositionSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "aester_position_size",
			Help: "Current position size (signed: negative for shorts).",
		}),
		USDTBalance: factory.NewGauge(prometheus.GaugeOpts{
			Name: "aester_usdt_balance",
			Help: "Last polled USDT wallet balance.",
		}),
	}
}
