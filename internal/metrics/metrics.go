// Package metrics exposes the engine's Prometheus metrics, served at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Ticks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gridflow_ticks_total",
			Help: "Control loop ticks executed",
		},
	)

	Fills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridflow_fills_total",
			Help: "Grid order fills by side",
		},
		[]string{"side"},
	)

	OrdersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridflow_orders_placed_total",
			Help: "Orders submitted to the exchange by side",
		},
		[]string{"side"},
	)

	Replacements = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gridflow_order_replacements_retried_total",
			Help: "Replacement orders retried after a failed submission",
		},
	)

	Trails = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridflow_trails_total",
			Help: "Window shifts by direction (up/down)",
		},
		[]string{"direction"},
	)

	TickErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gridflow_tick_errors_total",
			Help: "Ticks that finished with at least one error",
		},
	)

	Position = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridflow_position",
			Help: "Net position in base asset units",
		},
	)

	GridProfit = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridflow_grid_profit",
			Help: "Realized grid profit in quote units",
		},
	)

	FloatingProfit = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridflow_floating_profit",
			Help: "Mark-to-market profit of the open position",
		},
	)

	Baseline = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridflow_baseline_price",
			Help: "Center price of the settled grid window",
		},
	)
)

func init() {
	prometheus.MustRegister(
		Ticks,
		Fills,
		OrdersPlaced,
		Replacements,
		Trails,
		TickErrors,
		Position,
		GridProfit,
		FloatingProfit,
		Baseline,
	)
}
