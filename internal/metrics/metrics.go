// Package metrics holds the Prometheus collectors for the paper engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry

	Signals          *prometheus.CounterVec
	Admissions       *prometheus.CounterVec
	Denials          *prometheus.CounterVec
	TradesClosed     *prometheus.CounterVec
	TradesCancelled  *prometheus.CounterVec
	OpenTrades       prometheus.Gauge
	RealizedPnL      prometheus.Gauge
	UnrealizedPnL    prometheus.Gauge
	EvaluationErrors *prometheus.CounterVec
	StaleTrades      prometheus.Gauge
	DailyLatch       prometheus.Gauge
}

// New registers the engine collectors plus the Go and process collectors
// on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		Signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrader_signals_total", Help: "Signals received",
		}, []string{"symbol"}),
		Admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrader_admissions_total", Help: "Signals admitted as trades",
		}, []string{"symbol"}),
		Denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrader_denials_total", Help: "Signals refused, by reason",
		}, []string{"reason"}),
		TradesClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrader_trades_closed_total", Help: "Trades closed, by exit reason",
		}, []string{"reason"}),
		TradesCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrader_trades_cancelled_total", Help: "Trades cancelled before fill, by reason",
		}, []string{"reason"}),
		OpenTrades: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "papertrader_open_trades", Help: "Non-terminal trades in the ledger",
		}),
		RealizedPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "papertrader_realized_pnl", Help: "Realized P&L for the current trading day",
		}),
		UnrealizedPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "papertrader_unrealized_pnl", Help: "Marked-to-market P&L of live trades",
		}),
		EvaluationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrader_evaluation_errors_total", Help: "Exit evaluations that failed, by kind",
		}, []string{"kind"}),
		StaleTrades: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "papertrader_stale_trades", Help: "Live trades flagged stale",
		}),
		DailyLatch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "papertrader_daily_loss_latch", Help: "1 once the daily loss limit has tripped",
		}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Signals, m.Admissions, m.Denials,
		m.TradesClosed, m.TradesCancelled,
		m.OpenTrades, m.RealizedPnL, m.UnrealizedPnL,
		m.EvaluationErrors, m.StaleTrades, m.DailyLatch,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
