// Package metrics provides Prometheus instrumentation for the swap engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts confirmed trades, partitioned by direction and
	// terminal status (OPENED, CLOSED, LIQUIDATED).
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratefi_trades_total",
		Help: "Total number of trades processed",
	}, []string{"direction", "status"})

	// FeesCollected accumulates open fees in balance units.
	FeesCollected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ratefi_fees_collected_total",
		Help: "Cumulative open fees collected",
	})

	// Liquidations counts positions removed by the risk pass.
	Liquidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratefi_liquidations_total",
		Help: "Positions liquidated by the revaluation pass",
	}, []string{"market"})

	// LivePrice tracks the current quote per market.
	LivePrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ratefi_live_price",
		Help: "Current live quote per market, in percentage points",
	}, []string{"market"})

	// OpenPositions tracks the size of the open-position ledger.
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ratefi_open_positions",
		Help: "Number of currently open positions",
	})

	// SimulationDay tracks the day counter.
	SimulationDay = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ratefi_simulation_day",
		Help: "Current simulation day",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ratefi_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratefi_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ratefi_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the API surface is small and
		// fixed, so cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
