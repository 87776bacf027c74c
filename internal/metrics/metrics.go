package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simexchange_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "simexchange_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	TradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simexchange_trades_total",
			Help: "Total number of trades by side and result",
		},
		[]string{"side", "result"},
	)

	WithdrawalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simexchange_withdrawals_total",
			Help: "Total number of withdrawals by result",
		},
		[]string{"result"},
	)

	GrantsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simexchange_grants_total",
			Help: "Total number of admin grants by asset",
		},
		[]string{"asset"},
	)

	SimulatedPumpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simexchange_simulated_pumps_total",
			Help: "Simulated pump lifecycle events",
		},
		[]string{"event"},
	)

	PumpTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simexchange_pump_ticks_total",
			Help: "Pump ticks that changed state",
		},
		[]string{"result"},
	)

	StorageConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "simexchange_storage_conflicts_total",
			Help: "Mutations refused because the portfolio row was locked",
		},
	)
)

// результаты операций
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordTrade(side, result string) {
	TradesTotal.WithLabelValues(side, result).Inc()
}

func RecordWithdrawal(result string) {
	WithdrawalsTotal.WithLabelValues(result).Inc()
}

func RecordGrant(asset string) {
	GrantsTotal.WithLabelValues(asset).Inc()
}

func RecordPumpEvent(event string) {
	SimulatedPumpsTotal.WithLabelValues(event).Inc()
}

func RecordPumpTick(result string) {
	PumpTicksTotal.WithLabelValues(result).Inc()
}

func RecordStorageConflict() {
	StorageConflictsTotal.Inc()
}

// Middleware считает запросы по шаблону маршрута chi, чтобы id в пути
// не раздували число меток.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordHTTPRequest(r.Method, path, strconv.Itoa(status), time.Since(start).Seconds())
	})
}
