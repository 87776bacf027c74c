package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHTTPRequest(t *testing.T) {
	// Сбрасываем метрики перед тестом
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	RecordHTTPRequest("GET", "/api/portfolio", "200", 0.5)
	RecordHTTPRequest("GET", "/api/portfolio", "200", 0.1)

	count := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/portfolio", "200"))
	assert.Equal(t, float64(2), count)
}

func TestRecordTrade(t *testing.T) {
	TradesTotal.Reset()

	RecordTrade("buy", ResultSuccess)
	RecordTrade("buy", ResultRejected)
	RecordTrade("sell", ResultSuccess)

	assert.Equal(t, float64(1), testutil.ToFloat64(TradesTotal.WithLabelValues("buy", ResultSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(TradesTotal.WithLabelValues("buy", ResultRejected)))
	assert.Equal(t, float64(1), testutil.ToFloat64(TradesTotal.WithLabelValues("sell", ResultSuccess)))
}

func TestRecordPumpEvents(t *testing.T) {
	SimulatedPumpsTotal.Reset()
	PumpTicksTotal.Reset()

	RecordPumpEvent("created")
	RecordPumpEvent("completed")
	RecordPumpTick("accrued")
	RecordPumpTick("accrued")

	assert.Equal(t, float64(1), testutil.ToFloat64(SimulatedPumpsTotal.WithLabelValues("created")))
	assert.Equal(t, float64(1), testutil.ToFloat64(SimulatedPumpsTotal.WithLabelValues("completed")))
	assert.Equal(t, float64(2), testutil.ToFloat64(PumpTicksTotal.WithLabelValues("accrued")))
}

func TestRecordStorageConflict(t *testing.T) {
	// Временно подменяем глобальный счётчик
	testCounter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simexchange_storage_conflicts_total_test",
		Help: "test",
	})
	old := StorageConflictsTotal
	StorageConflictsTotal = testCounter
	defer func() { StorageConflictsTotal = old }()

	RecordStorageConflict()
	RecordStorageConflict()

	assert.Equal(t, float64(2), testutil.ToFloat64(testCounter))
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	HTTPRequestsTotal.Reset()

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/admin/pumps/{userID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"1", "2"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/admin/pumps/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	}

	count := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/admin/pumps/{userID}", "404"))
	assert.Equal(t, float64(2), count)
}
