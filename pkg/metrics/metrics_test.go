package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNew(t *testing.T) {
	m := New()
	if m == nil {
		t.Fatal("New() returned nil")
	}
	if m.registry == nil {
		t.Fatal("registry is nil")
	}
}

func TestOperationResolved(t *testing.T) {
	m := New()
	m.OperationResolved("exact_hit", "exact", time.Millisecond, 500, 0.01)
	m.OperationResolved("exact_hit", "exact", time.Millisecond, 300, 0.005)
	m.OperationResolved("semantic_miss", "semantic", 5*time.Millisecond, 0, 0)

	if val := counterValue(t, m.OperationsTotal, "type", "exact_hit"); val != 2 {
		t.Errorf("expected 2 exact hits, got %f", val)
	}
	if val := counterValue(t, m.OperationsTotal, "type", "semantic_miss"); val != 1 {
		t.Errorf("expected 1 semantic miss, got %f", val)
	}

	var metric dto.Metric
	if err := m.TokensSaved.Write(&metric); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	if metric.GetCounter().GetValue() != 800 {
		t.Errorf("expected 800 tokens saved, got %f", metric.GetCounter().GetValue())
	}
}

func TestEntriesEvicted(t *testing.T) {
	m := New()
	m.EntriesEvicted("lru", 3)
	m.EntriesEvicted("lru", 2)

	if val := counterValue(t, m.EvictionsTotal, "policy", "lru"); val != 5 {
		t.Errorf("expected 5 evictions, got %f", val)
	}
}

func TestCacheSized(t *testing.T) {
	m := New()
	m.CacheSized(42, 1<<20)

	var metric dto.Metric
	if err := m.EntriesLive.Write(&metric); err != nil {
		t.Fatalf("failed to read gauge: %v", err)
	}
	if metric.GetGauge().GetValue() != 42 {
		t.Errorf("expected 42 entries, got %f", metric.GetGauge().GetValue())
	}
	if err := m.BytesLive.Write(&metric); err != nil {
		t.Fatalf("failed to read gauge: %v", err)
	}
	if metric.GetGauge().GetValue() != 1<<20 {
		t.Errorf("expected 1MiB, got %f", metric.GetGauge().GetValue())
	}
}

func TestMiddleware(t *testing.T) {
	m := New()

	handler := m.Middleware("/v1/resolve", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/resolve", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	if val := counterValue(t, m.RequestsTotal, "endpoint", "/v1/resolve", "status", "200"); val != 1 {
		t.Errorf("expected 1 request recorded, got %f", val)
	}
}

func TestMiddleware_ErrorStatus(t *testing.T) {
	m := New()

	handler := m.Middleware("/v1/resolve", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/resolve", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if val := counterValue(t, m.RequestsTotal, "endpoint", "/v1/resolve", "status", "400"); val != 1 {
		t.Errorf("expected 1 request with status 400, got %f", val)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.OperationResolved("exact_hit", "exact", time.Millisecond, 100, 0.001)
	m.RecordRequest("/v1/resolve", 200, 10*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "semcache_operations_total") {
		t.Error("metrics output missing semcache_operations_total")
	}
	if !strings.Contains(body, "semcache_tokens_saved_total") {
		t.Error("metrics output missing semcache_tokens_saved_total")
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("metrics output missing go runtime metrics")
	}
}

func TestActiveRequests(t *testing.T) {
	m := New()

	started := make(chan struct{})
	release := make(chan struct{})

	handler := m.Middleware("/v1/resolve", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		req := httptest.NewRequest(http.MethodPost, "/v1/resolve", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
	}()

	<-started

	var metric dto.Metric
	if err := m.ActiveRequests.Write(&metric); err != nil {
		t.Fatalf("failed to read gauge: %v", err)
	}
	if metric.GetGauge().GetValue() != 1 {
		t.Errorf("expected 1 active request, got %f", metric.GetGauge().GetValue())
	}

	close(release)
}

// counterValue extracts the value of a counter with the given label pairs.
func counterValue(t *testing.T, cv *prometheus.CounterVec, labelPairs ...string) float64 {
	t.Helper()
	labels := prometheus.Labels{}
	for i := 0; i < len(labelPairs); i += 2 {
		labels[labelPairs[i]] = labelPairs[i+1]
	}
	counter, err := cv.GetMetricWith(labels)
	if err != nil {
		t.Fatalf("failed to get metric: %v", err)
	}
	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.GetCounter().GetValue()
}
