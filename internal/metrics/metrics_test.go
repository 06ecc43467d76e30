package metrics

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		// Known exact routes.
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/", "/"},
		{"/api/v1/decay", "/api/v1/decay"},
		{"/api/v1/timeline", "/api/v1/timeline"},
		{"/api/v1/registry/reload", "/api/v1/registry/reload"},

		// Parameterized routes collapse to one label.
		{"/api/v1/decay/25544", "/api/v1/decay/{catalog_id}"},
		{"/api/v1/decay/44713", "/api/v1/decay/{catalog_id}"},
		{"/api/v1/registry/1", "/api/v1/registry/{catalog_id}"},

		// Unknown/bot paths collapse to "other".
		{"/wp-admin", "other"},
		{"/robots.txt", "other"},
		{"/.env", "other"},
		{"/api/v1/decay/", "other"},
		{"/api/v1/decay/1/2", "other"},
		{"/api/v2/something", "other"},
		{"/favicon.ico", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := normalizeRoute(tt.path)
			if got != tt.want {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

// TestMetricsCardinality verifies that 100 unique catalog ids produce
// exactly 1 distinct path label, not 100.
func TestMetricsCardinality(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		seen[normalizeRoute("/api/v1/decay/"+strconv.Itoa(10000+i))] = true
	}
	if len(seen) != 1 {
		t.Errorf("expected 1 unique label for parameterized paths, got %d: %v", len(seen), seen)
	}
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/api/v1/decay/{catalog_id}", http.MethodGet, "418"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/decay/25544", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/api/v1/decay/{catalog_id}", http.MethodGet, "418"))

	if after-before != 1 {
		t.Errorf("counter moved by %v, want 1", after-before)
	}
}

func TestClassificationCounters(t *testing.T) {
	before := testutil.ToFloat64(classificationsTotal.WithLabelValues("PREDICTED"))
	RecordClassification("PREDICTED")
	if got := testutil.ToFloat64(classificationsTotal.WithLabelValues("PREDICTED")) - before; got != 1 {
		t.Errorf("classifications moved by %v, want 1", got)
	}

	before = testutil.ToFloat64(propagationSamplesTotal.WithLabelValues("forward"))
	AddPropagationSamples("forward", 12)
	AddPropagationSamples("forward", 0)
	if got := testutil.ToFloat64(propagationSamplesTotal.WithLabelValues("forward")) - before; got != 12 {
		t.Errorf("samples moved by %v, want 12", got)
	}

	RecordRegistryLoad("ok", 42)
	if got := testutil.ToFloat64(registryRecords); got != 42 {
		t.Errorf("registry records = %v, want 42", got)
	}
}
