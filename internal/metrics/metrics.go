package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reentry_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reentry_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	classificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reentry_classifications_total",
			Help: "Satellites classified, by decay status.",
		},
		[]string{"status"},
	)

	propagationSamplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reentry_propagation_samples_total",
			Help: "Propagator samples taken by crossing searches.",
		},
		[]string{"direction"},
	)

	registryLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reentry_registry_loads_total",
			Help: "Confirmed decay registry loads, by result.",
		},
		[]string{"result"},
	)

	registryRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reentry_registry_records",
		Help: "Distinct catalog ids in the confirmed decay registry.",
	})

	tleDatasetSatellites = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reentry_tle_dataset_satellites",
		Help: "Element sets in the current TLE dataset.",
	})

	tleDatasetAgeSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reentry_tle_dataset_age_seconds",
		Help: "Age of the current TLE dataset in seconds.",
	})

	snapshotDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reentry_snapshot_duration_seconds",
		Help:    "Time to classify the full dataset.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		classificationsTotal,
		propagationSamplesTotal,
		registryLoadsTotal,
		registryRecords,
		tleDatasetSatellites,
		tleDatasetAgeSeconds,
		snapshotDurationSeconds,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordClassification counts one classification outcome.
func RecordClassification(status string) {
	classificationsTotal.WithLabelValues(status).Inc()
}

// AddPropagationSamples counts samples taken by a backward or forward search.
func AddPropagationSamples(direction string, n int) {
	if n > 0 {
		propagationSamplesTotal.WithLabelValues(direction).Add(float64(n))
	}
}

// RecordRegistryLoad counts a registry load and publishes its size.
func RecordRegistryLoad(result string, records int) {
	registryLoadsTotal.WithLabelValues(result).Inc()
	registryRecords.Set(float64(records))
}

func SetTLEDatasetSatellites(n int) {
	tleDatasetSatellites.Set(float64(n))
}

func SetTLEDatasetAge(seconds float64) {
	tleDatasetAgeSeconds.Set(seconds)
}

// ObserveSnapshot records how long a full classification run took.
func ObserveSnapshot(d time.Duration) {
	snapshotDurationSeconds.Observe(d.Seconds())
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

var exactRoutes = map[string]bool{
	"/":                       true,
	"/healthz":                true,
	"/readyz":                 true,
	"/metrics":                true,
	"/api/v1/decay":           true,
	"/api/v1/timeline":        true,
	"/api/v1/registry/reload": true,
}

// Parameterized routes, matched by prefix.
var prefixRoutes = []struct {
	prefix string
	label  string
}{
	{"/api/v1/decay/", "/api/v1/decay/{catalog_id}"},
	{"/api/v1/registry/", "/api/v1/registry/{catalog_id}"},
}

// normalizeRoute maps a request path to a bounded label set so catalog ids
// and scanner noise do not explode label cardinality.
func normalizeRoute(path string) string {
	if exactRoutes[path] {
		return path
	}
	for _, r := range prefixRoutes {
		if rest, ok := strings.CutPrefix(path, r.prefix); ok && rest != "" && !strings.Contains(rest, "/") {
			return r.label
		}
	}
	return "other"
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
