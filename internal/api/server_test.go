package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arcazj/openbexi-earth-orbit/internal/auth"
	"github.com/arcazj/openbexi-earth-orbit/internal/decay"
	"github.com/arcazj/openbexi-earth-orbit/internal/registry"
	"github.com/arcazj/openbexi-earth-orbit/internal/service"
	"github.com/arcazj/openbexi-earth-orbit/internal/tle"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

var testNow = time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func sampleSnapshot(now time.Time) *service.Snapshot {
	return &service.Snapshot{
		RunID:          "run-1",
		Now:            now,
		DatasetSource:  "test",
		RegistrySource: "feed",
		Results: []service.Result{
			{CatalogID: "1", Name: "GONE", Decay: &decay.Classification{
				Status: decay.StatusConfirmed, Reason: "Source: feed", Date: strPtr("2024-01-15"),
			}},
			{CatalogID: "2", Name: "SOON", Decay: &decay.Classification{
				Status: decay.StatusPredicted, Reason: "Altitude dropped below 120 km",
				Window: &decay.Window{Start: "2024-05-01T00:00:00.000Z", End: "2024-05-02T00:00:00.000Z", Confidence: 0.8},
			}},
			{CatalogID: "3", Name: "HIGH", Decay: &decay.Classification{
				Status: decay.StatusUnknown, Reason: "Propagation stays above threshold within horizon",
			}},
		},
	}
}

type fakeService struct {
	latest      *service.Snapshot
	classifyErr error
	registry    map[string]registry.Record
	registryErr error
	reloads     int
	classifyAt  time.Time
}

func (f *fakeService) Latest() *service.Snapshot { return f.latest }
func (f *fakeService) Ready() bool               { return f.latest != nil }

func (f *fakeService) Classify(_ context.Context, now time.Time) (*service.Snapshot, error) {
	if f.classifyErr != nil {
		return nil, f.classifyErr
	}
	f.classifyAt = now
	return sampleSnapshot(now), nil
}

func (f *fakeService) Lookup(id string) (service.Result, error) {
	if f.latest == nil {
		return service.Result{}, service.ErrNoSnapshot
	}
	for _, r := range f.latest.Results {
		if r.CatalogID == id {
			return r, nil
		}
	}
	return service.Result{}, service.ErrNotFound
}

func (f *fakeService) RegistryRecord(_ context.Context, id string) (registry.Record, error) {
	if f.registryErr != nil {
		return registry.Record{}, f.registryErr
	}
	rec, ok := f.registry[id]
	if !ok {
		return registry.Record{}, registry.ErrNotFound
	}
	return rec, nil
}

func (f *fakeService) ReloadRegistry(context.Context) (int, error) {
	f.reloads++
	if f.registryErr != nil {
		return 0, f.registryErr
	}
	return len(f.registry), nil
}

func newFake() *fakeService {
	return &fakeService{
		latest: sampleSnapshot(testNow),
		registry: map[string]registry.Record{
			"1": {CatalogID: "1", DecayDateISO: "2024-01-15"},
		},
	}
}

func do(t *testing.T, h http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	tests := []struct {
		name       string
		svc        func() *fakeService
		method     string
		target     string
		wantStatus int
		wantBody   string
	}{
		{"healthz", newFake, http.MethodGet, "/healthz", http.StatusOK, "ok"},
		{"readyz", newFake, http.MethodGet, "/readyz", http.StatusOK, "ready"},
		{"readyz before snapshot", func() *fakeService { return &fakeService{} }, http.MethodGet, "/readyz", http.StatusServiceUnavailable, "not ready"},
		{"decay list", newFake, http.MethodGet, "/api/v1/decay", http.StatusOK, `"run_id":"run-1"`},
		{"decay list before snapshot", func() *fakeService { return &fakeService{} }, http.MethodGet, "/api/v1/decay", http.StatusServiceUnavailable, "no classification snapshot"},
		{"decay bad status", newFake, http.MethodGet, "/api/v1/decay?status=maybe", http.StatusBadRequest, "status must be"},
		{"decay bad now", newFake, http.MethodGet, "/api/v1/decay?now=yesterday", http.StatusBadRequest, "RFC 3339"},
		{"decay now without dataset", func() *fakeService { return &fakeService{classifyErr: tle.ErrNoDataset} }, http.MethodGet, "/api/v1/decay?now=2024-04-10T12:00:00Z", http.StatusServiceUnavailable, "no TLE dataset"},
		{"decay item", newFake, http.MethodGet, "/api/v1/decay/2", http.StatusOK, `"decay_status":"PREDICTED"`},
		{"decay item missing", newFake, http.MethodGet, "/api/v1/decay/404", http.StatusNotFound, "not in snapshot"},
		{"timeline", newFake, http.MethodGet, "/api/v1/timeline", http.StatusOK, `"confirmed":1`},
		{"timeline bad kind", newFake, http.MethodGet, "/api/v1/timeline?kind=soon", http.StatusBadRequest, "kind must be"},
		{"registry item", newFake, http.MethodGet, "/api/v1/registry/1", http.StatusOK, `"decay_date":"2024-01-15"`},
		{"registry item missing", newFake, http.MethodGet, "/api/v1/registry/2", http.StatusNotFound, "no confirmed decay"},
		{"registry unavailable", func() *fakeService { return &fakeService{registryErr: service.ErrRegistryUnavailable} }, http.MethodGet, "/api/v1/registry/1", http.StatusServiceUnavailable, "unavailable"},
		{"reload", newFake, http.MethodPost, "/api/v1/registry/reload", http.StatusOK, `"records":1`},
		{"reload unavailable", func() *fakeService { return &fakeService{registryErr: service.ErrRegistryUnavailable} }, http.MethodPost, "/api/v1/registry/reload", http.StatusServiceUnavailable, "unavailable"},
		{"reload failure", func() *fakeService { return &fakeService{registryErr: errors.New("boom")} }, http.MethodPost, "/api/v1/registry/reload", http.StatusInternalServerError, "reload failed"},
		{"reload wrong method", newFake, http.MethodGet, "/api/v1/registry/reload", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(Config{}, tt.svc(), testLogger())
			rec := do(t, h, tt.method, tt.target, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body %s does not contain %s", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestDecayListFilterAndNow(t *testing.T) {
	svc := newFake()
	h := newHandler(Config{}, svc, testLogger())

	rec := do(t, h, http.MethodGet, "/api/v1/decay?status=predicted&now=2024-06-01T00:00:00Z", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if want := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC); !svc.classifyAt.Equal(want) {
		t.Errorf("classified at %v, want %v", svc.classifyAt, want)
	}

	var body decayListResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Results) != 1 || body.Results[0].CatalogID != "2" {
		t.Errorf("results = %+v", body.Results)
	}
	if body.Counts[decay.StatusConfirmed] != 1 || body.Counts[decay.StatusUnknown] != 1 {
		t.Errorf("counts = %v", body.Counts)
	}
}

func TestTimelineKindFilter(t *testing.T) {
	h := newHandler(Config{}, newFake(), testLogger())

	rec := do(t, h, http.MethodGet, "/api/v1/timeline?kind=PREDICTED", nil)
	var body timelineResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Kind != "PREDICTED" || len(body.Events) != 1 || body.Events[0].CatalogID != "2" {
		t.Errorf("unexpected timeline: %+v", body)
	}
	if body.Bounds == nil || body.Summary.Predicted != 1 || body.Summary.Confidence == nil {
		t.Errorf("missing bounds or summary: %+v", body)
	}
}

func TestReloadRequiresToken(t *testing.T) {
	svc := newFake()
	h := newHandler(Config{Auth: auth.Config{Enabled: true, Token: "s3cret"}}, svc, testLogger())

	if rec := do(t, h, http.MethodPost, "/api/v1/registry/reload", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("without token: status %d", rec.Code)
	}
	if svc.reloads != 0 {
		t.Errorf("reload ran without auth")
	}

	rec := do(t, h, http.MethodPost, "/api/v1/registry/reload", map[string]string{"Authorization": "Bearer s3cret"})
	if rec.Code != http.StatusOK || svc.reloads != 1 {
		t.Errorf("with token: status %d, reloads %d", rec.Code, svc.reloads)
	}

	if rec := do(t, h, http.MethodGet, "/api/v1/decay", nil); rec.Code != http.StatusOK {
		t.Errorf("reads must stay public, got %d", rec.Code)
	}
}
