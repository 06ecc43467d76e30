package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/arcazj/openbexi-earth-orbit/internal/decay"
	"github.com/arcazj/openbexi-earth-orbit/internal/httputil"
	"github.com/arcazj/openbexi-earth-orbit/internal/registry"
	"github.com/arcazj/openbexi-earth-orbit/internal/service"
	"github.com/arcazj/openbexi-earth-orbit/internal/timeline"
	"github.com/arcazj/openbexi-earth-orbit/internal/tle"
)

type decayListResponse struct {
	RunID            string               `json:"run_id"`
	GeneratedAt      time.Time            `json:"generated_at"`
	Now              time.Time            `json:"now"`
	DatasetSource    string               `json:"dataset_source"`
	DatasetFetchedAt time.Time            `json:"dataset_fetched_at"`
	RegistrySource   string               `json:"registry_source,omitempty"`
	RegistryRecords  int                  `json:"registry_records"`
	Counts           map[decay.Status]int `json:"counts"`
	Results          []service.Result     `json:"results"`
}

type timelineResponse struct {
	RunID   string           `json:"run_id"`
	Now     time.Time        `json:"now"`
	Kind    timeline.Kind    `json:"kind"`
	Bounds  *timeline.Range  `json:"bounds"`
	Summary timeline.Summary `json:"summary"`
	Events  []timeline.Event `json:"events"`
}

func parseStatus(s string) (decay.Status, bool) {
	switch st := decay.Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case decay.StatusConfirmed, decay.StatusPredicted, decay.StatusUnknown:
		return st, true
	default:
		return "", false
	}
}

// decayListHandler serves the latest snapshot, or a fresh one computed at
// ?now= (RFC 3339), optionally filtered by ?status=.
func decayListHandler(svc DecayService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var status decay.Status
		if v := q.Get("status"); v != "" {
			st, ok := parseStatus(v)
			if !ok {
				httputil.WriteError(w, http.StatusBadRequest, "status must be CONFIRMED, PREDICTED or UNKNOWN")
				return
			}
			status = st
		}

		var snap *service.Snapshot
		if v := q.Get("now"); v != "" {
			now, err := time.Parse(time.RFC3339, v)
			if err != nil {
				httputil.WriteError(w, http.StatusBadRequest, "now must be an RFC 3339 timestamp")
				return
			}
			snap, err = svc.Classify(r.Context(), now)
			if errors.Is(err, tle.ErrNoDataset) {
				httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
				return
			}
			if err != nil {
				logger.Error("on-demand classification failed", "error", err)
				httputil.WriteError(w, http.StatusInternalServerError, "classification failed")
				return
			}
		} else if snap = svc.Latest(); snap == nil {
			httputil.WriteError(w, http.StatusServiceUnavailable, service.ErrNoSnapshot.Error())
			return
		}

		results := snap.Results
		if status != "" {
			results = snap.WithStatus(status)
		}

		httputil.WriteJSON(w, http.StatusOK, decayListResponse{
			RunID:            snap.RunID,
			GeneratedAt:      snap.GeneratedAt,
			Now:              snap.Now,
			DatasetSource:    snap.DatasetSource,
			DatasetFetchedAt: snap.DatasetFetchedAt,
			RegistrySource:   snap.RegistrySource,
			RegistryRecords:  snap.RegistryRecords,
			Counts:           snap.Counts(),
			Results:          results,
		})
	}
}

func decayItemHandler(svc DecayService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Lookup(r.PathValue("catalog_id"))
		switch {
		case errors.Is(err, service.ErrNoSnapshot):
			httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, service.ErrNotFound):
			httputil.WriteError(w, http.StatusNotFound, err.Error())
		case err != nil:
			httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		default:
			httputil.WriteJSON(w, http.StatusOK, res)
		}
	}
}

func timelineHandler(svc DecayService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := timeline.ParseKind(r.URL.Query().Get("kind"))
		if !ok {
			httputil.WriteError(w, http.StatusBadRequest, "kind must be ALL, CONFIRMED or PREDICTED")
			return
		}

		snap := svc.Latest()
		if snap == nil {
			httputil.WriteError(w, http.StatusServiceUnavailable, service.ErrNoSnapshot.Error())
			return
		}

		events := timeline.Filter(snap.Timeline(), kind)
		resp := timelineResponse{
			RunID:   snap.RunID,
			Now:     snap.Now,
			Kind:    kind,
			Summary: timeline.Summarize(events),
			Events:  events,
		}
		if resp.Events == nil {
			resp.Events = []timeline.Event{}
		}
		if b, ok := timeline.Bounds(events); ok {
			resp.Bounds = &b
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}

func registryItemHandler(svc DecayService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := svc.RegistryRecord(r.Context(), r.PathValue("catalog_id"))
		switch {
		case errors.Is(err, service.ErrRegistryUnavailable):
			httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, registry.ErrNotFound):
			httputil.WriteError(w, http.StatusNotFound, err.Error())
		case err != nil:
			httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		default:
			httputil.WriteJSON(w, http.StatusOK, rec)
		}
	}
}

func registryReloadHandler(svc DecayService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := svc.ReloadRegistry(r.Context())
		if errors.Is(err, service.ErrRegistryUnavailable) {
			httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		if err != nil {
			logger.Error("registry reload failed", "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "registry reload failed")
			return
		}
		logger.Info("registry reloaded", "records", n)
		httputil.WriteJSON(w, http.StatusOK, map[string]int{"records": n})
	}
}
