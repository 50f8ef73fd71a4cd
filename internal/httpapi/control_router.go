package httpapi

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/mux"

	"github.com/FairForge/s3sweep/internal/config"
	"github.com/FairForge/s3sweep/internal/metrics"
)

// statsSnapshot is the JSON shape GET /v1/stats returns: the "external
// stats printer" spec.md §4.8 describes as out of scope gets this one
// concrete in-tree consumer.
type statsSnapshot struct {
	OpsInFlight       int64 `json:"ops_in_flight"`
	TotalOps          int64 `json:"total_ops"`
	TotalErrors       int64 `json:"total_errors"`
	TotalQueueLength  int64 `json:"total_queue_length"`
	TotalObjectsFound int64 `json:"total_objects_found"`
	KeysWritten       int64 `json:"keys_written"`
	ActiveWorkers     int64 `json:"active_workers"`
	TargetWorkers     int64 `json:"target_workers"`
}

// tuningUpdate is the request body PUT /v1/tuning accepts. Bucket,
// endpoint, and credentials are never part of this surface — only the
// fields config.TuningKnobs itself exposes for hot reload.
type tuningUpdate struct {
	ScaleUpFactor    *float64 `json:"scale_up_factor,omitempty"`
	ScaleDownFactor  *float64 `json:"scale_down_factor,omitempty"`
	ScalingIntervalS *int     `json:"scaling_interval_seconds,omitempty"`
	RateLimit        *int     `json:"rate_limit,omitempty"`
	RateBurst        *int     `json:"rate_burst,omitempty"`
}

// ControlRouter exposes a JSON stats snapshot and a tuning-knob update
// endpoint. knobs is the same atomic.Pointer[config.TuningKnobs] the
// config.Watcher publishes to; a PUT here and a file-triggered reload
// both just replace the pointer, so whichever happens last wins.
func ControlRouter(m *metrics.Metrics, knobs *atomic.Pointer[config.TuningKnobs]) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/v1/stats", func(w http.ResponseWriter, r *http.Request) {
		snap := statsSnapshot{
			OpsInFlight:       m.OpsInFlight.Load(),
			TotalOps:          m.TotalOps.Load(),
			TotalErrors:       m.TotalErrors.Load(),
			TotalQueueLength:  m.TotalQueueLength.Load(),
			TotalObjectsFound: m.TotalObjectsFound.Load(),
			KeysWritten:       m.KeysWritten.Load(),
			ActiveWorkers:     m.ActiveWorkers.Load(),
			TargetWorkers:     m.TargetWorkers.Load(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap)
	}).Methods(http.MethodGet)

	r.HandleFunc("/v1/tuning", func(w http.ResponseWriter, r *http.Request) {
		var update tuningUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
			return
		}

		current := *knobs.Load()
		if update.ScaleUpFactor != nil {
			current.ScaleUpFactor = *update.ScaleUpFactor
		}
		if update.ScaleDownFactor != nil {
			current.ScaleDownFactor = *update.ScaleDownFactor
		}
		if update.ScalingIntervalS != nil {
			current.ScalingIntervalS = *update.ScalingIntervalS
		}
		if update.RateLimit != nil {
			current.RateLimit = *update.RateLimit
		}
		if update.RateBurst != nil {
			current.RateBurst = *update.RateBurst
		}
		knobs.Store(&current)
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodPut)

	return r
}
