// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package diag

import (
	"encoding/json"
	"net/http"

	"github.com/ManuGH/hlscore/internal/scheduler"
)

// SchedulerHealth adapts a *scheduler.Scheduler into a HealthResponder.
// Liveness only checks the process is serving; readiness additionally
// requires the Scheduler to be out of STOPPED and ERROR, since neither
// state is making forward progress toward playback.
type SchedulerHealth struct {
	Scheduler *scheduler.Scheduler
}

func (h SchedulerHealth) ServeHealth(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h SchedulerHealth) ServeReady(w http.ResponseWriter, r *http.Request) {
	state := h.Scheduler.State()
	switch state {
	case scheduler.StateStopped, scheduler.StateError:
		writeStatus(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"state":  string(state),
		})
	default:
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "ready",
			"state":  string(state),
		})
	}
}

func writeStatus(w http.ResponseWriter, code int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
