// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package diag exposes the Scheduler's debug/metrics HTTP surface
// (SPEC_FULL.md §B): health/readiness probes and a Prometheus scrape
// endpoint, built the way the teacher wires its own chi router and
// httprate-based rate limiting, adapted from a multi-route API server to
// a small operator-facing sidecar.
package diag

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthResponder captures the health/readiness contract the router
// delegates to, mirroring the teacher's system.HealthResponder split
// between liveness (process is running) and readiness (scheduler is
// actually ticking).
type HealthResponder interface {
	ServeHealth(w http.ResponseWriter, r *http.Request)
	ServeReady(w http.ResponseWriter, r *http.Request)
}

// Config configures the diagnostics router.
type Config struct {
	RateLimitRequests int           // requests allowed per window; 0 disables rate limiting
	RateLimitWindow   time.Duration // defaults to 1 minute if RateLimitRequests > 0 and this is 0
}

// NewRouter builds the chi router serving /healthz, /readyz, and
// /metrics, following the teacher's own layering: Recoverer first, then
// request ID, then an optional sliding-window rate limiter via httprate
// ahead of the Prometheus handler (scrapers are trusted but still
// capped, same as the teacher's public API endpoints).
func NewRouter(responder HealthResponder, cfg Config) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	if cfg.RateLimitRequests > 0 {
		window := cfg.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		r.Use(httprate.Limit(cfg.RateLimitRequests, window, httprate.WithKeyFuncs(httprate.KeyByIP)))
	}

	r.Get("/healthz", responder.ServeHealth)
	r.Get("/readyz", responder.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
