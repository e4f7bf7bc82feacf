// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics exposes Prometheus instrumentation for the Scheduler's
// tick loop, state machine, and event bus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BusDropsTotal counts in-memory bus message drops (backpressure/cancel).
	BusDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlscore_bus_drop_total",
		Help: "Total number of in-memory bus message drops (backpressure)",
	}, []string{"topic"})

	// BusDroppedTotal is BusDropsTotal broken out by drop reason.
	BusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlscore_bus_dropped_total",
		Help: "Total number of in-memory bus message drops by topic and reason",
	}, []string{"topic", "reason"})

	// TickDuration observes how long one Scheduler.Tick() call takes.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hlscore_tick_duration_seconds",
		Help:    "Duration of a single scheduler tick",
		Buckets: prometheus.DefBuckets,
	})

	// FSMTransitions counts Scheduler state transitions.
	FSMTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlscore_fsm_transitions_total",
		Help: "Total scheduler state machine transitions",
	}, []string{"from", "to"})

	// FragLoadRetries counts retry attempts per reason code.
	FragLoadRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlscore_frag_load_retries_total",
		Help: "Total fragment/key load retry attempts",
	}, []string{"reason"})

	// BacktracksTotal counts backtrack events (spec.md §4.9).
	BacktracksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlscore_backtracks_total",
		Help: "Total number of dropped-frame backtrack recoveries",
	})

	// BufferLenSeconds reports the last-observed buffer length ahead of
	// playback position.
	BufferLenSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hlscore_buffer_len_seconds",
		Help: "Seconds of buffered media ahead of the current playback position",
	})
)

// IncBusDrop records a dropped bus message for the given topic with the
// reason "full".
func IncBusDrop(topic string) {
	IncBusDropReason(topic, "full")
}

// IncBusDropReason records a dropped bus message with a concrete reason.
func IncBusDropReason(topic, reason string) {
	if topic == "" {
		topic = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	BusDropsTotal.WithLabelValues(topic).Inc()
	BusDroppedTotal.WithLabelValues(topic, reason).Inc()
}
