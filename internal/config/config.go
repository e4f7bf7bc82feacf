// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config holds the Scheduler's recognized tunables (spec.md §6)
// and a YAML loader/hot-reloader for them, following the teacher's own
// config-manager pairing of gopkg.in/yaml.v3 and fsnotify.
package config

import "time"

// Tunables is every configuration option spec.md §6 recognizes.
type Tunables struct {
	MaxBufferLength    float64 `yaml:"max_buffer_length"`     // seconds
	MaxMaxBufferLength float64 `yaml:"max_max_buffer_length"` // seconds, hard cap
	MaxBufferSize      int64   `yaml:"max_buffer_size"`       // bytes

	MaxBufferHole          float64 `yaml:"max_buffer_hole"`
	MaxFragLookUpTolerance float64 `yaml:"max_frag_lookup_tolerance"`

	LiveSyncDuration            float64 `yaml:"live_sync_duration"`
	LiveSyncDurationCount       int     `yaml:"live_sync_duration_count"`
	LiveMaxLatencyDuration      float64 `yaml:"live_max_latency_duration"`
	LiveMaxLatencyDurationCount int     `yaml:"live_max_latency_duration_count"`

	InitialLiveManifestSize int  `yaml:"initial_live_manifest_size"`
	StartFragPrefetch       bool `yaml:"start_frag_prefetch"`

	StartLevel    int  `yaml:"start_level"` // -1 = auto
	TestBandwidth bool `yaml:"test_bandwidth"`

	FragLoadingMaxRetry        int           `yaml:"frag_loading_max_retry"`
	FragLoadingRetryDelay      time.Duration `yaml:"frag_loading_retry_delay"`
	FragLoadingMaxRetryTimeout time.Duration `yaml:"frag_loading_max_retry_timeout"`

	DefaultAudioCodec string  `yaml:"default_audio_codec"`
	StartPosition     float64 `yaml:"start_position"`
}

// DefaultTunables returns the defaults the Scheduler falls back to when a
// YAML file omits a field or none is supplied at all. Values follow the
// teacher's convention of keeping defaults colocated with the struct
// rather than scattered across call sites.
func DefaultTunables() Tunables {
	return Tunables{
		MaxBufferLength:    30,
		MaxMaxBufferLength: 600,
		MaxBufferSize:      60 * 1000 * 1000,

		MaxBufferHole:          0.5,
		MaxFragLookUpTolerance: 0.25,

		LiveSyncDurationCount:       3,
		LiveMaxLatencyDurationCount: 10,

		InitialLiveManifestSize: 1,
		StartFragPrefetch:       false,

		StartLevel:    -1,
		TestBandwidth: true,

		FragLoadingMaxRetry:        3,
		FragLoadingRetryDelay:      1 * time.Second,
		FragLoadingMaxRetryTimeout: 64 * time.Second,

		StartPosition: -1,
	}
}

// ResolveLiveSync fills LiveSyncDuration from LiveSyncDurationCount *
// targetDuration when the direct duration wasn't set, following spec.md
// §6's pairing of the two options.
func (t *Tunables) ResolveLiveSync(targetDuration float64) {
	if t.LiveSyncDuration == 0 && t.LiveSyncDurationCount > 0 {
		t.LiveSyncDuration = float64(t.LiveSyncDurationCount) * targetDuration
	}
	if t.LiveMaxLatencyDuration == 0 && t.LiveMaxLatencyDurationCount > 0 {
		t.LiveMaxLatencyDuration = float64(t.LiveMaxLatencyDurationCount) * targetDuration
	}
}
