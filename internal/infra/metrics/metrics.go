// Package metrics provides the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsApplied counts registry events by type.
	EventsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plsync",
		Subsystem: "registry",
		Name:      "events_applied_total",
		Help:      "Number of registry events applied, by event type.",
	}, []string{"type"})

	// Playlists tracks the number of playlists held by the registry.
	Playlists = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "plsync",
		Subsystem: "registry",
		Name:      "playlists",
		Help:      "Number of playlists currently held by the registry.",
	})

	// ReleaseFailures counts failed reference releases during removal or teardown.
	ReleaseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "plsync",
		Subsystem: "registry",
		Name:      "release_failures_total",
		Help:      "Number of session reference releases that returned an error.",
	})

	// SettingsErrors counts settings store failures by operation (read, write).
	SettingsErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plsync",
		Subsystem: "settings",
		Name:      "errors_total",
		Help:      "Number of settings store failures, by operation.",
	}, []string{"op"})

	// Exports counts export attempts by result (written, failed, dropped).
	Exports = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plsync",
		Subsystem: "export",
		Name:      "playlists_total",
		Help:      "Number of playlist exports, by result.",
	}, []string{"result"})

	// FilteredTracks counts tracks left out of exports, by filter code.
	FilteredTracks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plsync",
		Subsystem: "export",
		Name:      "filtered_tracks_total",
		Help:      "Number of tracks dropped by export filters, by code.",
	}, []string{"code"})
)
