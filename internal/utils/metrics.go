// internal/utils/metrics.go
package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Preview domain metrics. HTTP request metrics come from go-gin-prometheus.
var (
	// PreviewLoadsTotal counts aggregate document loads by result (ok, not_found, error)
	PreviewLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "story_preview_loads_total",
		Help: "Total number of preview data documents built, by result.",
	}, []string{"result"})

	// ChapterParseFailuresTotal counts chapter files embedded with an error marker
	ChapterParseFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "story_preview_chapter_parse_failures_total",
		Help: "Total number of chapter files that failed to parse.",
	})

	// AssetLookupsTotal counts asset/avatar lookups by kind and how they resolved
	AssetLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "story_preview_asset_lookups_total",
		Help: "Asset and avatar lookups, by kind and outcome (direct, fallback, miss).",
	}, []string{"kind", "outcome"})

	// DocumentCacheTotal counts YAML document cache hits and misses
	DocumentCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "story_preview_document_cache_total",
		Help: "YAML document cache lookups, by outcome (hit, miss).",
	}, []string{"outcome"})

	// PlaybackSessionsActive tracks open playback WebSocket sessions
	PlaybackSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "story_preview_playback_sessions_active",
		Help: "Number of open playback sessions.",
	})

	// PlaybackAdvancesTotal counts engine advances by trigger (manual, auto)
	PlaybackAdvancesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "story_preview_playback_advances_total",
		Help: "Playback advances, by trigger.",
	}, []string{"trigger"})
)
