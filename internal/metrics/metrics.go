package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cortexblob_frames_total",
			Help: "Total number of frames stepped",
		},
	)

	FrameDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cortexblob_frame_duration_seconds",
			Help:    "Time spent advancing and displacing one frame",
			Buckets: []float64{.0005, .001, .002, .004, .008, .016, .033, .066},
		},
	)

	PresetsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortexblob_presets_applied_total",
			Help: "Preset retargets by source",
		},
		[]string{"source"},
	)

	PresetMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cortexblob_preset_misses_total",
			Help: "Apply requests naming an unknown preset",
		},
	)

	SentimentEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortexblob_sentiment_events_total",
			Help: "Sentiment labels received by routing outcome",
		},
		[]string{"outcome"},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cortexblob_events_dropped_total",
			Help: "Inbound events dropped because the queue was full",
		},
	)

	SessionActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cortexblob_session_active",
			Help: "1 while a session is being tracked",
		},
	)

	TransitionProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cortexblob_transition_progress",
			Help: "Linear progress of the current preset transition",
		},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cortexblob_websocket_clients",
			Help: "Number of connected websocket clients",
		},
	)
)

// Sentiment routing outcomes
const (
	OutcomeRouted    = "routed"
	OutcomeUnmatched = "unmatched"
	OutcomeUnchanged = "unchanged"
)
