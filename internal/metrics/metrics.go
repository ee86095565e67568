// Package metrics exposes Prometheus instruments for the ingestion path.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rejection reasons
const (
	ReasonInvalidBody      = "invalid_body"
	ReasonValidation       = "validation"
	ReasonUnknownTracking  = "unknown_tracking_code"
	ReasonUnknownVisitor   = "unknown_visitor"
	ReasonPersistence      = "persistence"
	ReasonMethodNotAllowed = "method_not_allowed"
)

var (
	// EventsIngestedTotal counts accepted events by type.
	EventsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitepulse_events_ingested_total",
			Help: "Total number of tracker events accepted",
		},
		[]string{"event_type"},
	)

	// IngestRejectionsTotal counts events that were not recorded.
	IngestRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitepulse_ingest_rejections_total",
			Help: "Total number of tracker events rejected or ignored",
		},
		[]string{"reason"},
	)

	// VisitorsCreatedTotal counts visitors first seen by the server.
	VisitorsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sitepulse_visitors_created_total",
			Help: "Total number of visitors created",
		},
	)

	// IngestDuration tracks the time spent handling one event.
	IngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sitepulse_ingest_duration_seconds",
			Help:    "Duration of event ingestion in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"event_type"},
	)
)

// RecordIngested records an accepted event
func RecordIngested(eventType string, visitorCreated bool, duration time.Duration) {
	EventsIngestedTotal.WithLabelValues(eventType).Inc()
	IngestDuration.WithLabelValues(eventType).Observe(duration.Seconds())
	if visitorCreated {
		VisitorsCreatedTotal.Inc()
	}
}

// RecordRejected records an event that was not stored
func RecordRejected(reason string) {
	IngestRejectionsTotal.WithLabelValues(reason).Inc()
}
