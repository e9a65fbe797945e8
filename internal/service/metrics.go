package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wayfarer_ai_provider_attempts_total",
		Help: "Provider attempts by slot, backend and outcome.",
	}, []string{"slot", "backend", "outcome"})

	generationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wayfarer_ai_generation_duration_seconds",
		Help:    "End-to-end itinerary generation latency.",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
	}, []string{"outcome"})

	poiEnrichments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wayfarer_poi_enrichments_total",
		Help: "Activity POI resolutions by outcome.",
	}, []string{"outcome"})
)
