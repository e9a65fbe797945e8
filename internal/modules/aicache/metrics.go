package aicache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "wayfarer",
	Subsystem: "ai_cache",
	Name:      "lookups_total",
	Help:      "Itinerary cache lookups by tier and result.",
}, []string{"tier", "result"})

func recordLookup(tier string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(tier, result).Inc()
}
