package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tag payload validations partitioned by entry point and outcome
	tagValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_tag_validations_total",
			Help: "Tag payload validations by source and result",
		},
		[]string{"source", "result"},
	)

	segmentSetupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_segment_setups_total",
			Help: "Segment setup submissions by result",
		},
		[]string{"result"},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_cache_lookups_total",
			Help: "Cache lookups by cache name and outcome",
		},
		[]string{"cache", "outcome"},
	)
)

func observeValidation(source string, ok bool) {
	result := "ok"
	if !ok {
		result = "invalid"
	}
	tagValidationsTotal.WithLabelValues(source, result).Inc()
}

func observeCache(cache string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	cacheLookupsTotal.WithLabelValues(cache, outcome).Inc()
}

func observeSetup(result string) {
	segmentSetupsTotal.WithLabelValues(result).Inc()
}
