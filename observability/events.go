package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	floorRatchets *prometheus.CounterVec
	commitments   *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking discrete protocol events:
// floor ratchet advances and keeper field-commitment updates. These are
// rare, high-signal transitions worth counting on their own rather than
// folding into the swap/JIT histograms in the metrics package.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			floorRatchets: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fluxfield",
				Subsystem: "events",
				Name:      "floor_ratchets_total",
				Help:      "Count of floor ratchet advances segmented by market.",
			}, []string{"market"}),
			commitments: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fluxfield",
				Subsystem: "events",
				Name:      "field_commitments_total",
				Help:      "Count of accepted keeper field commitments segmented by market.",
			}, []string{"market"}),
		}
		prometheus.MustRegister(eventRegistry.floorRatchets, eventRegistry.commitments)
	})
	return eventRegistry
}

// RecordFloorRatchet increments the floor ratchet counter for the named market.
func (m *eventMetrics) RecordFloorRatchet(market string) {
	if m == nil {
		return
	}
	m.floorRatchets.WithLabelValues(normalizeMarketLabel(market)).Inc()
}

// RecordCommitment increments the field commitment counter for the named market.
func (m *eventMetrics) RecordCommitment(market string) {
	if m == nil {
		return
	}
	m.commitments.WithLabelValues(normalizeMarketLabel(market)).Inc()
}

func normalizeMarketLabel(market string) string {
	normalized := strings.TrimSpace(market)
	if normalized == "" {
		normalized = "unknown"
	}
	return normalized
}
