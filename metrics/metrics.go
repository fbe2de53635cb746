package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// GeocodeRequestsTotal counts geocode lookups by outcome.
	GeocodeRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "disastercoord",
		Subsystem: "geocode",
		Name:      "requests_total",
		Help:      "Total geocode lookups, labeled by outcome (cache_hit, resolved, unresolved).",
	}, []string{"outcome"})

	// ProviderCallsTotal counts individual provider invocations by result.
	ProviderCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "disastercoord",
		Subsystem: "geocode",
		Name:      "provider_calls_total",
		Help:      "Total geocoding provider calls, labeled by provider and result.",
	}, []string{"provider", "result"})

	// RotationAdvancesTotal counts rotation-pointer advances after failures.
	RotationAdvancesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "disastercoord",
		Subsystem: "geocode",
		Name:      "rotation_advances_total",
		Help:      "Times the provider rotation pointer advanced after a failed call.",
	})

	// EnrichmentStepFailures counts swallowed enrichment-step failures.
	EnrichmentStepFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "disastercoord",
		Subsystem: "enrichment",
		Name:      "step_failures_total",
		Help:      "Enrichment pipeline step failures that were recovered (extract, geocode, nearby, verify, social).",
	}, []string{"step"})

	// ConnectedClients is the current number of WebSocket clients.
	ConnectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "disastercoord",
		Subsystem: "websocket",
		Name:      "connected_clients",
		Help:      "Current number of connected WebSocket clients.",
	})

	// EventsBroadcastTotal counts entity change events broadcast to clients.
	EventsBroadcastTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "disastercoord",
		Subsystem: "websocket",
		Name:      "events_broadcast_total",
		Help:      "Total entity change events broadcast, labeled by event type.",
	}, []string{"event"})
)

// Register registers service metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			GeocodeRequestsTotal,
			ProviderCallsTotal,
			RotationAdvancesTotal,
			EnrichmentStepFailures,
			ConnectedClients,
			EventsBroadcastTotal,
		)
	})
}
