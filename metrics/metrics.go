// Package metrics exposes the tracker's Prometheus collectors. Collectors
// are registered once at import via promauto and shared process-wide.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestCycles counts ingestion cycles by outcome (applied, skipped).
	IngestCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_ingest_cycles_total",
			Help: "Total number of ingestion cycles by outcome",
		},
		[]string{"outcome"},
	)

	// UpstreamRequests counts provider requests by endpoint and result.
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_upstream_requests_total",
			Help: "Total number of upstream provider requests",
		},
		[]string{"endpoint", "result"},
	)

	// HistoryServed counts reconciled series by the source that won:
	// store, upstream or synthetic.
	HistoryServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_history_series_total",
			Help: "Total number of history series served by source",
		},
		[]string{"source"},
	)

	// AlertsTriggered counts alert rules fired.
	AlertsTriggered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_alerts_triggered_total",
			Help: "Total number of alert rules fired",
		},
	)

	// WSClients tracks connected websocket subscribers.
	WSClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_ws_clients",
			Help: "Number of connected websocket subscribers",
		},
	)
)
