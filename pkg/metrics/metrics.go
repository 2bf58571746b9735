package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	presstrack = "presstrack"

	// Workflow metrics
	transitionsTotal         = "transitions_total"
	transitionsRejectedTotal = "transitions_rejected_total"

	// Realtime metrics
	connectedClientsCount = "connected_clients_count"
	eventsDeliveredTotal  = "events_delivered_total"

	// Labels
	fromStatusLabel = "from"
	toStatusLabel   = "to"
	reasonLabel     = "reason"
	eventKindLabel  = "kind"
)

var transitionsTotalLabels = []string{
	fromStatusLabel,
	toStatusLabel,
}

var transitionsRejectedLabels = []string{
	reasonLabel,
}

var eventsDeliveredLabels = []string{
	eventKindLabel,
}

/**
* Metrics definition
**/
var transitionsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: presstrack,
		Name:      transitionsTotal,
		Help:      "number of applied job status transitions",
	},
	transitionsTotalLabels,
)

var transitionsRejectedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: presstrack,
		Name:      transitionsRejectedTotal,
		Help:      "number of rejected job status transitions by reason",
	},
	transitionsRejectedLabels,
)

var connectedClientsCountMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Subsystem: presstrack,
		Name:      connectedClientsCount,
		Help:      "number of realtime connections currently registered",
	},
)

var eventsDeliveredTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: presstrack,
		Name:      eventsDeliveredTotal,
		Help:      "number of events delivered to realtime subscribers",
	},
	eventsDeliveredLabels,
)

func IncreaseTransitionsTotalMetric(from, to string) {
	labels := prometheus.Labels{
		fromStatusLabel: from,
		toStatusLabel:   to,
	}
	transitionsTotalMetric.With(labels).Inc()
}

func IncreaseTransitionsRejectedMetric(reason string) {
	labels := prometheus.Labels{
		reasonLabel: reason,
	}
	transitionsRejectedTotalMetric.With(labels).Inc()
}

func UpdateConnectedClientsMetric(count int) {
	connectedClientsCountMetric.Set(float64(count))
}

func AddEventsDelivered(kind string, count int) {
	if count <= 0 {
		return
	}
	labels := prometheus.Labels{
		eventKindLabel: kind,
	}
	eventsDeliveredTotalMetric.With(labels).Add(float64(count))
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(transitionsTotalMetric)
	prometheus.MustRegister(transitionsRejectedTotalMetric)
	prometheus.MustRegister(connectedClientsCountMetric)
	prometheus.MustRegister(eventsDeliveredTotalMetric)
}
