// Package metrics holds the Prometheus collectors for the dispatch path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Dispatches counts dispatch attempts by result: sent, failed,
	// queued, insufficient_credit, error.
	Dispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sms_dispatch_total",
		Help: "Dispatch attempts by result",
	}, []string{"result"})

	// Deliveries counts provider calls by result.
	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sms_delivery_total",
		Help: "Provider send calls by result",
	}, []string{"result"})

	StatusCallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sms_status_callbacks_total",
		Help: "Provider status callbacks by result",
	}, []string{"result"})

	LeadAgeSweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sms_lead_age_sweep_total",
		Help: "Lead-age sweep dispatches by result",
	}, []string{"result"})
)
