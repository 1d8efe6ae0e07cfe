// Package metrics exposes the engine's Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Deliveries counts entry point invocations by path and outcome.
	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "partsflow_deliveries_total",
		Help: "Entry point invocations by path (incoming, outgoing) and outcome (ok, error, noop).",
	}, []string{"path", "outcome"})

	// ValidationFailures counts rejected inbound messages by failure kind.
	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "partsflow_validation_failures_total",
		Help: "Inbound messages rejected by validation, by failure kind.",
	}, []string{"kind"})

	// StepsAppended counts persisted tracker steps by status.
	StepsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "partsflow_steps_appended_total",
		Help: "Tracker steps appended, by flow status.",
	}, []string{"status"})
)
