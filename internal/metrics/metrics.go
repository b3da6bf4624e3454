// Package metrics registers the service's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the service collectors.
type Metrics struct {
	Registry *prometheus.Registry

	// Transitions counts lifecycle transitions by action.
	Transitions *prometheus.CounterVec
	// CommentsPosted counts appended comments.
	CommentsPosted prometheus.Counter
	// BadgeUpdates counts incremental badge-counter adjustments.
	BadgeUpdates prometheus.Counter
}

// New creates and registers the service collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		Registry: reg,
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procurement",
			Name:      "request_transitions_total",
			Help:      "Lifecycle transitions applied to requests, by action.",
		}, []string{"action"}),
		CommentsPosted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "procurement",
			Name:      "comments_posted_total",
			Help:      "Comments appended to request discussions.",
		}),
		BadgeUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "procurement",
			Name:      "badge_updates_total",
			Help:      "Incremental badge-counter adjustments.",
		}),
	}
	reg.MustRegister(m.Transitions, m.CommentsPosted, m.BadgeUpdates)
	return m
}
