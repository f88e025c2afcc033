// Package metrics records merge activity as Prometheus metrics.
package metrics

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors holds the merge metrics of one tree.
type Collectors struct {
	NodesInserted *prometheus.CounterVec
	Contributions *prometheus.CounterVec
	Errors        *prometheus.CounterVec
	MergeDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		NodesInserted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_nodes_inserted_total",
				Help: "Total number of nodes inserted into the extension tree",
			},
			[]string{"module"},
		),
		Contributions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_contributions_total",
				Help: "Total number of contributions merged, by outcome",
			},
			[]string{"module", "outcome"},
		),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_reported_errors_total",
				Help: "Total number of errors reported while merging",
			},
			[]string{"module", "severity"},
		),
		MergeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arbor_contribution_duration_seconds",
				Help:    "Duration of LoadContribution calls",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"module"},
		),
	}
	if reg != nil {
		reg.MustRegister(c.NodesInserted, c.Contributions, c.Errors, c.MergeDuration)
	}
	return c
}

// Hooks returns lifecycle hooks feeding the collectors.
func (c *Collectors) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeInserted: func(_ context.Context, e *domain.NodeEvent) {
			c.NodesInserted.WithLabelValues(e.ModuleID).Inc()
		},
		OnContributionLoaded: func(_ context.Context, e *domain.ContributionEvent) {
			outcome := "ok"
			if e.Err != nil {
				outcome = "fatal"
			}
			c.Contributions.WithLabelValues(e.ModuleID, outcome).Inc()
			c.MergeDuration.WithLabelValues(e.ModuleID).Observe(e.Duration.Seconds())
		},
		OnErrorReported: func(_ context.Context, e *domain.ErrorEvent) {
			severity := "error"
			if e.Warning {
				severity = "warning"
			}
			c.Errors.WithLabelValues(e.ModuleID, severity).Inc()
		},
	}
}
