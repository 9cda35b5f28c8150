package observability

import (
	"context"

	"github.com/aretw0/easel/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors fed by editor lifecycle events.
type Metrics struct {
	Actions       *prometheus.CounterVec
	Failures      *prometheus.CounterVec
	Commits       prometheus.Counter
	History       *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	UndoDepth     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is handy in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "easel_actions_dispatched_total",
				Help: "Total number of dispatched actions, including follow-ups",
			},
			[]string{"action"},
		),
		Failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "easel_action_failures_total",
				Help: "Total number of actions whose dispatch failed",
			},
			[]string{"action"},
		),
		Commits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "easel_commits_total",
			Help: "Total number of cycles committed into the snapshot store",
		}),
		History: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "easel_history_operations_total",
				Help: "Total number of history snapshots, undos and redos",
			},
			[]string{"op"},
		),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "easel_cycle_duration_seconds",
			Help:    "Duration of full event cycles, follow-ups included",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		UndoDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "easel_undo_depth",
			Help: "Number of snapshots available to undo",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Actions, m.Failures, m.Commits, m.History, m.CycleDuration, m.UndoDepth)
	}
	return m
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnActionDispatch: func(_ context.Context, e *domain.ActionEvent) {
			m.Actions.WithLabelValues(e.Action).Inc()
		},
		OnActionComplete: func(_ context.Context, e *domain.ActionEvent) {
			if e.Err != nil {
				m.Failures.WithLabelValues(e.Action).Inc()
			}
			// Depth 0 spans the whole cycle.
			if e.Depth == 0 {
				m.CycleDuration.Observe(e.Duration.Seconds())
			}
		},
		OnCommit: func(context.Context, *domain.CommitEvent) {
			m.Commits.Inc()
		},
		OnHistory: func(_ context.Context, e *domain.HistoryEvent) {
			m.History.WithLabelValues(string(e.Type)).Inc()
			m.UndoDepth.Set(float64(e.Past))
		},
	}
}
