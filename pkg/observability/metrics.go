package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records plan, step and run metrics in Prometheus.
type Metrics struct {
	gatherer prometheus.Gatherer

	Plans        *prometheus.CounterVec
	PlanDuration prometheus.Histogram
	PlanSteps    prometheus.Histogram
	Steps        *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec
	Runs         *prometheus.CounterVec
	RunDuration  prometheus.Histogram
}

// NewMetrics creates and registers the collectors. A nil registry uses a fresh one.
func NewMetrics(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		gatherer: reg,
		Plans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conductor_plans_total",
			Help: "Plans generated, by outcome (valid or rejected)",
		}, []string{"outcome"}),
		PlanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "conductor_plan_generation_seconds",
			Help:    "Time spent generating and validating plans",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		PlanSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "conductor_plan_steps",
			Help:    "Number of steps per valid plan",
			Buckets: prometheus.LinearBuckets(1, 2, 8),
		}),
		Steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conductor_step_invocations_total",
			Help: "Capability invocations, by capability and outcome",
		}, []string{"capability", "outcome"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "conductor_step_duration_seconds",
			Help:    "Duration of capability invocations",
			Buckets: prometheus.DefBuckets,
		}, []string{"capability"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conductor_runs_total",
			Help: "Plan executions, by final status",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "conductor_run_duration_seconds",
			Help:    "Duration of plan executions",
			Buckets: prometheus.DefBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{m.Plans, m.PlanDuration, m.PlanSteps, m.Steps, m.StepDuration, m.Runs, m.RunDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks that update the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPlanGenerated: func(_ context.Context, e *domain.PlanEvent) {
			m.PlanDuration.Observe(e.Duration.Seconds())
			if e.Err != nil {
				m.Plans.WithLabelValues("rejected").Inc()
				return
			}
			m.Plans.WithLabelValues("valid").Inc()
			m.PlanSteps.Observe(float64(e.Steps))
		},
		OnStepEnd: func(_ context.Context, e *domain.StepEvent) {
			outcome := "ok"
			switch {
			case e.Skipped:
				m.Steps.WithLabelValues(e.Capability, "skipped").Inc()
				return
			case e.Err != nil:
				outcome = "error"
			}
			m.Steps.WithLabelValues(e.Capability, outcome).Inc()
			m.StepDuration.WithLabelValues(e.Capability).Observe(e.Duration.Seconds())
		},
		OnRunEnd: func(_ context.Context, e *domain.RunEvent) {
			m.Runs.WithLabelValues(string(e.Status)).Inc()
			m.RunDuration.Observe(e.Duration.Seconds())
		},
	}
}

// Handler serves the collected metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
