package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeHooks(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{OnRunEnd: func(context.Context, *domain.RunEvent) { calls = append(calls, "a") }}
	b := domain.LifecycleHooks{
		OnRunEnd:  func(context.Context, *domain.RunEvent) { calls = append(calls, "b") },
		OnStepEnd: func(context.Context, *domain.StepEvent) { calls = append(calls, "b-step") },
	}

	hooks := observability.ComposeHooks(a, domain.LifecycleHooks{}, b)
	hooks.OnRunEnd(context.Background(), &domain.RunEvent{})
	hooks.OnStepEnd(context.Background(), &domain.StepEvent{})

	assert.Equal(t, []string{"a", "b", "b-step"}, calls)
	assert.Nil(t, hooks.OnPlanGenerated)
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	hooks := observability.LogHooks(logger)
	ctx := context.Background()

	hooks.OnPlanGenerated(ctx, &domain.PlanEvent{PlanID: "p1", Steps: 2})
	hooks.OnStepEnd(ctx, &domain.StepEvent{StepID: "s1", Capability: "math.divide", Err: errors.New("division by zero")})
	hooks.OnRunEnd(ctx, &domain.RunEvent{Status: domain.RunCompleted, Completed: 2, Total: 2})

	out := buf.String()
	assert.Contains(t, out, "Plan generated")
	assert.Contains(t, out, "level=WARN msg=\"Step failed\"")
	assert.Contains(t, out, "status=completed")
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnPlanGenerated(ctx, &domain.PlanEvent{Steps: 3, Duration: time.Second})
	hooks.OnPlanGenerated(ctx, &domain.PlanEvent{Err: errors.New("invalid")})
	hooks.OnStepEnd(ctx, &domain.StepEvent{Capability: "math.add", Duration: time.Millisecond})
	hooks.OnStepEnd(ctx, &domain.StepEvent{Capability: "math.add", Err: errors.New("boom")})
	hooks.OnStepEnd(ctx, &domain.StepEvent{Capability: "text.upper", Skipped: true})
	hooks.OnRunEnd(ctx, &domain.RunEvent{Status: domain.RunFailed})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Plans.WithLabelValues("valid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Plans.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Steps.WithLabelValues("math.add", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Steps.WithLabelValues("math.add", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Steps.WithLabelValues("text.upper", "skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("failed")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "conductor_runs_total{status=\"failed\"} 1")

	_, err = observability.NewMetrics(reg)
	assert.Error(t, err, "collectors cannot be registered twice")
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return p.err
}

func TestEventHooks(t *testing.T) {
	pub := &recordingPublisher{}
	var buf bytes.Buffer
	hooks := observability.EventHooks(pub, slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()

	hooks.OnPlanGenerated(ctx, &domain.PlanEvent{})
	hooks.OnStepStart(ctx, &domain.StepEvent{})
	hooks.OnStepEnd(ctx, &domain.StepEvent{})
	hooks.OnRunEnd(ctx, &domain.RunEvent{})
	assert.Equal(t, []string{"plan_generated", "step_start", "step_end", "run_end"}, pub.topics)

	pub.err = errors.New("bus down")
	hooks.OnRunEnd(ctx, &domain.RunEvent{})
	assert.True(t, strings.Contains(buf.String(), "Failed to publish event"))
}

func TestTracerProvider(t *testing.T) {
	var buf bytes.Buffer
	tp, err := observability.NewTracerProvider("conductor-test", &buf)
	require.NoError(t, err)

	_, span := tp.Tracer().Start(context.Background(), "unit")
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name":"unit"`)
}
