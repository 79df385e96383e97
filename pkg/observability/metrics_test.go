package observability_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/wayfinder"
	"github.com/aretw0/wayfinder/pkg/adapters/memory"
	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/aretw0/wayfinder/pkg/event"
	"github.com/aretw0/wayfinder/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	m := observability.NewMetrics(nil)
	start := time.Now()

	m.Observe(domain.Event{Type: domain.EventGuideStarted, GuideID: "g", Timestamp: start})
	m.Observe(domain.Event{Type: domain.EventStepExecuting, GuideID: "g", StepID: "a", Timestamp: start})
	m.Observe(domain.Event{Type: domain.EventStepExecuted, GuideID: "g", StepID: "a", Timestamp: start.Add(250 * time.Millisecond)})
	m.Observe(domain.Event{Type: domain.EventError, GuideID: "g", StepID: "b", Context: map[string]any{"stage": "locate"}})
	m.Observe(domain.Event{Type: domain.EventError, Context: map[string]any{"operation": "next"}})
	m.Observe(domain.Event{Type: domain.EventGuideCompleted, GuideID: "g"})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuidesStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuidesCompleted))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.GuidesSkipped))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Events.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepErrors.WithLabelValues("locate")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StepDuration))
}

func TestMetrics_Registry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	bus := event.NewBus()
	m.Attach(bus)

	cfg := wayfinder.DefaultConfig()
	cfg.Animation.ReducedMotion = true
	o, err := wayfinder.New(memory.NewUI(), wayfinder.WithConfig(cfg), wayfinder.WithEventBus(bus), wayfinder.WithGuides(domain.Guide{
		ID:    "g",
		Name:  "G",
		Steps: []domain.Step{{ID: "a", Title: "A", Type: domain.StepTypeInfo}},
	}))
	require.NoError(t, err)
	defer o.Close(context.Background())

	ctx := context.Background()
	_, err = o.StartGuide(ctx, "g")
	require.NoError(t, err)
	require.NoError(t, o.NextStep(ctx))

	expected := `
# HELP wayfinder_guides_completed_total Total number of guides completed
# TYPE wayfinder_guides_completed_total counter
wayfinder_guides_completed_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "wayfinder_guides_completed_total"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues(string(domain.EventStepExecuted))))

	count, err := testutil.GatherAndCount(reg, "wayfinder_step_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
