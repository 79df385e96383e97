package tracker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/aretw0/wayfinder/pkg/event"
	"github.com/aretw0/wayfinder/pkg/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var stepA = domain.Step{ID: "a", Title: "A", Type: domain.StepTypeInfo}

func TestLifecycle(t *testing.T) {
	clk := newClock()
	tr := tracker.New(tracker.WithClock(clk.Now))

	id, err := tr.StartStepExecution(stepA, map[string]any{"guideId": "g"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	cur, ok := tr.Current()
	require.True(t, ok)
	assert.Equal(t, domain.ExecutionRunning, cur.Status)
	assert.Equal(t, "g", cur.Context["guideId"])

	clk.Advance(2 * time.Second)
	require.NoError(t, tr.CompleteStepExecution(id, "done"))

	_, ok = tr.Current()
	assert.False(t, ok)

	h := tr.History()
	require.Len(t, h, 1)
	assert.Equal(t, domain.ExecutionCompleted, h[0].Status)
	assert.Equal(t, 2*time.Second, h[0].Duration)
	assert.Equal(t, float64(100), h[0].Progress)
	assert.Equal(t, "done", h[0].Result)

	m := tr.Metrics()
	assert.Equal(t, 1, m.TotalExecutions)
	assert.Equal(t, 1, m.Completed)
	assert.Equal(t, 2*time.Second, m.AverageDuration)

	st, ok := tr.StepStats("a")
	require.True(t, ok)
	assert.Equal(t, 1, st.Completed)
}

func TestStartWhileCurrent(t *testing.T) {
	tr := tracker.New()
	_, err := tr.StartStepExecution(stepA, nil)
	require.NoError(t, err)

	_, err = tr.StartStepExecution(stepA, nil)
	assert.ErrorIs(t, err, domain.ErrState)
}

func TestFinalizeRequiresCurrentID(t *testing.T) {
	tr := tracker.New()
	id, err := tr.StartStepExecution(stepA, nil)
	require.NoError(t, err)

	for name, fn := range map[string]func() error{
		"complete": func() error { return tr.CompleteStepExecution("other", nil) },
		"fail":     func() error { return tr.FailStepExecution("other", errors.New("x")) },
		"cancel":   func() error { return tr.CancelStepExecution("other", "") },
		"pause":    func() error { return tr.PauseStepExecution("other") },
		"resume":   func() error { return tr.ResumeStepExecution(id) },
	} {
		err := fn()
		assert.ErrorIs(t, err, domain.ErrNoActiveExecution, name)
		assert.ErrorIs(t, err, domain.ErrState, name)
	}

	require.NoError(t, tr.CompleteStepExecution(id, nil))
	assert.ErrorIs(t, tr.CompleteStepExecution(id, nil), domain.ErrNoActiveExecution, "twice")
}

func TestUpdateProgress(t *testing.T) {
	tr := tracker.New()
	assert.NotPanics(t, func() { tr.UpdateProgress("unknown", 50, nil) })

	id, err := tr.StartStepExecution(stepA, nil)
	require.NoError(t, err)

	tr.UpdateProgress(id, 150, "over")
	cur, _ := tr.Current()
	assert.Equal(t, float64(100), cur.Progress)
	assert.Equal(t, "over", cur.ProgressData)

	tr.UpdateProgress(id, -5, nil)
	cur, _ = tr.Current()
	assert.Equal(t, float64(0), cur.Progress)
	assert.Equal(t, "over", cur.ProgressData)

	tr.UpdateProgress("unknown", 42, nil)
	cur, _ = tr.Current()
	assert.Equal(t, float64(0), cur.Progress)
}

func TestPauseExcludedFromDuration(t *testing.T) {
	clk := newClock()
	tr := tracker.New(tracker.WithClock(clk.Now))

	id, err := tr.StartStepExecution(stepA, nil)
	require.NoError(t, err)
	clk.Advance(time.Second)

	require.NoError(t, tr.PauseStepExecution(id))
	cur, _ := tr.Current()
	assert.Equal(t, domain.ExecutionPaused, cur.Status)
	assert.ErrorIs(t, tr.CompleteStepExecution(id, nil), domain.ErrNoActiveExecution, "paused records are not running")

	clk.Advance(time.Minute)
	require.NoError(t, tr.ResumeStepExecution(id))
	clk.Advance(time.Second)
	require.NoError(t, tr.CompleteStepExecution(id, nil))

	h := tr.History()
	require.Len(t, h, 1)
	assert.Equal(t, 2*time.Second, h[0].Duration)
	assert.Equal(t, time.Minute, h[0].PauseDuration)
}

func TestCancelPaused(t *testing.T) {
	clk := newClock()
	tr := tracker.New(tracker.WithClock(clk.Now))

	id, err := tr.StartStepExecution(stepA, nil)
	require.NoError(t, err)
	require.NoError(t, tr.PauseStepExecution(id))
	clk.Advance(time.Minute)
	require.NoError(t, tr.CancelStepExecution(id, "guide skipped"))

	h := tr.History()
	require.Len(t, h, 1)
	assert.Equal(t, domain.ExecutionCancelled, h[0].Status)
	assert.Equal(t, "guide skipped", h[0].Error)
	assert.Equal(t, time.Duration(0), h[0].Duration)
	assert.Equal(t, 1, tr.Metrics().Cancelled)
}

func TestFailuresAndBounds(t *testing.T) {
	cfg := tracker.DefaultConfig()
	cfg.MaxStateHistory = 3
	cfg.MaxErrorHistory = 2
	tr := tracker.New(tracker.WithConfig(cfg))

	for i := 0; i < 5; i++ {
		id, err := tr.StartStepExecution(stepA, nil)
		require.NoError(t, err)
		require.NoError(t, tr.FailStepExecution(id, errors.New("boom")))
	}

	assert.Len(t, tr.History(), 3)
	errs := tr.Errors()
	require.Len(t, errs, 2)
	assert.Equal(t, "boom", errs[1].Message)

	m := tr.Metrics()
	assert.Equal(t, 5, m.TotalExecutions, "metrics count every execution regardless of history bounds")
	assert.Equal(t, 5, m.Failed)
}

func TestSnapshots(t *testing.T) {
	tr := tracker.New()
	run := func() {
		id, err := tr.StartStepExecution(stepA, nil)
		require.NoError(t, err)
		require.NoError(t, tr.CompleteStepExecution(id, nil))
	}

	run()
	snap := tr.CreateSnapshot("")
	require.NotEmpty(t, snap)
	run()
	run()
	assert.Len(t, tr.History(), 3)

	require.NoError(t, tr.RestoreSnapshot(snap))
	assert.Len(t, tr.History(), 1)
	assert.Equal(t, 1, tr.Metrics().TotalExecutions)
	st, _ := tr.StepStats("a")
	assert.Equal(t, 1, st.TotalExecutions)

	assert.ErrorIs(t, tr.RestoreSnapshot("missing"), domain.ErrNotFound)
	assert.True(t, tr.DeleteSnapshot(snap))
	assert.False(t, tr.DeleteSnapshot(snap))
}

func TestStateAndLoad(t *testing.T) {
	tr := tracker.New()
	id, err := tr.StartStepExecution(stepA, nil)
	require.NoError(t, err)
	require.NoError(t, tr.CompleteStepExecution(id, nil))
	_, err = tr.StartStepExecution(stepA, nil)
	require.NoError(t, err)

	st := tr.State()
	require.NotNil(t, st.Current)
	assert.Len(t, st.History, 1)

	other := tracker.New()
	other.Load(st)
	assert.Len(t, other.History(), 1)
	assert.Equal(t, 1, other.Metrics().Completed)
	_, ok := other.Current()
	assert.False(t, ok, "open records are not loaded")

	tr.Reset()
	_, ok = tr.Current()
	assert.False(t, ok)
	assert.Empty(t, tr.History())
}

func TestAutoSave(t *testing.T) {
	bus := event.NewBus()
	rec := event.Record(bus)

	cfg := tracker.DefaultConfig()
	cfg.AutoSaveInterval = 5 * time.Millisecond
	tr := tracker.New(tracker.WithConfig(cfg), tracker.WithEmitter(bus))

	tr.StartAutoSave(context.Background())
	tr.StartAutoSave(context.Background())
	require.Eventually(t, func() bool { return len(rec.Events(domain.EventTrackerAutosave)) >= 2 }, time.Second, time.Millisecond)
	tr.Stop()

	n := len(rec.Events(domain.EventTrackerAutosave))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, len(rec.Events(domain.EventTrackerAutosave)), "no events after Stop")

	_, ok := rec.Events(domain.EventTrackerAutosave)[0].Data.(domain.TrackedState)
	assert.True(t, ok)
}

func TestAutoSaveDisabled(t *testing.T) {
	bus := event.NewBus()
	rec := event.Record(bus)
	tr := tracker.New(tracker.WithEmitter(bus))
	tr.StartAutoSave(context.Background())
	time.Sleep(10 * time.Millisecond)
	tr.Stop()
	assert.Empty(t, rec.Events())
}
