// Package tracker keeps the execution records of steps: the current one, a bounded
// history, per-step statistics, an error log and named snapshots. It performs no I/O;
// autosave publishes the tracked state for another component to persist.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/wayfinder/internal/logging"
	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/aretw0/wayfinder/pkg/event"
)

// Config configures the Tracker.
type Config struct {
	MaxStateHistory int `yaml:"max_state_history"`
	MaxErrorHistory int `yaml:"max_error_history"`
	// AutoSaveInterval is the period of trackerAutosave events (0 = disabled).
	AutoSaveInterval time.Duration `yaml:"autosave_interval"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{MaxStateHistory: 100, MaxErrorHistory: 50}
}

// Tracker is the ExecutionStateTracker. Safe for concurrent use.
type Tracker struct {
	cfg     Config
	emitter event.Emitter
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	current   *domain.ExecutionRecord
	history   []domain.ExecutionRecord
	stats     map[string]domain.StepStats
	errors    []domain.ErrorEntry
	metrics   domain.Metrics
	snapshots map[string]domain.Snapshot

	stopAutoSave context.CancelFunc
	autoSaveDone chan struct{}
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(t *Tracker) { t.cfg = cfg }
}

// WithEmitter sets where execution and autosave events are published.
func WithEmitter(e event.Emitter) Option {
	return func(t *Tracker) { t.emitter = e }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates an empty Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		cfg:       DefaultConfig(),
		logger:    logging.NewNop(),
		now:       time.Now,
		stats:     make(map[string]domain.StepStats),
		snapshots: make(map[string]domain.Snapshot),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func noActive(op, id string) error {
	return &domain.StateError{Op: op, Reason: fmt.Sprintf("execution %q is not current", id), Err: domain.ErrNoActiveExecution}
}

// StartStepExecution opens a running record for step and returns its id.
// It fails while another record is running or paused.
func (t *Tracker) StartStepExecution(step domain.Step, data map[string]any) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		return "", &domain.StateError{Op: "start execution of step " + step.ID, Reason: fmt.Sprintf("execution %q is still %s", t.current.ID, t.current.Status)}
	}

	rec := domain.ExecutionRecord{
		ID:        uuid.NewString(),
		StepID:    step.ID,
		Step:      step,
		Context:   maps.Clone(data),
		Status:    domain.ExecutionRunning,
		StartTime: t.now(),
	}
	t.current = &rec
	return rec.ID, nil
}

// UpdateProgress clamps percent to [0,100]. Unknown or finished ids are ignored.
func (t *Tracker) UpdateProgress(id string, percent float64, data any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil || t.current.ID != id {
		return
	}
	t.current.Progress = min(max(percent, 0), 100)
	if data != nil {
		t.current.ProgressData = data
	}
}

// CompleteStepExecution finalizes the current running record as completed.
func (t *Tracker) CompleteStepExecution(id string, result any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil || t.current.ID != id || t.current.Status != domain.ExecutionRunning {
		return noActive("complete execution", id)
	}
	t.current.Progress = 100
	t.current.Result = result
	t.finalize(domain.ExecutionCompleted, nil)
	return nil
}

// FailStepExecution finalizes the current running record as failed and logs cause.
func (t *Tracker) FailStepExecution(id string, cause error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil || t.current.ID != id || t.current.Status != domain.ExecutionRunning {
		return noActive("fail execution", id)
	}
	t.finalize(domain.ExecutionFailed, cause)
	return nil
}

// CancelStepExecution finalizes the current record, running or paused, as cancelled.
// Cancellation is advisory: whatever the step was waiting on is not interrupted here.
func (t *Tracker) CancelStepExecution(id, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil || t.current.ID != id {
		return noActive("cancel execution", id)
	}
	if reason != "" {
		t.current.Error = reason
	}
	t.finalize(domain.ExecutionCancelled, nil)
	return nil
}

// PauseStepExecution marks the current running record paused.
func (t *Tracker) PauseStepExecution(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil || t.current.ID != id || t.current.Status != domain.ExecutionRunning {
		return noActive("pause execution", id)
	}
	t.current.Status = domain.ExecutionPaused
	t.current.PausedAt = t.now()
	return nil
}

// ResumeStepExecution marks the current paused record running again.
// The paused interval is accounted separately from the execution duration.
func (t *Tracker) ResumeStepExecution(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil || t.current.ID != id || t.current.Status != domain.ExecutionPaused {
		return noActive("resume execution", id)
	}
	t.current.PauseDuration += t.now().Sub(t.current.PausedAt)
	t.current.PausedAt = time.Time{}
	t.current.Status = domain.ExecutionRunning
	return nil
}

// finalize closes the current record. Callers hold t.mu.
func (t *Tracker) finalize(status domain.ExecutionStatus, cause error) {
	rec := t.current
	t.current = nil

	end := t.now()
	if rec.Status == domain.ExecutionPaused {
		rec.PauseDuration += end.Sub(rec.PausedAt)
		rec.PausedAt = time.Time{}
	}
	rec.Status = status
	rec.EndTime = end
	rec.Duration = max(end.Sub(rec.StartTime)-rec.PauseDuration, 0)
	if cause != nil {
		rec.Err = cause
		rec.Error = cause.Error()
	}

	t.history = append(t.history, *rec)
	if limit := t.cfg.MaxStateHistory; limit > 0 && len(t.history) > limit {
		t.history = t.history[len(t.history)-limit:]
	}

	t.metrics.Record(*rec)
	st := t.stats[rec.StepID]
	st.StepID = rec.StepID
	st.Metrics.Record(*rec)
	t.stats[rec.StepID] = st

	if status == domain.ExecutionFailed {
		t.errors = append(t.errors, domain.ErrorEntry{ExecutionID: rec.ID, StepID: rec.StepID, Message: rec.Error, Timestamp: end})
		if limit := t.cfg.MaxErrorHistory; limit > 0 && len(t.errors) > limit {
			t.errors = t.errors[len(t.errors)-limit:]
		}
	}
	t.logger.Debug("execution finalized", "execution_id", rec.ID, "step_id", rec.StepID, "status", status, "duration", rec.Duration)
}

// Current returns a copy of the open record.
func (t *Tracker) Current() (domain.ExecutionRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return domain.ExecutionRecord{}, false
	}
	return t.current.Clone(), true
}

// History returns the finalized records, oldest first.
func (t *Tracker) History() []domain.ExecutionRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneRecords(t.history)
}

// StepStats returns the aggregate for stepID.
func (t *Tracker) StepStats(stepID string) (domain.StepStats, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.stats[stepID]
	return st, ok
}

// Metrics returns the global counters.
func (t *Tracker) Metrics() domain.Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.metrics
}

// Errors returns the recorded failures, oldest first.
func (t *Tracker) Errors() []domain.ErrorEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.ErrorEntry(nil), t.errors...)
}

// State returns a deep copy of everything tracked.
func (t *Tracker) State() domain.TrackedState {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := domain.TrackedState{
		History: cloneRecords(t.history),
		Stats:   maps.Clone(t.stats),
		Errors:  append([]domain.ErrorEntry(nil), t.errors...),
		Metrics: t.metrics,
		SavedAt: t.now(),
	}
	if t.current != nil {
		cur := t.current.Clone()
		st.Current = &cur
	}
	return st
}

// Load replaces history, statistics, errors and metrics with st.
// The open record is left alone.
func (t *Tracker) Load(st domain.TrackedState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = cloneRecords(st.History)
	t.stats = maps.Clone(st.Stats)
	if t.stats == nil {
		t.stats = make(map[string]domain.StepStats)
	}
	t.errors = append([]domain.ErrorEntry(nil), st.Errors...)
	t.metrics = st.Metrics
}

// Reset drops every record, including the open one. Snapshots are kept.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = nil
	t.history = nil
	t.stats = make(map[string]domain.StepStats)
	t.errors = nil
	t.metrics = domain.Metrics{}
}

// CreateSnapshot stores a copy of the tracked state under id (a new uuid when empty)
// and returns the id.
func (t *Tracker) CreateSnapshot(id string) string {
	if id == "" {
		id = uuid.NewString()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshots[id] = domain.Snapshot{
		ID:        id,
		CreatedAt: t.now(),
		History:   cloneRecords(t.history),
		Stats:     maps.Clone(t.stats),
		Errors:    append([]domain.ErrorEntry(nil), t.errors...),
		Metrics:   t.metrics,
	}
	return id
}

// RestoreSnapshot rolls history, statistics, errors and metrics back to snapshot id.
func (t *Tracker) RestoreSnapshot(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap, ok := t.snapshots[id]
	if !ok {
		return fmt.Errorf("snapshot %q: %w", id, domain.ErrNotFound)
	}
	t.history = cloneRecords(snap.History)
	t.stats = maps.Clone(snap.Stats)
	if t.stats == nil {
		t.stats = make(map[string]domain.StepStats)
	}
	t.errors = append([]domain.ErrorEntry(nil), snap.Errors...)
	t.metrics = snap.Metrics
	return nil
}

// DeleteSnapshot removes snapshot id and reports whether it existed.
func (t *Tracker) DeleteSnapshot(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.snapshots[id]
	delete(t.snapshots, id)
	return ok
}

// StartAutoSave emits trackerAutosave with the full State every AutoSaveInterval
// until ctx is done or Stop is called. It is a no-op when the interval is zero
// or autosave is already running.
func (t *Tracker) StartAutoSave(ctx context.Context) {
	if t.cfg.AutoSaveInterval <= 0 {
		return
	}
	t.mu.Lock()
	if t.stopAutoSave != nil {
		t.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.stopAutoSave, t.autoSaveDone = cancel, done
	t.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(t.cfg.AutoSaveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.emit(domain.Event{Type: domain.EventTrackerAutosave, Data: t.State()})
			}
		}
	}()
}

// Stop ends autosave and waits for its goroutine.
func (t *Tracker) Stop() {
	t.mu.Lock()
	cancel, done := t.stopAutoSave, t.autoSaveDone
	t.stopAutoSave, t.autoSaveDone = nil, nil
	t.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (t *Tracker) emit(ev domain.Event) {
	if t.emitter != nil {
		t.emitter.Emit(ev)
	}
}

func cloneRecords(in []domain.ExecutionRecord) []domain.ExecutionRecord {
	if in == nil {
		return nil
	}
	out := make([]domain.ExecutionRecord, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
