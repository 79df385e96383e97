package wayfinder

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/wayfinder/pkg/domain"
)

// ResetPolicy decides, when an orchestrator is constructed, whether the
// persisted run state is discarded instead of restored.
type ResetPolicy interface {
	ShouldReset(state domain.PersistedState, now time.Time) bool
}

// ResetPolicyFunc adapts a function to ResetPolicy.
type ResetPolicyFunc func(state domain.PersistedState, now time.Time) bool

// ShouldReset calls f.
func (f ResetPolicyFunc) ShouldReset(state domain.PersistedState, now time.Time) bool {
	return f(state, now)
}

// IntervalResetPolicy discards the persisted state when more than Interval has
// passed since the last reset (or none was ever recorded). Meant for development
// setups that want every session to start over.
type IntervalResetPolicy struct {
	Interval time.Duration
}

// ShouldReset reports whether Interval has elapsed since the last reset.
func (p IntervalResetPolicy) ShouldReset(state domain.PersistedState, now time.Time) bool {
	if p.Interval <= 0 {
		return false
	}
	return state.LastResetTime == nil || now.Sub(*state.LastResetTime) > p.Interval
}

// Save persists the run state now, regardless of Config.AutoSave.
func (o *Orchestrator) Save(ctx context.Context) error {
	if o.sessions == nil {
		return &domain.StorageError{Op: "save", Key: o.cfg.StorageKey, Err: errors.New("no store configured")}
	}
	o.mu.Lock()
	p := o.state.Persisted()
	p.LastResetTime = o.lastReset
	o.mu.Unlock()

	ctx, cancel := o.storageContext(ctx)
	defer cancel()
	return o.sessions.Save(ctx, o.cfg.StorageKey, p)
}

// persist saves the run state when autosave is on. Failures never abort the
// calling command: they are logged and published as log events.
func (o *Orchestrator) persist(ctx context.Context) {
	if o.sessions == nil || !o.cfg.AutoSave {
		return
	}
	if err := o.Save(ctx); err != nil {
		o.storageFailed("save run state", err)
	}
}

// restore loads the persisted run state and tracker state.
// An active run comes back paused: nothing is on screen until it is resumed.
func (o *Orchestrator) restore() {
	ctx, cancel := o.storageContext(context.Background())
	defer cancel()

	var p domain.PersistedState
	err := o.sessions.Load(ctx, o.cfg.StorageKey, &p)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		o.storageFailed("restore run state", err)
	case o.policy != nil && o.policy.ShouldReset(p, o.now()):
		o.logger.Info("persisted state discarded by reset policy", "last_reset_time", p.LastResetTime)
		now := o.now()
		o.lastReset = &now
		o.persist(ctx)
		o.saveTracked(domain.Event{Data: o.tracker.State()})
		return
	default:
		o.lastReset = p.LastResetTime
		o.state = p.RunState()
		if o.state.IsActive {
			o.state.IsPaused = true
		}
		o.logger.Debug("run state restored",
			"completed", len(o.state.CompletedGuides),
			"skipped", len(o.state.SkippedGuides),
			"active_guide", o.state.CurrentGuideID,
		)
	}
	if o.policy != nil && o.lastReset == nil {
		now := o.now()
		o.lastReset = &now
	}

	if o.cfg.TrackerStorageKey == "" {
		return
	}
	var ts domain.TrackedState
	switch err := o.sessions.Load(ctx, o.cfg.TrackerStorageKey, &ts); {
	case err == nil:
		o.tracker.Load(ts)
	case !errors.Is(err, domain.ErrNotFound):
		o.storageFailed("restore execution state", err)
	}
}

// saveTracked persists a tracker autosave payload.
func (o *Orchestrator) saveTracked(ev domain.Event) {
	if o.sessions == nil || o.cfg.TrackerStorageKey == "" {
		return
	}
	st, ok := ev.Data.(domain.TrackedState)
	if !ok {
		return
	}
	ctx, cancel := o.storageContext(context.Background())
	defer cancel()
	if err := o.sessions.Save(ctx, o.cfg.TrackerStorageKey, st); err != nil {
		o.storageFailed("save execution state", err)
	}
}

func (o *Orchestrator) storageFailed(op string, err error) {
	o.logger.Warn("storage failure", "op", op, "err", err)
	o.emit(domain.Event{
		Type:      domain.EventLog,
		StepIndex: domain.NoStep,
		Message:   op + " failed",
		Err:       err,
		Context:   map[string]any{"level": "warn", "operation": op},
	})
}

func (o *Orchestrator) storageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if o.cfg.PersistTimeout > 0 {
		return context.WithTimeout(ctx, o.cfg.PersistTimeout)
	}
	return context.WithCancel(ctx)
}
