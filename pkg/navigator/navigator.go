// Package navigator owns the step cursor of the active guide.
package navigator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/wayfinder/internal/logging"
	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/aretw0/wayfinder/pkg/event"
)

// Config configures the Navigator.
type Config struct {
	AllowBack      bool `yaml:"allow_back"`
	AllowSkip      bool `yaml:"allow_skip"`
	MaxHistorySize int  `yaml:"max_history_size"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{AllowBack: true, AllowSkip: true, MaxHistorySize: 50}
}

// HookResolver looks up named navigation hooks (e.g. a *registry.Registry).
type HookResolver interface {
	Hook(name string) (domain.HookFunc, bool)
}

// Navigator is the StepNavigator. Navigations are serialized by a fail-fast guard.
type Navigator struct {
	cfg     Config
	hooks   HookResolver
	emitter event.Emitter
	logger  *slog.Logger
	now     func() time.Time

	mu         sync.Mutex
	guideID    string
	steps      []domain.Step
	cursor     int
	history    []domain.NavigationEntry
	navigating bool
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(n *Navigator) { n.cfg = cfg }
}

// WithHooks resolves named enter and leave hooks.
func WithHooks(r HookResolver) Option {
	return func(n *Navigator) { n.hooks = r }
}

// WithEmitter sets where navigation events are published.
func WithEmitter(e event.Emitter) Option {
	return func(n *Navigator) { n.emitter = e }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Navigator) { n.logger = logger }
}

// WithClock replaces time.Now for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(n *Navigator) { n.now = now }
}

// New creates a Navigator with no guide loaded.
func New(opts ...Option) *Navigator {
	n := &Navigator{cfg: DefaultConfig(), logger: logging.NewNop(), now: time.Now, cursor: domain.NoStep}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Init loads the steps of guideID and resets cursor and history.
func (n *Navigator) Init(guideID string, steps []domain.Step) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.guideID = guideID
	n.steps = append([]domain.Step(nil), steps...)
	n.cursor = domain.NoStep
	n.history = nil
}

// NavigateToStep moves the cursor to index i and returns the step there.
// The outgoing onLeave and incoming onEnter hooks run first; an error from either
// aborts the move and leaves the cursor untouched.
func (n *Navigator) NavigateToStep(ctx context.Context, i int, dir domain.Direction) (domain.Step, error) {
	// 1. Guard and validate
	n.mu.Lock()
	if n.guideID == "" {
		n.mu.Unlock()
		return domain.Step{}, &domain.StateError{Op: "navigate", Reason: "no active guide"}
	}
	if n.navigating {
		n.mu.Unlock()
		return domain.Step{}, &domain.StateError{Op: "navigate", Reason: "another navigation is in progress"}
	}
	if i < 0 || i >= len(n.steps) {
		n.mu.Unlock()
		return domain.Step{}, &domain.ValidationError{Field: "step index", Reason: fmt.Sprintf("out of range [0,%d)", len(n.steps)), Value: i}
	}
	from := n.cursor
	if from >= 0 && i < from && !n.cfg.AllowBack {
		n.mu.Unlock()
		return domain.Step{}, &domain.StateError{Op: "navigate backward", Reason: "back navigation is disabled"}
	}
	n.navigating = true
	guideID := n.guideID
	to := n.steps[i]
	var leaving *domain.Step
	if from >= 0 {
		s := n.steps[from]
		leaving = &s
	}
	n.mu.Unlock()

	defer func() {
		n.mu.Lock()
		n.navigating = false
		n.mu.Unlock()
	}()

	// 2. Hooks that may veto the move
	if leaving != nil {
		hc := domain.HookContext{GuideID: guideID, Step: *leaving, Index: from, FromIndex: from, Direction: dir}
		if err := n.runHook(ctx, leaving.Hooks.OnLeave, leaving.Hooks.OnLeaveName, hc); err != nil {
			return domain.Step{}, fmt.Errorf("onLeave hook of step %q failed: %w", leaving.ID, err)
		}
	}
	hc := domain.HookContext{GuideID: guideID, Step: to, Index: i, FromIndex: from, Direction: dir}
	if err := n.runHook(ctx, to.Hooks.OnEnter, to.Hooks.OnEnterName, hc); err != nil {
		return domain.Step{}, fmt.Errorf("onEnter hook of step %q failed: %w", to.ID, err)
	}

	// 3. Record and move
	entry := domain.NavigationEntry{From: from, To: i, ToStepID: to.ID, Timestamp: n.now(), Direction: dir}
	if leaving != nil {
		entry.FromStepID = leaving.ID
	}
	n.mu.Lock()
	n.history = append(n.history, entry)
	if limit := n.cfg.MaxHistorySize; limit > 0 && len(n.history) > limit {
		n.history = n.history[len(n.history)-limit:]
	}
	n.cursor = i
	n.mu.Unlock()

	if from >= 0 {
		n.emit(domain.Event{
			Type:      domain.EventStepNavigated,
			GuideID:   guideID,
			StepID:    to.ID,
			StepIndex: i,
			From:      from,
			To:        i,
			Direction: dir,
		})
	}

	// 4. Post-move hook (advisory)
	if err := n.runHook(ctx, to.Hooks.OnEnterComplete, to.Hooks.OnEnterCompleteName, hc); err != nil {
		n.logger.Warn("onEnterComplete hook failed", "guide_id", guideID, "step_id", to.ID, "err", err)
	}
	return to, nil
}

func (n *Navigator) runHook(ctx context.Context, fn domain.HookFunc, name string, hc domain.HookContext) error {
	if fn == nil && name != "" && n.hooks != nil {
		fn, _ = n.hooks.Hook(name)
		if fn == nil {
			n.logger.Warn("hook not registered", "hook", name, "step_id", hc.Step.ID)
		}
	}
	if fn == nil {
		return nil
	}
	return fn(ctx, hc)
}

// Next moves one step forward.
func (n *Navigator) Next(ctx context.Context) (domain.Step, error) {
	cur := n.CurrentIndex()
	if cur >= n.Len()-1 {
		return domain.Step{}, &domain.StateError{Op: "go to next step", Reason: "already at the last step"}
	}
	return n.NavigateToStep(ctx, cur+1, domain.DirectionForward)
}

// Previous moves one step back. It always fails when back navigation is disabled.
func (n *Navigator) Previous(ctx context.Context) (domain.Step, error) {
	if !n.cfg.AllowBack {
		return domain.Step{}, &domain.StateError{Op: "go to previous step", Reason: "back navigation is disabled"}
	}
	cur := n.CurrentIndex()
	if cur <= 0 {
		return domain.Step{}, &domain.StateError{Op: "go to previous step", Reason: "already at the first step"}
	}
	return n.NavigateToStep(ctx, cur-1, domain.DirectionBackward)
}

// First moves to the first step.
func (n *Navigator) First(ctx context.Context) (domain.Step, error) {
	return n.NavigateToStep(ctx, 0, domain.DirectionFirst)
}

// Last moves to the last step.
func (n *Navigator) Last(ctx context.Context) (domain.Step, error) {
	return n.NavigateToStep(ctx, n.Len()-1, domain.DirectionLast)
}

// SkipGuide abandons the loaded guide and emits guideSkipped.
func (n *Navigator) SkipGuide() error {
	if !n.cfg.AllowSkip {
		return &domain.StateError{Op: "skip guide", Reason: "skipping is disabled"}
	}
	n.mu.Lock()
	guideID, idx := n.guideID, n.cursor
	if guideID == "" {
		n.mu.Unlock()
		return &domain.StateError{Op: "skip guide", Reason: "no active guide"}
	}
	n.clear()
	n.mu.Unlock()

	n.emit(domain.Event{Type: domain.EventGuideSkipped, GuideID: guideID, StepIndex: idx})
	return nil
}

// Reset drops the loaded guide without emitting anything.
func (n *Navigator) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.clear()
}

func (n *Navigator) clear() {
	n.guideID = ""
	n.steps = nil
	n.cursor = domain.NoStep
	n.history = nil
}

// Current returns the step under the cursor.
func (n *Navigator) Current() (domain.Step, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cursor < 0 || n.cursor >= len(n.steps) {
		return domain.Step{}, false
	}
	return n.steps[n.cursor], true
}

// CurrentIndex returns the cursor, or domain.NoStep when nothing is loaded.
func (n *Navigator) CurrentIndex() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cursor
}

// GuideID returns the loaded guide.
func (n *Navigator) GuideID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.guideID
}

// Len returns the number of loaded steps.
func (n *Navigator) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.steps)
}

// Step returns the loaded step at i.
func (n *Navigator) Step(i int) (domain.Step, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if i < 0 || i >= len(n.steps) {
		return domain.Step{}, false
	}
	return n.steps[i], true
}

// History returns the navigation entries, oldest first.
func (n *Navigator) History() []domain.NavigationEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.NavigationEntry(nil), n.history...)
}

// CanGoBack reports whether PreviousStep would be allowed.
func (n *Navigator) CanGoBack() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cfg.AllowBack && n.cursor > 0
}

// CanGoForward reports whether a step follows the cursor.
func (n *Navigator) CanGoForward() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cursor >= 0 && n.cursor < len(n.steps)-1
}

// Navigating reports whether a transition is in progress.
func (n *Navigator) Navigating() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.navigating
}

func (n *Navigator) emit(ev domain.Event) {
	if n.emitter != nil {
		n.emitter.Emit(ev)
	}
}
