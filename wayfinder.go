package wayfinder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/wayfinder/internal/logging"
	"github.com/aretw0/wayfinder/pkg/animation"
	"github.com/aretw0/wayfinder/pkg/condition"
	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/aretw0/wayfinder/pkg/event"
	"github.com/aretw0/wayfinder/pkg/executor"
	"github.com/aretw0/wayfinder/pkg/locator"
	"github.com/aretw0/wayfinder/pkg/navigator"
	"github.com/aretw0/wayfinder/pkg/ports"
	"github.com/aretw0/wayfinder/pkg/registry"
	"github.com/aretw0/wayfinder/pkg/session"
	"github.com/aretw0/wayfinder/pkg/tracker"
)

// OverlayAction is what an overlay interaction does.
type OverlayAction string

const (
	OverlayNone  OverlayAction = "none"
	OverlayNext  OverlayAction = "next"
	OverlayClose OverlayAction = "close"
)

// Config groups the settings of the orchestrator and of every component it owns.
type Config struct {
	// AutoSave persists the run state after every mutating command.
	AutoSave          bool   `yaml:"autosave"`
	StorageKey        string `yaml:"storage_key"`
	TrackerStorageKey string `yaml:"tracker_storage_key"`
	// AdvanceOnAction moves to the next step once an action step completes.
	AdvanceOnAction bool          `yaml:"advance_on_action"`
	AllowClose      bool          `yaml:"allow_close"`
	ShowProgress    bool          `yaml:"show_progress"`
	OverlayAction   OverlayAction `yaml:"overlay_action"`
	// PersistTimeout bounds every storage call.
	PersistTimeout time.Duration `yaml:"persist_timeout"`

	Locator    locator.Config   `yaml:"locator"`
	Animation  animation.Config `yaml:"animation"`
	Executor   executor.Config  `yaml:"executor"`
	Navigation navigator.Config `yaml:"navigation"`
	Tracker    tracker.Config   `yaml:"tracker"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		AutoSave:          true,
		StorageKey:        "onboarding_state",
		TrackerStorageKey: "onboarding_execution_state",
		AdvanceOnAction:   true,
		AllowClose:        true,
		ShowProgress:      true,
		OverlayAction:     OverlayNone,
		PersistTimeout:    5 * time.Second,
		Locator:           locator.DefaultConfig(),
		Animation:         animation.DefaultConfig(),
		Executor:          executor.DefaultConfig(),
		Navigation:        navigator.DefaultConfig(),
		Tracker:           tracker.DefaultConfig(),
	}
}

// Host is the interface the guided application exposes to the engine.
// Only element lookup is mandatory; a host that also implements
// ports.InteractionWaiter or ports.Effects is used for those too.
type Host = ports.ElementQuerier

// command is the in-flight mutating command.
type command struct {
	base      context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	interrupt interruptKind

	// dispatching counts event deliveries in progress while the command runs.
	// after holds work queued by handlers that interrupted the command itself.
	dispatching int
	after       []func(context.Context)
}

type interruptKind int

const (
	interruptNone interruptKind = iota
	interruptPause
	interruptStop
)

// Orchestrator is the top-level engine: it owns the guide registry, the run state
// and the step components, and exposes the command API.
type Orchestrator struct {
	cfg     Config
	bus     *event.Bus
	logger  *slog.Logger
	reg     *registry.Registry
	visual  ports.VisualAdapter
	store   ports.KeyValueStore
	locker  ports.DistributedLocker
	policy  ResetPolicy
	waiter  ports.InteractionWaiter
	effects ports.Effects
	now     func() time.Time

	locator    *locator.Locator
	animator   *animation.Coordinator
	conditions *condition.Evaluator
	executor   *executor.Executor
	navigator  *navigator.Navigator
	tracker    *tracker.Tracker
	sessions   *session.Manager

	mu         sync.Mutex
	guides     map[string]domain.Guide
	order      []string
	state      domain.RunState
	data       map[string]any
	lastReset  *time.Time
	busy       *command
	pausedExec string
	advance    *time.Timer
	advanceGen uint64
	visualOn   bool
	pending    []domain.Guide
	closed     bool
	reporting  bool
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) { o.cfg = cfg }
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithEventBus shares an existing bus instead of creating one.
func WithEventBus(bus *event.Bus) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

// WithRegistry injects the registry of handlers, predicates and hooks.
func WithRegistry(reg *registry.Registry) Option {
	return func(o *Orchestrator) { o.reg = reg }
}

// WithStore enables persistence of the run state.
func WithStore(store ports.KeyValueStore) Option {
	return func(o *Orchestrator) { o.store = store }
}

// WithLocker serializes state writes across instances sharing the store.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(o *Orchestrator) { o.locker = locker }
}

// WithResetPolicy decides at construction whether the persisted state is discarded.
func WithResetPolicy(p ResetPolicy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithVisualAdapter binds the adapter rendering step descriptors.
func WithVisualAdapter(v ports.VisualAdapter) Option {
	return func(o *Orchestrator) { o.visual = v }
}

// WithInteractionWaiter overrides the host's own waiter.
func WithInteractionWaiter(w ports.InteractionWaiter) Option {
	return func(o *Orchestrator) { o.waiter = w }
}

// WithEffects overrides the host's own effects.
func WithEffects(e ports.Effects) Option {
	return func(o *Orchestrator) { o.effects = e }
}

// WithGuides registers guides at construction.
func WithGuides(guides ...domain.Guide) Option {
	return func(o *Orchestrator) { o.pending = append(o.pending, guides...) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New wires the components over host and restores the persisted state.
// Restoration is best effort: a storage failure is logged and the run starts fresh.
func New(host Host, opts ...Option) (*Orchestrator, error) {
	if host == nil {
		return nil, errors.New("host is required")
	}

	o := &Orchestrator{
		cfg:    DefaultConfig(),
		guides: make(map[string]domain.Guide),
		data:   make(map[string]any),
		state:  domain.NewRunState(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	if o.bus == nil {
		o.bus = event.NewBus(event.WithLogger(o.logger))
	}
	if o.reg == nil {
		o.reg = registry.NewRegistry()
	}
	if o.waiter == nil {
		o.waiter, _ = host.(ports.InteractionWaiter)
	}
	if o.effects == nil {
		o.effects, _ = host.(ports.Effects)
	}
	if o.cfg.StorageKey == "" {
		return nil, &domain.ValidationError{Field: "storage_key", Reason: "required"}
	}

	o.locator = locator.New(host,
		locator.WithConfig(o.cfg.Locator),
		locator.WithEmitter(dispatcher{o}),
		locator.WithLogger(o.logger.With("component", "locator")),
	)
	o.animator = animation.New(o.effects,
		animation.WithConfig(o.cfg.Animation),
		animation.WithEmitter(dispatcher{o}),
		animation.WithLogger(o.logger.With("component", "animation")),
	)
	o.conditions = condition.New(
		condition.WithPredicates(o.reg),
		condition.WithProber(o.locator),
		condition.WithLogger(o.logger),
	)
	o.executor = executor.New(o.locator,
		executor.WithConfig(o.cfg.Executor),
		executor.WithAnimator(o.animator),
		executor.WithConditions(o.conditions),
		executor.WithInteractionWaiter(o.waiter),
		executor.WithHandlers(o.reg),
		executor.WithEmitter(dispatcher{o}),
		executor.WithReadyFunc(o.stepReady),
		executor.WithLogger(o.logger.With("component", "executor")),
	)
	o.navigator = navigator.New(
		navigator.WithConfig(o.cfg.Navigation),
		navigator.WithHooks(o.reg),
		navigator.WithEmitter(dispatcher{o}),
		navigator.WithLogger(o.logger.With("component", "navigator")),
		navigator.WithClock(o.now),
	)
	o.tracker = tracker.New(
		tracker.WithConfig(o.cfg.Tracker),
		tracker.WithEmitter(dispatcher{o}),
		tracker.WithLogger(o.logger.With("component", "tracker")),
		tracker.WithClock(o.now),
	)

	for _, g := range o.pending {
		if err := o.RegisterGuide(g); err != nil {
			return nil, err
		}
	}
	o.pending = nil

	if o.store != nil {
		o.sessions = session.NewManager(o.store,
			session.WithLocker(o.locker),
			session.WithLogger(o.logger),
		)
		o.restore()
		o.bus.Subscribe(domain.EventTrackerAutosave, o.saveTracked)
		o.tracker.StartAutoSave(context.Background())
	}

	o.bindVisual()
	return o, nil
}

// Close stops background work and flushes the tracked execution state.
// A running guide is paused first so it can be resumed by the next instance.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	running := o.state.IsActive && !o.state.IsPaused
	o.mu.Unlock()

	if running {
		if err := o.PauseGuide(ctx); err != nil {
			o.logger.Warn("failed to pause guide on close", "err", err)
		}
	}
	o.stopAdvance()
	o.tracker.Stop()
	if o.sessions != nil && o.cfg.TrackerStorageKey != "" {
		o.saveTracked(domain.Event{Data: o.tracker.State()})
	}
	return nil
}

// On subscribes handler to events of type t and returns the subscription id.
func (o *Orchestrator) On(t domain.EventType, handler event.Handler) string {
	return o.bus.Subscribe(t, handler)
}

// Off removes a subscription made with On.
func (o *Orchestrator) Off(id string) bool {
	return o.bus.Unsubscribe(id)
}

// Events returns the event bus.
func (o *Orchestrator) Events() *event.Bus { return o.bus }

// Registry returns the registry of named handlers, predicates and hooks.
func (o *Orchestrator) Registry() *registry.Registry { return o.reg }

// Tracker exposes execution records and statistics.
func (o *Orchestrator) Tracker() *tracker.Tracker { return o.tracker }

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config { return o.cfg }

// State returns a copy of the run state.
func (o *Orchestrator) State() domain.RunState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// Busy reports whether a command is in flight, e.g. an action step waiting
// for its interaction.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy != nil
}

// Stats returns the aggregated execution metrics.
func (o *Orchestrator) Stats() domain.Metrics {
	return o.tracker.Metrics()
}

// SetData sets a value visible to data conditions and interactive steps.
func (o *Orchestrator) SetData(key string, value any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.data[key] = value
}

// Data returns a copy of the run data.
func (o *Orchestrator) Data() map[string]any {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]any, len(o.data))
	for k, v := range o.data {
		out[k] = v
	}
	return out
}

// CurrentStep returns the step under the cursor of the active guide.
func (o *Orchestrator) CurrentStep() (domain.Step, bool) {
	return o.navigator.Current()
}

// acquire marks a command in flight. Callers hold o.mu.
func (o *Orchestrator) acquire(ctx context.Context, op string) (context.Context, error) {
	if o.closed {
		return nil, &domain.StateError{Op: op, Reason: "orchestrator is closed"}
	}
	if o.busy != nil {
		return nil, &domain.StateError{Op: op, Reason: "another command is in progress"}
	}
	o.cancelAdvance()
	cctx, cancel := context.WithCancel(ctx)
	o.busy = &command{base: context.WithoutCancel(ctx), cancel: cancel, done: make(chan struct{})}
	return cctx, nil
}

// cancelAdvance drops a scheduled automatic advance. Callers hold o.mu.
func (o *Orchestrator) cancelAdvance() {
	if o.advance != nil {
		o.advance.Stop()
		o.advance = nil
	}
	o.advanceGen++
}

// release ends the in-flight command, first running the work its own event
// handlers queued on it.
func (o *Orchestrator) release() {
	o.mu.Lock()
	c := o.busy
	o.mu.Unlock()
	if c == nil {
		return
	}
	c.cancel()

	for {
		o.mu.Lock()
		after := c.after
		c.after = nil
		o.mu.Unlock()
		if len(after) == 0 {
			break
		}
		for _, fn := range after {
			fn(c.base)
		}
	}

	o.mu.Lock()
	o.busy = nil
	o.mu.Unlock()
	close(c.done)
}

// interrupt cancels the in-flight command, if any, and waits for it to return.
// Cancellation is cooperative: the command unwinds at its next suspension point.
//
// An event handler of that command cannot wait for it, so when the command is
// delivering events then is queued to run before the command releases its
// slot, and interrupt reports true. Otherwise the caller runs its own work.
// Callers must not hold o.mu.
func (o *Orchestrator) interrupt(kind interruptKind, then func(context.Context)) bool {
	o.mu.Lock()
	c := o.busy
	if c == nil {
		o.mu.Unlock()
		return false
	}
	if kind > c.interrupt {
		c.interrupt = kind
	}
	queued := c.dispatching > 0
	if queued && then != nil {
		c.after = append(c.after, then)
	}
	o.mu.Unlock()

	c.cancel()
	if !queued {
		<-c.done
	}
	return queued
}

// dispatcher is the Emitter handed to the components.
type dispatcher struct{ o *Orchestrator }

func (d dispatcher) Emit(ev domain.Event) { d.o.emit(ev) }

// emit publishes ev on the bus, recording the delivery against the in-flight
// command. An error raised while an error event is being handled is logged
// instead of published, so a handler that reacts to errors cannot recurse.
func (o *Orchestrator) emit(ev domain.Event) {
	isErr := ev.Type == domain.EventError
	o.mu.Lock()
	if isErr && o.reporting {
		o.mu.Unlock()
		o.logger.Warn("error raised while handling an error event", "message", ev.Message, "err", ev.Err)
		return
	}
	if isErr {
		o.reporting = true
	}
	c := o.busy
	if c != nil {
		c.dispatching++
	}
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		if c != nil {
			c.dispatching--
		}
		if isErr {
			o.reporting = false
		}
		o.mu.Unlock()
	}()
	o.bus.Emit(ev)
}

// fail emits an error event for err unless a component already did.
func (o *Orchestrator) fail(op string, err error) error {
	var serr *executor.StepError
	if err == nil || errors.As(err, &serr) || errors.Is(err, context.Canceled) {
		return err
	}
	o.mu.Lock()
	guideID, idx := o.state.CurrentGuideID, o.state.CurrentStepIndex
	o.mu.Unlock()

	o.emit(domain.Event{
		Type:      domain.EventError,
		GuideID:   guideID,
		StepIndex: idx,
		Message:   fmt.Sprintf("%s: %v", op, err),
		Err:       err,
		Context:   map[string]any{"operation": op, "guideId": guideID, "stepIndex": idx},
	})
	return err
}
