// Package executor runs the lifecycle of a single step:
// validate, preconditions, locate, transition, highlight, body, postprocess.
package executor

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
	"github.com/aretw0/wayfinder/pkg/locator"
	"github.com/aretw0/wayfinder/pkg/ports"
)

// Status is the executor state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Lifecycle stages, reported by StepError.
const (
	StageValidate      = "validate"
	StagePreconditions = "preconditions"
	StageLocate        = "locate"
	StageExecute       = "execute"
	StagePostExecute   = "postExecute"
)

// StepError carries the stage a step failed in. It unwraps to the typed cause.
type StepError struct {
	StepID string
	Stage  string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed at %s: %v", e.StepID, e.Stage, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// HandlerResolver looks up named interactive handlers (e.g. a *registry.Registry).
type HandlerResolver interface {
	Handler(name string) (domain.InteractiveFunc, bool)
}

// ReadyFunc is called once a step is on screen: located, transitioned in and
// highlighted, right before its body runs.
type ReadyFunc func(ctx context.Context, step domain.Step, ec ExecContext, el domain.Element)

// ExecContext is the per-call context of Execute.
type ExecContext struct {
	GuideID string
	Index   int
	Total   int
	// Previous is the step shown before this one, nil for the first.
	Previous *domain.Step
	Data     map[string]any
}

// HistoryEntry is one executed step.
type HistoryEntry struct {
	StepID   string
	GuideID  string
	Index    int
	Status   Status
	Started  time.Time
	Finished time.Time
	Err      error
}

// Executor is the StepExecutor. Executions are serialized by a fail-fast guard.
type Executor struct {
	locator    *locator.Locator
	animator   *animation.Coordinator
	conditions *condition.Evaluator
	waiter     ports.InteractionWaiter
	handlers   HandlerResolver
	emitter    event.Emitter
	onReady    ReadyFunc
	logger     *slog.Logger
	cfg        Config

	mu            sync.Mutex
	status        Status
	transitioning bool
	lastElement   domain.Element
	cleanup       func()
	results       map[string]*domain.StepResult
	history       []HistoryEntry
}

// Option configures an Executor.
type Option func(*Executor)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(x *Executor) { x.cfg = cfg }
}

// WithAnimator sets the coordinator used for highlights and transitions.
func WithAnimator(a *animation.Coordinator) Option {
	return func(x *Executor) { x.animator = a }
}

// WithConditions sets the evaluator for step preconditions.
func WithConditions(e *condition.Evaluator) Option {
	return func(x *Executor) { x.conditions = e }
}

// WithInteractionWaiter sets how action steps wait for the user.
func WithInteractionWaiter(w ports.InteractionWaiter) Option {
	return func(x *Executor) { x.waiter = w }
}

// WithHandlers resolves named interactive handlers.
func WithHandlers(h HandlerResolver) Option {
	return func(x *Executor) { x.handlers = h }
}

// WithEmitter sets where step events are published.
func WithEmitter(e event.Emitter) Option {
	return func(x *Executor) { x.emitter = e }
}

// WithReadyFunc registers fn to run when a step becomes ready.
func WithReadyFunc(fn ReadyFunc) Option {
	return func(x *Executor) { x.onReady = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(x *Executor) { x.logger = logger }
}

// New creates an Executor resolving targets through loc.
func New(loc *locator.Locator, opts ...Option) *Executor {
	x := &Executor{
		locator: loc,
		cfg:     DefaultConfig(),
		logger:  logging.NewNop(),
		status:  StatusIdle,
		results: make(map[string]*domain.StepResult),
	}
	for _, opt := range opts {
		opt(x)
	}
	if x.conditions == nil {
		x.conditions = condition.New(condition.WithProber(loc), condition.WithLogger(x.logger))
	}
	if x.animator == nil {
		x.animator = animation.New(nil)
	}
	return x
}

// Execute runs step. A call made while another execution or transition is in
// flight fails immediately with a StateError. Stage failures return the
// executor to idle, emit an error event and come back wrapped in a StepError.
func (x *Executor) Execute(ctx context.Context, step domain.Step, ec ExecContext) (*domain.StepResult, error) {
	x.mu.Lock()
	if x.status == StatusExecuting || x.transitioning {
		x.mu.Unlock()
		return nil, &domain.StateError{Op: "execute step " + step.ID, Reason: "another step is executing"}
	}
	x.status = StatusExecuting
	x.mu.Unlock()

	started := time.Now()
	x.emit(domain.Event{Type: domain.EventStepExecuting, GuideID: ec.GuideID, StepID: step.ID, StepIndex: ec.Index})

	res, stage, err := x.run(ctx, step, ec)

	x.mu.Lock()
	x.transitioning = false
	entry := HistoryEntry{StepID: step.ID, GuideID: ec.GuideID, Index: ec.Index, Started: started, Finished: time.Now()}
	if err != nil {
		x.status = StatusIdle
		entry.Status = StatusFailed
		entry.Err = err
	} else {
		x.status = StatusCompleted
		entry.Status = StatusCompleted
	}
	x.history = append(x.history, entry)
	if x.cfg.MaxHistory > 0 && len(x.history) > x.cfg.MaxHistory {
		x.history = x.history[len(x.history)-x.cfg.MaxHistory:]
	}
	x.mu.Unlock()

	if err != nil {
		x.ClearHighlight()
		serr := &StepError{StepID: step.ID, Stage: stage, Err: err}
		if errors.Is(err, context.Canceled) {
			x.logger.Debug("step execution cancelled", "step_id", step.ID, "stage", stage)
		} else {
			x.logger.Warn("step execution failed", "step_id", step.ID, "stage", stage, "err", err)
			x.emit(domain.Event{
				Type:      domain.EventError,
				GuideID:   ec.GuideID,
				StepID:    step.ID,
				StepIndex: ec.Index,
				Message:   serr.Error(),
				Err:       err,
				Context:   map[string]any{"stage": stage, "guideId": ec.GuideID, "stepId": step.ID, "stepIndex": ec.Index},
			})
		}
		return nil, serr
	}
	return res, nil
}

func (x *Executor) run(ctx context.Context, step domain.Step, ec ExecContext) (*domain.StepResult, string, error) {
	// 1. Validate
	if err := step.Validate(); err != nil {
		return nil, StageValidate, err
	}

	// 2. Preconditions
	if err := x.conditions.Check(ctx, fmt.Sprintf("step %q", step.ID), step.Conditions, ec.Data); err != nil {
		return nil, StagePreconditions, err
	}

	// 3. Locate
	var el domain.Element
	if step.HasTarget() {
		found, err := x.locator.Locate(ctx, *step.Target, x.cfg.Locate)
		switch {
		case err == nil:
			el = found
		case step.Type == domain.StepTypeInfo && step.Display.TargetOptional && ctx.Err() == nil:
			x.logger.Info("optional target not located, showing step without it", "step_id", step.ID, "err", err)
		default:
			return nil, StageLocate, err
		}
	}

	// 4. Transition (best-effort)
	if ec.Previous != nil && x.cfg.TransitionsEnabled {
		x.mu.Lock()
		x.transitioning = true
		from := x.lastElement
		x.mu.Unlock()

		opts := animation.Options{Strategy: animation.Strategy(step.Display.Transition)}
		if err := x.animator.TransitionSteps(ctx, from, el, opts); err != nil {
			x.logger.Debug("transition failed", "step_id", step.ID, "err", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, StageExecute, err
	}

	// 5. Highlight (best-effort)
	x.ClearHighlight()
	if el != nil && x.cfg.HighlightEnabled && !step.Display.DisableHighlight {
		cleanup, err := x.animator.HighlightElement(ctx, el, animation.Options{})
		if err != nil {
			x.logger.Debug("highlight failed", "step_id", step.ID, "err", err)
		}
		x.mu.Lock()
		x.cleanup = cleanup
		x.mu.Unlock()
	}
	if err := ctx.Err(); err != nil {
		return nil, StageExecute, err
	}
	if x.onReady != nil {
		x.onReady(ctx, step, ec, el)
	}

	// 6. Core execution
	res := &domain.StepResult{StepID: step.ID, Type: step.Type, Content: step.Content, Element: el}
	var err error
	switch step.Type {
	case domain.StepTypeInfo:
		res.AutoAdvance = step.Display.AutoAdvance
	case domain.StepTypeAction:
		res.Interaction, err = x.awaitAction(ctx, step, el)
	case domain.StepTypeInteractive:
		res.Data, err = x.interactive(ctx, step, ec, el)
	}
	if err != nil {
		return nil, StageExecute, err
	}

	// 7. Post-execute
	if err := validateResult(step, res); err != nil {
		return nil, StagePostExecute, err
	}
	res.CompletedAt = time.Now()

	x.mu.Lock()
	x.results[step.ID] = res
	if el != nil {
		x.lastElement = el
	}
	x.transitioning = false
	x.mu.Unlock()

	return res, "", nil
}

func (x *Executor) awaitAction(ctx context.Context, step domain.Step, el domain.Element) (*domain.Interaction, error) {
	if el == nil {
		return nil, &domain.ValidationError{Field: fmt.Sprintf("step %q target", step.ID), Reason: "action step has no resolved element"}
	}
	if x.waiter == nil {
		return nil, errors.New("no interaction waiter configured")
	}

	timeout := step.Display.ActionTimeout
	if timeout <= 0 {
		timeout = x.cfg.ActionTimeout
	}
	kinds := step.Display.ActionEvents
	if len(kinds) == 0 {
		kinds = x.cfg.ActionEvents
	}

	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	in, err := x.waiter.AwaitInteraction(actx, el, kinds)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(actx.Err(), context.DeadlineExceeded) {
			return nil, &domain.ActionTimeoutError{StepID: step.ID, Timeout: timeout}
		}
		return nil, fmt.Errorf("failed to await interaction: %w", err)
	}
	return &in, nil
}

func (x *Executor) interactive(ctx context.Context, step domain.Step, ec ExecContext, el domain.Element) (any, error) {
	fn := step.Run
	if fn == nil && x.handlers != nil {
		fn, _ = x.handlers.Handler(step.Handler)
	}
	if fn == nil {
		return nil, &domain.ValidationError{Field: fmt.Sprintf("step %q handler", step.ID), Reason: "not registered", Value: step.Handler}
	}

	data, err := fn(ctx, domain.InteractiveContext{
		GuideID: ec.GuideID,
		Step:    step,
		Index:   ec.Index,
		Element: el,
		Data:    ec.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("interactive step %q failed: %w", step.ID, err)
	}
	return data, nil
}

func validateResult(step domain.Step, res *domain.StepResult) error {
	if res.StepID != step.ID || res.Type != step.Type {
		return &domain.ValidationError{Field: "step result", Reason: "does not match the executed step", Value: res.StepID}
	}
	if step.Type == domain.StepTypeAction && res.Interaction == nil {
		return &domain.ValidationError{Field: "step result", Reason: "action completed without an interaction"}
	}
	if res.AutoAdvance < 0 {
		return &domain.ValidationError{Field: "step result", Reason: "negative auto-advance delay", Value: res.AutoAdvance}
	}
	return nil
}

// ClearHighlight removes the current highlight, if any.
func (x *Executor) ClearHighlight() {
	x.mu.Lock()
	cleanup := x.cleanup
	x.cleanup = nil
	x.mu.Unlock()
	if cleanup != nil {
		cleanup()
	}
}

// Reset clears highlight, cached results, history and the transition source.
func (x *Executor) Reset() {
	x.ClearHighlight()
	x.mu.Lock()
	defer x.mu.Unlock()
	x.status = StatusIdle
	x.transitioning = false
	x.lastElement = nil
	x.results = make(map[string]*domain.StepResult)
	x.history = nil
}

// Status returns the state of the current execution.
func (x *Executor) Status() Status {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.status
}

// Transitioning reports whether the transition from the previous step is running.
func (x *Executor) Transitioning() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.transitioning
}

// Result returns the cached result of the last successful execution of stepID.
func (x *Executor) Result(stepID string) (*domain.StepResult, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	res, ok := x.results[stepID]
	return res, ok
}

// History returns the executed steps in order.
func (x *Executor) History() []HistoryEntry {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]HistoryEntry(nil), x.history...)
}

func (x *Executor) emit(ev domain.Event) {
	if x.emitter != nil {
		x.emitter.Emit(ev)
	}
}
