// Package animation coordinates cosmetic highlight and step-transition effects.
//
// Every operation returns its error so the caller can decide what to ignore;
// the coordinator itself never panics, even when the host effect does.
package animation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/wayfinder/internal/logging"
	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/aretw0/wayfinder/pkg/event"
	"github.com/aretw0/wayfinder/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// Coordinator is the AnimationCoordinator.
type Coordinator struct {
	effects ports.Effects
	cfg     Config
	emitter event.Emitter
	logger  *slog.Logger

	paused atomic.Bool

	mu    sync.Mutex
	busy  bool
	queue []chan struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(c *Coordinator) { c.cfg = cfg }
}

// WithEmitter sets where animation events are published.
func WithEmitter(e event.Emitter) Option {
	return func(c *Coordinator) { c.emitter = e }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// New creates a Coordinator applying effects through the host. A nil host disables all effects.
func New(effects ports.Effects, opts ...Option) *Coordinator {
	c := &Coordinator{
		effects: effects,
		cfg:     DefaultConfig(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) active() bool {
	return c.cfg.Enabled && c.effects != nil && !c.paused.Load()
}

// HighlightElement applies the highlight treatment and waits its duration.
// The returned cleanup restores the element; it is safe to call more than once
// and is never nil.
func (c *Coordinator) HighlightElement(ctx context.Context, el domain.Element, opts Options) (func(), error) {
	noop := func() {}
	if el == nil || !c.active() {
		return noop, nil
	}

	effect := domain.Effect{Kind: domain.EffectHighlight, Duration: c.duration(domain.EffectHighlight, opts)}
	c.emitEffect(domain.EventAnimationStarted, el, effect)

	if err := c.safe(func() error { return c.effects.Apply(ctx, el, effect) }); err != nil {
		return noop, err
	}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			if err := c.safe(func() error { return c.effects.Clear(context.WithoutCancel(ctx), el, effect) }); err != nil {
				c.logger.Debug("highlight cleanup failed", "element", el.ID(), "err", err)
			}
		})
	}

	if err := c.wait(ctx, effect.Duration); err != nil {
		return cleanup, err
	}
	c.emitEffect(domain.EventAnimationCompleted, el, effect)
	return cleanup, nil
}

// FadeIn fades el in.
func (c *Coordinator) FadeIn(ctx context.Context, el domain.Element, opts Options) error {
	return c.run(ctx, el, domain.EffectFadeIn, opts)
}

// FadeOut fades el out.
func (c *Coordinator) FadeOut(ctx context.Context, el domain.Element, opts Options) error {
	return c.run(ctx, el, domain.EffectFadeOut, opts)
}

// SlideIn slides el in, from the right by default.
func (c *Coordinator) SlideIn(ctx context.Context, el domain.Element, opts Options) error {
	if opts.Direction == "" {
		opts.Direction = "right"
	}
	return c.run(ctx, el, domain.EffectSlideIn, opts)
}

// SlideOut slides el out, to the left by default.
func (c *Coordinator) SlideOut(ctx context.Context, el domain.Element, opts Options) error {
	if opts.Direction == "" {
		opts.Direction = "left"
	}
	return c.run(ctx, el, domain.EffectSlideOut, opts)
}

// run applies an effect, waits its duration and clears it.
func (c *Coordinator) run(ctx context.Context, el domain.Element, kind domain.EffectKind, opts Options) error {
	if el == nil || !c.active() {
		return nil
	}

	effect := domain.Effect{Kind: kind, Duration: c.duration(kind, opts), Direction: opts.Direction}
	c.emitEffect(domain.EventAnimationStarted, el, effect)

	if err := c.safe(func() error { return c.effects.Apply(ctx, el, effect) }); err != nil {
		return err
	}
	waitErr := c.wait(ctx, effect.Duration)
	if err := c.safe(func() error { return c.effects.Clear(context.WithoutCancel(ctx), el, effect) }); err != nil {
		return err
	}
	if waitErr != nil {
		return waitErr
	}

	c.emitEffect(domain.EventAnimationCompleted, el, effect)
	return nil
}

// TransitionSteps animates from one step's element to the next. Transitions are
// single-flight: a call made while another is running waits its turn in FIFO order.
// Either element may be nil.
func (c *Coordinator) TransitionSteps(ctx context.Context, from, to domain.Element, opts Options) error {
	if (from == nil && to == nil) || !c.active() {
		return nil
	}

	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	strategy := opts.Strategy
	if !strategy.Valid() {
		strategy = c.cfg.Strategy
	}
	meta := map[string]any{"transition": string(strategy)}
	c.emit(domain.Event{Type: domain.EventAnimationStarted, Context: meta})

	var err error
	switch strategy {
	case StrategySlide:
		if err = c.SlideOut(ctx, from, Options{Duration: opts.Duration}); err == nil {
			err = c.SlideIn(ctx, to, Options{Duration: opts.Duration})
		}
	case StrategyCrossfade:
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return c.FadeOut(gctx, from, Options{Duration: opts.Duration}) })
		g.Go(func() error { return c.FadeIn(gctx, to, Options{Duration: opts.Duration}) })
		err = g.Wait()
	default:
		if err = c.FadeOut(ctx, from, Options{Duration: opts.Duration}); err == nil {
			err = c.FadeIn(ctx, to, Options{Duration: opts.Duration})
		}
	}
	if err != nil {
		c.logger.Debug("transition failed", "strategy", strategy, "err", err)
		return err
	}

	c.emit(domain.Event{Type: domain.EventAnimationCompleted, Context: meta})
	return nil
}

// acquire takes the transition slot or queues for it.
func (c *Coordinator) acquire(ctx context.Context) error {
	c.mu.Lock()
	if !c.busy {
		c.busy = true
		c.mu.Unlock()
		return nil
	}
	turn := make(chan struct{})
	c.queue = append(c.queue, turn)
	c.mu.Unlock()

	select {
	case <-turn:
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		for i, q := range c.queue {
			if q == turn {
				c.queue = append(c.queue[:i:i], c.queue[i+1:]...)
				c.mu.Unlock()
				return ctx.Err()
			}
		}
		c.mu.Unlock()
		// The slot was handed over concurrently; pass it on.
		c.release()
		return ctx.Err()
	}
}

// release hands the slot to the oldest waiter, or frees it.
func (c *Coordinator) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		c.busy = false
		return
	}
	next := c.queue[0]
	c.queue = c.queue[1:]
	close(next)
}

// Pending returns how many transitions are waiting for the slot.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Pause is advisory: new effects are skipped until Resume, and hosts
// implementing ports.Pausable are asked to suspend running ones.
func (c *Coordinator) Pause() {
	c.paused.Store(true)
	if p, ok := c.effects.(ports.Pausable); ok {
		p.PauseEffects()
	}
}

// Resume lifts Pause.
func (c *Coordinator) Resume() {
	c.paused.Store(false)
	if p, ok := c.effects.(ports.Pausable); ok {
		p.ResumeEffects()
	}
}

// Paused reports whether effects are suspended.
func (c *Coordinator) Paused() bool {
	return c.paused.Load()
}

func (c *Coordinator) duration(kind domain.EffectKind, opts Options) time.Duration {
	if opts.Duration > 0 {
		return opts.Duration
	}
	switch kind {
	case domain.EffectHighlight:
		return c.cfg.HighlightDuration
	case domain.EffectSlideIn, domain.EffectSlideOut:
		return c.cfg.SlideDuration
	default:
		return c.cfg.FadeDuration
	}
}

func (c *Coordinator) wait(ctx context.Context, d time.Duration) error {
	if c.cfg.ReducedMotion || d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// safe runs a host effect call, converting errors and panics into ErrAnimationFailed.
func (c *Coordinator) safe(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: effect panicked: %v", domain.ErrAnimationFailed, r)
		}
	}()
	if err := fn(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrAnimationFailed, err)
	}
	return nil
}

func (c *Coordinator) emitEffect(t domain.EventType, el domain.Element, effect domain.Effect) {
	c.emit(domain.Event{
		Type:    t,
		Context: map[string]any{"effect": string(effect.Kind), "element": el.ID()},
	})
}

func (c *Coordinator) emit(ev domain.Event) {
	if c.emitter != nil {
		c.emitter.Emit(ev)
	}
}
