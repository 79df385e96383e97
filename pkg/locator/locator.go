// Package locator resolves step targets to host elements with multi-strategy
// lookup, retry with exponential backoff, and state validation.
package locator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/aretw0/wayfinder/internal/logging"
	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/aretw0/wayfinder/pkg/event"
	"github.com/aretw0/wayfinder/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// Validation failures of a located candidate.
var (
	ErrNotVisible     = errors.New("element is not visible")
	ErrNotInteractive = errors.New("element is not interactive")
	ErrTooSmall       = errors.New("element is below the minimum size")
)

// Locator is the ElementLocator.
type Locator struct {
	querier ports.ElementQuerier
	cfg     Config
	emitter event.Emitter
	logger  *slog.Logger
}

// Option configures a Locator.
type Option func(*Locator)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(l *Locator) { l.cfg = cfg }
}

// WithEmitter sets where located and failed lookups are published.
func WithEmitter(e event.Emitter) Option {
	return func(l *Locator) { l.emitter = e }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Locator) { l.logger = logger }
}

// New creates a Locator querying the host through querier.
func New(querier ports.ElementQuerier, opts ...Option) *Locator {
	l := &Locator{
		querier: querier,
		cfg:     DefaultConfig(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Config returns the active configuration.
func (l *Locator) Config() Config {
	return l.cfg
}

// Backoff returns the delay before retry number attempt (1-based):
// min(base * 2^(attempt-1), limit). Jitter is not included.
func Backoff(attempt int, base, limit time.Duration) time.Duration {
	if attempt < 1 || base <= 0 {
		return 0
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	return min(d, limit)
}

func (l *Locator) delay(attempt int, cfg Config) time.Duration {
	d := Backoff(attempt, cfg.BaseDelay, cfg.MaxDelay)
	if cfg.Jitter > 0 && d > 0 {
		if n := int64(float64(d) * cfg.Jitter); n > 0 {
			d += time.Duration(rand.Int64N(n)) //nolint:gosec // jitter doesn't need crypto-strength randomness
		}
	}
	return d
}

// Locate resolves target. Each attempt tries the strategies in priority order and
// the first candidate found is validated. Attempts are separated by jittered
// exponential backoff; the loop stops at MaxAttempts or Timeout, whichever comes first.
func (l *Locator) Locate(ctx context.Context, target domain.Target, opts Options) (domain.Element, error) {
	cfg := l.cfg.with(opts)
	if target.IsZero() {
		return nil, &domain.ValidationError{Field: "target", Reason: "value is required"}
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	strategies := l.order(target, cfg)
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		attempts = attempt
		el, strategy, err := l.attempt(ctx, target, strategies, cfg)
		if err == nil {
			l.logger.Debug("element located", "target", target.String(), "strategy", strategy, "attempt", attempt)
			l.emit(domain.Event{
				Type:    domain.EventElementLocated,
				Message: el.ID(),
				Context: map[string]any{"target": target.String(), "strategy": string(strategy), "attempts": attempt},
				Data:    el,
			})
			return el, nil
		}
		lastErr = err
		l.logger.Debug("locate attempt failed", "target", target.String(), "attempt", attempt, "err", err)

		if attempt == cfg.MaxAttempts || ctx.Err() != nil {
			break
		}

		wait := time.NewTimer(l.delay(attempt, cfg))
		select {
		case <-ctx.Done():
			wait.Stop()
		case <-wait.C:
		}
		if ctx.Err() != nil {
			break
		}
	}

	return nil, l.fail(ctx, target, attempts, lastErr)
}

func (l *Locator) fail(ctx context.Context, target domain.Target, attempts int, lastErr error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(lastErr, ctxErr) {
		lastErr = errors.Join(lastErr, ctxErr)
	}
	err := &domain.LocateError{Target: target, Attempts: attempts, Err: lastErr}
	l.logger.Warn("element not located", "target", target.String(), "attempt", attempts, "err", lastErr)
	l.emit(domain.Event{
		Type:    domain.EventLocatorFailed,
		Message: err.Error(),
		Err:     err,
		Context: map[string]any{"target": target.String(), "attempts": attempts},
	})
	return err
}

// attempt runs one pass over the strategies.
func (l *Locator) attempt(ctx context.Context, target domain.Target, strategies []domain.Strategy, cfg Config) (domain.Element, domain.Strategy, error) {
	var lastErr error = domain.ErrElementNotFound
	for _, s := range strategies {
		el, err := l.querier.Query(ctx, s, target.Value)
		if err != nil {
			if ctx.Err() != nil {
				return nil, s, ctx.Err()
			}
			if !errors.Is(err, domain.ErrElementNotFound) {
				lastErr = fmt.Errorf("failed to query %s: %w", s, err)
			}
			continue
		}
		if el == nil {
			continue
		}
		if err := l.validate(el, cfg); err != nil {
			return nil, s, err
		}
		return el, s, nil
	}
	return nil, "", lastErr
}

// order puts the target's own strategy first, followed by the configured priority.
func (l *Locator) order(target domain.Target, cfg Config) []domain.Strategy {
	if target.Strategy != "" && cfg.StrictStrategy {
		return []domain.Strategy{target.Strategy}
	}
	out := make([]domain.Strategy, 0, len(cfg.Strategies)+1)
	if target.Strategy != "" {
		out = append(out, target.Strategy)
	}
	for _, s := range cfg.Strategies {
		if s != target.Strategy {
			out = append(out, s)
		}
	}
	return out
}

// Validate applies the configured state checks to el.
func (l *Locator) Validate(el domain.Element) error {
	return l.validate(el, l.cfg)
}

func (l *Locator) validate(el domain.Element, cfg Config) error {
	b := el.Bounds()
	if cfg.Checks.Visibility {
		if !el.IsVisible() {
			return fmt.Errorf("element %s: %w", el.ID(), ErrNotVisible)
		}
		if cfg.Viewport != nil && !b.Intersects(*cfg.Viewport) {
			return fmt.Errorf("element %s outside viewport: %w", el.ID(), ErrNotVisible)
		}
	}
	if cfg.Checks.Interactivity {
		if !el.IsInteractive() {
			return fmt.Errorf("element %s: %w", el.ID(), ErrNotInteractive)
		}
		if op, ok := el.(domain.OpacityReporter); ok && op.Opacity() < cfg.MinOpacity {
			return fmt.Errorf("element %s opacity %.2f: %w", el.ID(), op.Opacity(), ErrNotInteractive)
		}
	}
	if cfg.Checks.Size && (b.Width < cfg.MinWidth || b.Height < cfg.MinHeight) {
		return fmt.Errorf("element %s is %.0fx%.0f: %w", el.ID(), b.Width, b.Height, ErrTooSmall)
	}
	return nil
}

// Probe runs a single lookup pass without validation or events.
// It answers whether target currently resolves to anything.
func (l *Locator) Probe(ctx context.Context, target domain.Target) (domain.Element, error) {
	cfg := l.cfg.with(Options{Checks: &Checks{}})
	el, _, err := l.attempt(ctx, target, l.order(target, cfg), cfg)
	return el, err
}

// Result is the outcome of one target in LocateMultiple.
type Result struct {
	Target  domain.Target
	Element domain.Element
	Err     error
}

// LocateMultiple resolves every target concurrently (bounded by Concurrency).
// Failures are reported per target; the call itself never fails.
func (l *Locator) LocateMultiple(ctx context.Context, targets []domain.Target, opts Options) []Result {
	results := make([]Result, len(targets))

	var g errgroup.Group
	if l.cfg.Concurrency > 0 {
		g.SetLimit(l.cfg.Concurrency)
	}
	for i, t := range targets {
		g.Go(func() error {
			el, err := l.Locate(ctx, t, opts)
			results[i] = Result{Target: t, Element: el, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// WaitForElement polls a single lookup pass every PollInterval until target
// resolves and validates, or timeout elapses. A non-positive timeout uses
// the configured Timeout.
func (l *Locator) WaitForElement(ctx context.Context, target domain.Target, timeout time.Duration) (domain.Element, error) {
	if target.IsZero() {
		return nil, &domain.ValidationError{Field: "target", Reason: "value is required"}
	}
	cfg := l.cfg.with(Options{})
	if timeout <= 0 {
		timeout = cfg.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	strategies := l.order(target, cfg)
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	polls := 0
	for {
		polls++
		el, strategy, err := l.attempt(ctx, target, strategies, cfg)
		if err == nil {
			l.emit(domain.Event{
				Type:    domain.EventElementLocated,
				Message: el.ID(),
				Context: map[string]any{"target": target.String(), "strategy": string(strategy), "attempts": polls},
				Data:    el,
			})
			return el, nil
		}

		select {
		case <-ctx.Done():
			return nil, l.fail(ctx, target, polls, err)
		case <-ticker.C:
		}
	}
}

func (l *Locator) emit(ev domain.Event) {
	if l.emitter != nil {
		l.emitter.Emit(ev)
	}
}
