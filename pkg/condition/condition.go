// Package condition evaluates the gating conditions of guides and steps.
package condition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/aretw0/wayfinder/internal/logging"
	"github.com/aretw0/wayfinder/pkg/domain"
)

// PredicateResolver looks up named predicates (e.g. a *registry.Registry).
type PredicateResolver interface {
	Predicate(name string) (domain.PredicateFunc, bool)
}

// Prober answers whether a target currently resolves (e.g. a *locator.Locator).
type Prober interface {
	Probe(ctx context.Context, target domain.Target) (domain.Element, error)
}

// Evaluator evaluates conditions against run data.
type Evaluator struct {
	predicates PredicateResolver
	prober     Prober
	logger     *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithPredicates resolves named predicates.
func WithPredicates(r PredicateResolver) Option {
	return func(e *Evaluator) { e.predicates = r }
}

// WithProber sets how element conditions look up targets.
func WithProber(p Prober) Option {
	return func(e *Evaluator) { e.prober = p }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = logger }
}

// New creates an Evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Check evaluates conds in order. The first failing required condition aborts with
// a PreconditionError; failing optional conditions are logged and skipped.
func (e *Evaluator) Check(ctx context.Context, subject string, conds []domain.Condition, data map[string]any) error {
	for _, c := range conds {
		ok, err := e.Evaluate(ctx, c, data)
		if ok && err == nil {
			continue
		}
		if c.Optional {
			e.logger.Debug("optional condition not met", "subject", subject, "condition", c.String(), "err", err)
			continue
		}
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		return &domain.PreconditionError{Subject: subject, Condition: c.String(), Err: err}
	}
	return nil
}

// Evaluate decides a single condition.
func (e *Evaluator) Evaluate(ctx context.Context, c domain.Condition, data map[string]any) (bool, error) {
	switch c.Kind {
	case domain.ConditionPredicate:
		fn := c.Predicate
		if fn == nil && e.predicates != nil {
			fn, _ = e.predicates.Predicate(c.Name)
		}
		if fn == nil {
			return false, fmt.Errorf("predicate %q is not registered", c.Name)
		}
		return fn(ctx, data)

	case domain.ConditionData:
		v, found := Lookup(data, c.Key)
		return Compare(c.Op, v, found, c.Value)

	case domain.ConditionExists:
		if e.prober == nil {
			return false, errors.New("no element prober configured")
		}
		if c.Target == nil {
			return false, errors.New("exists condition without target")
		}
		_, err := e.prober.Probe(ctx, *c.Target)
		if errors.Is(err, domain.ErrElementNotFound) {
			return false, nil
		}
		return err == nil, err
	}
	return false, fmt.Errorf("unknown condition kind %q", c.Kind)
}

// Lookup resolves a dotted key ("user.role") through nested maps.
func Lookup(data map[string]any, key string) (any, bool) {
	var cur any = data
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Compare applies op to the looked-up value v (found reports presence) and want.
func Compare(op string, v any, found bool, want any) (bool, error) {
	switch op {
	case domain.OpExists:
		return found, nil
	case domain.OpNotExists:
		return !found, nil
	case domain.OpTruthy:
		return found && truthy(v), nil
	case domain.OpEq:
		return found && equal(v, want), nil
	case domain.OpNe:
		return !found || !equal(v, want), nil
	case domain.OpGt, domain.OpLt:
		if !found {
			return false, nil
		}
		a, okA := number(v)
		b, okB := number(want)
		if !okA || !okB {
			return false, fmt.Errorf("operator %s needs numbers, got %T and %T", op, v, want)
		}
		if op == domain.OpGt {
			return a > b, nil
		}
		return a < b, nil
	}
	return false, fmt.Errorf("unknown operator %q", op)
}

func equal(a, b any) bool {
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			return x == y
		}
	}
	return reflect.DeepEqual(a, b)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func truthy(v any) bool {
	if v == nil {
		return false
	}
	if n, ok := number(v); ok {
		return n != 0
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() > 0
	}
	return true
}
