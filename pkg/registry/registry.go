// Package registry holds the named functions file-defined guides refer to:
// interactive step handlers, condition predicates and navigation hooks.
//
// A Registry is an explicit instance owned by one orchestrator; there is no
// package-level state.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/wayfinder/pkg/domain"
)

// Registry maps names to functions. Safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	handlers   map[string]domain.InteractiveFunc
	predicates map[string]domain.PredicateFunc
	hooks      map[string]domain.HookFunc
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers:   make(map[string]domain.InteractiveFunc),
		predicates: make(map[string]domain.PredicateFunc),
		hooks:      make(map[string]domain.HookFunc),
	}
}

// RegisterHandler adds an interactive step handler.
// If a handler with the same name exists, it is overwritten.
func (r *Registry) RegisterHandler(name string, fn domain.InteractiveFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = fn
}

// RegisterPredicate adds a condition predicate, overwriting any previous one.
func (r *Registry) RegisterPredicate(name string, fn domain.PredicateFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predicates[name] = fn
}

// RegisterHook adds a navigation hook, overwriting any previous one.
func (r *Registry) RegisterHook(name string, fn domain.HookFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[name] = fn
}

// Handler returns the interactive handler registered as name.
func (r *Registry) Handler(name string) (domain.InteractiveFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.handlers[name]
	return fn, ok
}

// Predicate returns the predicate registered as name.
func (r *Registry) Predicate(name string) (domain.PredicateFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.predicates[name]
	return fn, ok
}

// Hook returns the hook registered as name.
func (r *Registry) Hook(name string) (domain.HookFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.hooks[name]
	return fn, ok
}

// Execute looks up a handler by name and runs it.
func (r *Registry) Execute(ctx context.Context, name string, ic domain.InteractiveContext) (any, error) {
	fn, ok := r.Handler(name)
	if !ok {
		return nil, fmt.Errorf("handler not found: %s", name)
	}
	return fn(ctx, ic)
}

// Names lists registered names per kind, sorted. Useful for validating guide files.
func (r *Registry) Names() (handlers, predicates, hooks []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.handlers), sortedKeys(r.predicates), sortedKeys(r.hooks)
}

// Check reports every name g refers to that is not registered.
func (r *Registry) Check(g domain.Guide) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	checkConds := func(subject string, conds []domain.Condition) error {
		for _, c := range conds {
			if c.Kind == domain.ConditionPredicate && c.Predicate == nil {
				if _, ok := r.predicates[c.Name]; !ok {
					return &domain.ValidationError{Field: subject + " predicate", Reason: "not registered", Value: c.Name}
				}
			}
		}
		return nil
	}

	if err := checkConds(fmt.Sprintf("guide %q", g.ID), g.Conditions); err != nil {
		return err
	}
	for _, s := range g.Steps {
		subject := fmt.Sprintf("step %q", s.ID)
		if s.Type == domain.StepTypeInteractive && s.Run == nil {
			if _, ok := r.handlers[s.Handler]; !ok {
				return &domain.ValidationError{Field: subject + " handler", Reason: "not registered", Value: s.Handler}
			}
		}
		if err := checkConds(subject, s.Conditions); err != nil {
			return err
		}
		for _, name := range []string{s.Hooks.OnEnterName, s.Hooks.OnLeaveName, s.Hooks.OnEnterCompleteName} {
			if name == "" {
				continue
			}
			if _, ok := r.hooks[name]; !ok {
				return &domain.ValidationError{Field: subject + " hook", Reason: "not registered", Value: name}
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
