package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/aretw0/wayfinder/pkg/ports"
)

var (
	_ ports.ElementQuerier    = (*UI)(nil)
	_ ports.InteractionWaiter = (*UI)(nil)
	_ ports.Effects           = (*UI)(nil)
	_ ports.Pausable          = (*UI)(nil)
	_ domain.OpacityReporter  = (*Element)(nil)
)

// Element is a static element description. It satisfies domain.Element.
type Element struct {
	Name      string      `json:"id" yaml:"id"`
	Selector  string      `json:"selector,omitempty" yaml:"selector,omitempty"`
	Attribute string      `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	Path      string      `json:"path,omitempty" yaml:"path,omitempty"`
	Hidden    bool        `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Disabled  bool        `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Alpha     *float64    `json:"opacity,omitempty" yaml:"opacity,omitempty"`
	Rect      domain.Rect `json:"bounds" yaml:"bounds"`
}

func (e *Element) ID() string          { return e.Name }
func (e *Element) IsVisible() bool     { return !e.Hidden }
func (e *Element) IsInteractive() bool { return !e.Disabled }
func (e *Element) Bounds() domain.Rect { return e.Rect }

// Opacity defaults to fully opaque.
func (e *Element) Opacity() float64 {
	if e.Alpha == nil {
		return 1
	}
	return *e.Alpha
}

func (e *Element) matches(strategy domain.Strategy, value string) bool {
	switch strategy {
	case domain.StrategySelector:
		return value != "" && (value == e.Selector || value == "#"+e.Name)
	case domain.StrategyAttribute:
		return e.Attribute != "" && value == e.Attribute
	case domain.StrategyPath:
		return e.Path != "" && value == e.Path
	}
	return false
}

// EffectCall records one Apply or Clear received by the UI.
type EffectCall struct {
	ElementID string
	Kind      domain.EffectKind
	Cleared   bool
	At        time.Time
}

type waiter struct {
	elementID string
	kinds     []string
	ch        chan domain.Interaction
}

// UI is an in-memory host interface: a mutable element tree that answers
// queries, delivers simulated interactions and records applied effects.
// Safe for concurrent use.
type UI struct {
	mu        sync.Mutex
	elements  []*Element
	waiters   []*waiter
	effects   []EffectCall
	queries   int
	effectErr error
	paused    bool
}

// NewUI creates a UI holding elems.
func NewUI(elems ...*Element) *UI {
	return &UI{elements: elems}
}

// Add inserts an element, replacing one with the same name.
func (u *UI) Add(el *Element) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.elements = slices.DeleteFunc(u.elements, func(e *Element) bool { return e.Name == el.Name })
	u.elements = append(u.elements, el)
}

// AddAfter inserts el once delay has elapsed, simulating late rendering.
func (u *UI) AddAfter(delay time.Duration, el *Element) {
	time.AfterFunc(delay, func() { u.Add(el) })
}

// Remove deletes the named element.
func (u *UI) Remove(name string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.elements = slices.DeleteFunc(u.elements, func(e *Element) bool { return e.Name == name })
}

// Update mutates the named element in place. Returns false if it does not exist.
func (u *UI) Update(name string, fn func(*Element)) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, e := range u.elements {
		if e.Name == name {
			fn(e)
			return true
		}
	}
	return false
}

// Elements returns the current elements.
func (u *UI) Elements() []*Element {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]*Element(nil), u.elements...)
}

// Query implements ports.ElementQuerier.
func (u *UI) Query(ctx context.Context, strategy domain.Strategy, value string) (domain.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.queries++
	for _, e := range u.elements {
		if e.matches(strategy, value) {
			return e, nil
		}
	}
	return nil, domain.ErrElementNotFound
}

// Queries returns how many lookups Query has served.
func (u *UI) Queries() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.queries
}

// AwaitInteraction implements ports.InteractionWaiter.
func (u *UI) AwaitInteraction(ctx context.Context, el domain.Element, kinds []string) (domain.Interaction, error) {
	w := &waiter{elementID: el.ID(), kinds: kinds, ch: make(chan domain.Interaction, 1)}

	u.mu.Lock()
	u.waiters = append(u.waiters, w)
	u.mu.Unlock()

	select {
	case in := <-w.ch:
		return in, nil
	case <-ctx.Done():
		u.mu.Lock()
		u.waiters = slices.DeleteFunc(u.waiters, func(x *waiter) bool { return x == w })
		u.mu.Unlock()
		return domain.Interaction{}, ctx.Err()
	}
}

// Interact simulates a user interaction of kind on the named element.
// Returns true when at least one waiter received it.
func (u *UI) Interact(name, kind string) bool {
	in := domain.Interaction{Kind: kind, ElementID: name, At: time.Now()}

	u.mu.Lock()
	defer u.mu.Unlock()

	delivered := false
	u.waiters = slices.DeleteFunc(u.waiters, func(w *waiter) bool {
		if w.elementID != name || (len(w.kinds) > 0 && !slices.Contains(w.kinds, kind)) {
			return false
		}
		w.ch <- in
		delivered = true
		return true
	})
	return delivered
}

// Waiting reports how many AwaitInteraction calls are blocked.
func (u *UI) Waiting() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.waiters)
}

// FailEffects makes every subsequent Apply and Clear return err (nil restores).
func (u *UI) FailEffects(err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.effectErr = err
}

// Apply implements ports.Effects.
func (u *UI) Apply(ctx context.Context, el domain.Element, effect domain.Effect) error {
	return u.record(el, effect, false)
}

// Clear implements ports.Effects.
func (u *UI) Clear(ctx context.Context, el domain.Element, effect domain.Effect) error {
	return u.record(el, effect, true)
}

func (u *UI) record(el domain.Element, effect domain.Effect, cleared bool) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.effectErr != nil {
		return u.effectErr
	}
	u.effects = append(u.effects, EffectCall{ElementID: el.ID(), Kind: effect.Kind, Cleared: cleared, At: time.Now()})
	return nil
}

// Effects returns the recorded effect calls in order.
func (u *UI) Effects() []EffectCall {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]EffectCall(nil), u.effects...)
}

func (u *UI) PauseEffects() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.paused = true
}

func (u *UI) ResumeEffects() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.paused = false
}

// EffectsPaused reports whether PauseEffects is in force.
func (u *UI) EffectsPaused() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.paused
}
