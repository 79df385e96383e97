package wayfinder

import (
	"context"
	"fmt"
	"slices"

	"github.com/aretw0/wayfinder/pkg/domain"
)

// GuideLoader supplies guide definitions (e.g. a *guidefile.Loader).
type GuideLoader interface {
	LoadGuides(ctx context.Context) ([]domain.Guide, error)
}

// RegisterGuide validates g and adds it to the registry.
// Named handlers, predicates and hooks must be registered beforehand.
func (o *Orchestrator) RegisterGuide(g domain.Guide) error {
	if err := o.check(g); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.guides[g.ID]; exists {
		return fmt.Errorf("register guide %q: %w", g.ID, domain.ErrGuideExists)
	}
	o.guides[g.ID] = g.Clone()
	o.order = append(o.order, g.ID)
	o.logger.Debug("guide registered", "guide_id", g.ID, "steps", len(g.Steps))
	return nil
}

// UpdateGuide replaces a registered guide. The active guide cannot be replaced.
func (o *Orchestrator) UpdateGuide(g domain.Guide) error {
	if err := o.check(g); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.guides[g.ID]; !exists {
		return fmt.Errorf("update guide %q: %w", g.ID, domain.ErrGuideNotFound)
	}
	if o.state.IsActive && o.state.CurrentGuideID == g.ID {
		return &domain.StateError{Op: "update guide " + g.ID, Reason: "guide is active"}
	}
	o.guides[g.ID] = g.Clone()
	return nil
}

// UnregisterGuide removes a guide that is not active.
func (o *Orchestrator) UnregisterGuide(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.guides[id]; !exists {
		return fmt.Errorf("unregister guide %q: %w", id, domain.ErrGuideNotFound)
	}
	if o.state.IsActive && o.state.CurrentGuideID == id {
		return &domain.StateError{Op: "unregister guide " + id, Reason: "guide is active"}
	}
	delete(o.guides, id)
	o.order = slices.DeleteFunc(o.order, func(x string) bool { return x == id })
	return nil
}

// LoadGuides registers every guide supplied by l, replacing inactive ones
// already registered under the same id.
func (o *Orchestrator) LoadGuides(ctx context.Context, l GuideLoader) (int, error) {
	guides, err := l.LoadGuides(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load guides: %w", err)
	}
	for i, g := range guides {
		o.mu.Lock()
		_, exists := o.guides[g.ID]
		o.mu.Unlock()

		if exists {
			err = o.UpdateGuide(g)
		} else {
			err = o.RegisterGuide(g)
		}
		if err != nil {
			return i, err
		}
	}
	return len(guides), nil
}

// Guide returns a copy of the registered guide id.
func (o *Orchestrator) Guide(id string) (domain.Guide, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	g, ok := o.guides[id]
	if !ok {
		return domain.Guide{}, false
	}
	return g.Clone(), true
}

// Guides returns the registered guides in registration order.
func (o *Orchestrator) Guides() []domain.Guide {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]domain.Guide, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.guides[id].Clone())
	}
	return out
}

func (o *Orchestrator) check(g domain.Guide) error {
	if err := g.Validate(); err != nil {
		return err
	}
	return o.reg.Check(g)
}
