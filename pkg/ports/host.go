package ports

import (
	"context"

	"github.com/aretw0/wayfinder/pkg/domain"
)

// ElementQuerier resolves elements in the host interface.
type ElementQuerier interface {
	// Query runs a single lookup with the given strategy.
	// Returns domain.ErrElementNotFound when nothing matches.
	Query(ctx context.Context, strategy domain.Strategy, value string) (domain.Element, error)
}

// InteractionWaiter waits for user interaction on an element.
type InteractionWaiter interface {
	// AwaitInteraction blocks until an interaction of one of the given kinds
	// happens on el, or ctx is done.
	AwaitInteraction(ctx context.Context, el domain.Element, kinds []string) (domain.Interaction, error)
}

// Effects applies cosmetic treatments. Implementations must not block beyond
// starting the effect; the animation layer owns the waiting.
type Effects interface {
	Apply(ctx context.Context, el domain.Element, effect domain.Effect) error
	Clear(ctx context.Context, el domain.Element, effect domain.Effect) error
}

// Pausable is implemented by Effects hosts that can suspend running effects.
// Pausing is advisory; hosts may be unable to interrupt an effect mid-flight.
type Pausable interface {
	PauseEffects()
	ResumeEffects()
}

// VisualAdapter presents steps and reports navigation intents back to the engine.
type VisualAdapter interface {
	Init(ctx context.Context, cfg domain.VisualConfig) error
	HighlightElement(ctx context.Context, step domain.StepDescriptor) error
	UpdateHighlight(ctx context.Context) error
	Destroy(ctx context.Context) error
	// On registers the callback invoked when the adapter observes intent.
	On(intent domain.Intent, callback func())
}
