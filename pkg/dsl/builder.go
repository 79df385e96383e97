package dsl

import (
	"context"
	"fmt"

	"github.com/aretw0/wayfinder/pkg/domain"
)

// Builder manages the construction of one guide.
type Builder struct {
	guide domain.Guide
	steps []*StepBuilder
	index map[string]*StepBuilder
}

// New creates a builder for the guide id.
func New(id string) *Builder {
	return &Builder{
		guide: domain.Guide{ID: id},
		index: make(map[string]*StepBuilder),
	}
}

func (b *Builder) Name(name string) *Builder {
	b.guide.Name = name
	return b
}

func (b *Builder) Description(desc string) *Builder {
	b.guide.Description = desc
	return b
}

func (b *Builder) Version(v string) *Builder {
	b.guide.Version = v
	return b
}

// Requires adds eligibility conditions checked when the guide starts.
func (b *Builder) Requires(conds ...domain.Condition) *Builder {
	b.guide.Conditions = append(b.guide.Conditions, conds...)
	return b
}

// Step appends a step of the given type, or returns the existing builder of id.
func (b *Builder) Step(id string, t domain.StepType) *StepBuilder {
	if sb, ok := b.index[id]; ok {
		return sb
	}
	sb := &StepBuilder{step: domain.Step{ID: id, Type: t}, builder: b}
	b.steps = append(b.steps, sb)
	b.index[id] = sb
	return sb
}

// Info appends an informational step.
func (b *Builder) Info(id string) *StepBuilder {
	return b.Step(id, domain.StepTypeInfo)
}

// Action appends a step completed by interacting with target.
func (b *Builder) Action(id string, target domain.Target) *StepBuilder {
	return b.Step(id, domain.StepTypeAction).Target(target)
}

// Interactive appends a step running custom logic.
func (b *Builder) Interactive(id string, run domain.InteractiveFunc) *StepBuilder {
	return b.Step(id, domain.StepTypeInteractive).Run(run)
}

// Build assembles and validates the guide.
func (b *Builder) Build() (domain.Guide, error) {
	g := b.guide
	g.Steps = make([]domain.Step, 0, len(b.steps))
	for _, sb := range b.steps {
		g.Steps = append(g.Steps, sb.step)
	}
	if err := g.Validate(); err != nil {
		return domain.Guide{}, fmt.Errorf("failed to build guide %q: %w", g.ID, err)
	}
	return g.Clone(), nil
}

// MustBuild is Build for guides known to be valid; it panics otherwise.
func (b *Builder) MustBuild() domain.Guide {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}

// LoadGuides makes a Builder usable as a guide loader.
func (b *Builder) LoadGuides(ctx context.Context) ([]domain.Guide, error) {
	g, err := b.Build()
	if err != nil {
		return nil, err
	}
	return []domain.Guide{g}, nil
}

// Set loads several builders as one source.
type Set []*Builder

func (s Set) LoadGuides(ctx context.Context) ([]domain.Guide, error) {
	out := make([]domain.Guide, 0, len(s))
	for _, b := range s {
		g, err := b.Build()
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}
