package dsl

import (
	"time"

	"github.com/aretw0/wayfinder/pkg/domain"
)

// StepBuilder configures one step. Every method returns the builder for chaining.
type StepBuilder struct {
	step    domain.Step
	builder *Builder
}

func (s *StepBuilder) Title(title string) *StepBuilder {
	s.step.Title = title
	return s
}

// Content sets the step body, usually markdown.
func (s *StepBuilder) Content(content string) *StepBuilder {
	s.step.Content = content
	return s
}

func (s *StepBuilder) Target(t domain.Target) *StepBuilder {
	s.step.Target = &t
	return s
}

// When adds preconditions evaluated before the step runs.
func (s *StepBuilder) When(conds ...domain.Condition) *StepBuilder {
	s.step.Conditions = append(s.step.Conditions, conds...)
	return s
}

// Run sets the inline logic of an interactive step.
func (s *StepBuilder) Run(fn domain.InteractiveFunc) *StepBuilder {
	s.step.Run = fn
	return s
}

// Handler names a registered interactive handler.
func (s *StepBuilder) Handler(name string) *StepBuilder {
	s.step.Handler = name
	return s
}

func (s *StepBuilder) OnEnter(fn domain.HookFunc) *StepBuilder {
	s.step.Hooks.OnEnter = fn
	return s
}

func (s *StepBuilder) OnLeave(fn domain.HookFunc) *StepBuilder {
	s.step.Hooks.OnLeave = fn
	return s
}

func (s *StepBuilder) OnEnterComplete(fn domain.HookFunc) *StepBuilder {
	s.step.Hooks.OnEnterComplete = fn
	return s
}

// AutoAdvance moves to the next step d after an info step is shown.
func (s *StepBuilder) AutoAdvance(d time.Duration) *StepBuilder {
	s.step.Display.AutoAdvance = d
	return s
}

// Timeout bounds the wait of an action step.
func (s *StepBuilder) Timeout(d time.Duration) *StepBuilder {
	s.step.Display.ActionTimeout = d
	return s
}

// Events sets the interaction kinds completing an action step.
func (s *StepBuilder) Events(kinds ...string) *StepBuilder {
	s.step.Display.ActionEvents = kinds
	return s
}

func (s *StepBuilder) Position(p string) *StepBuilder {
	s.step.Display.Position = p
	return s
}

// Labels overrides the next and previous button labels.
func (s *StepBuilder) Labels(next, prev string) *StepBuilder {
	s.step.Display.NextLabel = next
	s.step.Display.PrevLabel = prev
	return s
}

// TargetOptional lets the step run when its target cannot be found.
func (s *StepBuilder) TargetOptional() *StepBuilder {
	s.step.Display.TargetOptional = true
	return s
}

func (s *StepBuilder) NoHighlight() *StepBuilder {
	s.step.Display.DisableHighlight = true
	return s
}

// Guide returns to the guide builder.
func (s *StepBuilder) Guide() *Builder {
	return s.builder
}
