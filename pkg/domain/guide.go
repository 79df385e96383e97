package domain

import (
	"context"
	"fmt"
	"time"
)

// StepType defines how a step completes.
type StepType string

const (
	// StepTypeInfo surfaces content and completes immediately (optionally auto-advancing).
	StepTypeInfo StepType = "info"
	// StepTypeAction waits for a qualifying interaction on the target element.
	StepTypeAction StepType = "action"
	// StepTypeInteractive delegates to step-supplied custom logic.
	StepTypeInteractive StepType = "interactive"
)

// Valid reports whether t is one of the known step types.
func (t StepType) Valid() bool {
	switch t {
	case StepTypeInfo, StepTypeAction, StepTypeInteractive:
		return true
	}
	return false
}

// Strategy names a lookup strategy for a Target.
type Strategy string

const (
	// StrategySelector is a structural selector query (e.g. "#save-button").
	StrategySelector Strategy = "selector"
	// StrategyAttribute is an attribute-tag lookup (e.g. data-tour="save").
	StrategyAttribute Strategy = "attribute"
	// StrategyPath is a path-based query.
	StrategyPath Strategy = "path"
)

// Target identifies the interface element a step refers to.
type Target struct {
	Strategy Strategy `json:"strategy,omitempty" yaml:"strategy,omitempty" mapstructure:"strategy"`
	Value    string   `json:"value" yaml:"value" mapstructure:"value"`
}

// IsZero reports whether the target designates nothing.
func (t Target) IsZero() bool {
	return t.Value == ""
}

func (t Target) String() string {
	if t.Strategy == "" {
		return fmt.Sprintf("%q", t.Value)
	}
	return fmt.Sprintf("%s=%q", t.Strategy, t.Value)
}

// HookFunc is a navigation lifecycle callback.
type HookFunc func(ctx context.Context, hc HookContext) error

// HookContext is handed to navigation hooks.
type HookContext struct {
	GuideID   string
	Step      Step
	Index     int
	FromIndex int
	Direction Direction
}

// Hooks holds the navigation lifecycle callbacks of a step.
// Inline functions take precedence over the named ones, which are resolved through a registry.
type Hooks struct {
	OnEnter         HookFunc `json:"-" yaml:"-" mapstructure:"-"`
	OnLeave         HookFunc `json:"-" yaml:"-" mapstructure:"-"`
	OnEnterComplete HookFunc `json:"-" yaml:"-" mapstructure:"-"`

	OnEnterName         string `json:"on_enter,omitempty" yaml:"on_enter,omitempty" mapstructure:"on_enter"`
	OnLeaveName         string `json:"on_leave,omitempty" yaml:"on_leave,omitempty" mapstructure:"on_leave"`
	OnEnterCompleteName string `json:"on_enter_complete,omitempty" yaml:"on_enter_complete,omitempty" mapstructure:"on_enter_complete"`
}

// DisplayOptions configures presentation and timing of a step.
type DisplayOptions struct {
	// Position is a placement hint for the visual adapter (top, bottom, left, right, auto).
	Position string `json:"position,omitempty" yaml:"position,omitempty" mapstructure:"position"`
	// DisableHighlight skips highlighting the resolved target.
	DisableHighlight bool `json:"disable_highlight,omitempty" yaml:"disable_highlight,omitempty" mapstructure:"disable_highlight"`
	// TargetOptional lets an info step proceed without its target when it cannot be located.
	TargetOptional bool `json:"target_optional,omitempty" yaml:"target_optional,omitempty" mapstructure:"target_optional"`
	// AutoAdvance moves an info step forward after the delay (0 = disabled).
	AutoAdvance time.Duration `json:"auto_advance,omitempty" yaml:"auto_advance,omitempty" mapstructure:"auto_advance"`
	// ActionTimeout bounds the wait of an action step (0 = executor default).
	ActionTimeout time.Duration `json:"action_timeout,omitempty" yaml:"action_timeout,omitempty" mapstructure:"action_timeout"`
	// ActionEvents lists the interaction kinds that complete an action step (default: click).
	ActionEvents []string `json:"action_events,omitempty" yaml:"action_events,omitempty" mapstructure:"action_events"`
	// Transition overrides the transition strategy used when entering this step.
	Transition string `json:"transition,omitempty" yaml:"transition,omitempty" mapstructure:"transition"`
	// NextLabel and PrevLabel override the button captions.
	NextLabel string `json:"next_label,omitempty" yaml:"next_label,omitempty" mapstructure:"next_label"`
	PrevLabel string `json:"prev_label,omitempty" yaml:"prev_label,omitempty" mapstructure:"prev_label"`
}

// InteractiveFunc is the custom logic of an interactive step.
type InteractiveFunc func(ctx context.Context, ic InteractiveContext) (any, error)

// InteractiveContext is handed to interactive step logic.
type InteractiveContext struct {
	GuideID string
	Step    Step
	Index   int
	Element Element // nil when the step has no target
	Data    map[string]any
}

// Step is one unit of a Guide.
type Step struct {
	ID         string         `json:"id" yaml:"id" mapstructure:"id"`
	Title      string         `json:"title" yaml:"title" mapstructure:"title"`
	Content    string         `json:"content,omitempty" yaml:"content,omitempty" mapstructure:"content"`
	Target     *Target        `json:"target,omitempty" yaml:"target,omitempty" mapstructure:"target"`
	Type       StepType       `json:"type" yaml:"type" mapstructure:"type"`
	Conditions []Condition    `json:"conditions,omitempty" yaml:"conditions,omitempty" mapstructure:"conditions"`
	Hooks      Hooks          `json:"hooks,omitempty" yaml:"hooks,omitempty" mapstructure:",squash"`
	Display    DisplayOptions `json:"display,omitempty" yaml:"display,omitempty" mapstructure:"display"`

	// Handler names the registered logic of an interactive step.
	Handler string `json:"handler,omitempty" yaml:"handler,omitempty" mapstructure:"handler"`
	// Run is the inline logic of an interactive step. Takes precedence over Handler.
	Run InteractiveFunc `json:"-" yaml:"-" mapstructure:"-"`
}

// HasTarget reports whether the step refers to an element.
func (s Step) HasTarget() bool {
	return s.Target != nil && !s.Target.IsZero()
}

// Validate checks the structural requirements of a step.
func (s Step) Validate() error {
	if s.ID == "" {
		return &ValidationError{Field: "step.id", Reason: "required"}
	}
	if s.Title == "" {
		return &ValidationError{Field: fmt.Sprintf("step %q title", s.ID), Reason: "required"}
	}
	if !s.Type.Valid() {
		return &ValidationError{Field: fmt.Sprintf("step %q type", s.ID), Reason: "must be info, action or interactive", Value: s.Type}
	}
	if s.Type == StepTypeAction && !s.HasTarget() {
		return &ValidationError{Field: fmt.Sprintf("step %q target", s.ID), Reason: "required for action steps"}
	}
	if s.Type == StepTypeInteractive && s.Run == nil && s.Handler == "" {
		return &ValidationError{Field: fmt.Sprintf("step %q handler", s.ID), Reason: "required for interactive steps"}
	}
	for i, c := range s.Conditions {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("step %q condition %d: %w", s.ID, i, err)
		}
	}
	return nil
}

// Guide is a registered, named sequence of steps.
type Guide struct {
	ID          string      `json:"id" yaml:"id" mapstructure:"id"`
	Name        string      `json:"name" yaml:"name" mapstructure:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Version     string      `json:"version,omitempty" yaml:"version,omitempty" mapstructure:"version"`
	Steps       []Step      `json:"steps" yaml:"steps" mapstructure:"steps"`
	Conditions  []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty" mapstructure:"conditions"`
}

// Validate checks the guide and every step in it.
func (g Guide) Validate() error {
	if g.ID == "" {
		return &ValidationError{Field: "guide.id", Reason: "required"}
	}
	if g.Name == "" {
		return &ValidationError{Field: fmt.Sprintf("guide %q name", g.ID), Reason: "required"}
	}
	if len(g.Steps) == 0 {
		return &ValidationError{Field: fmt.Sprintf("guide %q steps", g.ID), Reason: "at least one step is required"}
	}

	seen := make(map[string]struct{}, len(g.Steps))
	for _, s := range g.Steps {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("guide %q: %w", g.ID, err)
		}
		if _, dup := seen[s.ID]; dup {
			return &ValidationError{Field: fmt.Sprintf("guide %q steps", g.ID), Reason: "duplicate step id", Value: s.ID}
		}
		seen[s.ID] = struct{}{}
	}
	for i, c := range g.Conditions {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("guide %q condition %d: %w", g.ID, i, err)
		}
	}
	return nil
}

// Clone returns a copy whose step and condition slices can be mutated independently.
func (g Guide) Clone() Guide {
	out := g
	out.Steps = append([]Step(nil), g.Steps...)
	out.Conditions = append([]Condition(nil), g.Conditions...)
	return out
}
