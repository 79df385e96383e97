package domain

import (
	"context"
	"fmt"
)

// ConditionKind selects how a Condition is evaluated.
type ConditionKind string

const (
	// ConditionPredicate evaluates an inline or registered predicate function.
	ConditionPredicate ConditionKind = "predicate"
	// ConditionData compares a value from the run's context data.
	ConditionData ConditionKind = "data"
	// ConditionExists checks that a target element can be resolved.
	ConditionExists ConditionKind = "exists"
)

// Data comparison operators.
const (
	OpEq        = "eq"
	OpNe        = "ne"
	OpExists    = "exists"
	OpNotExists = "not_exists"
	OpTruthy    = "truthy"
	OpGt        = "gt"
	OpLt        = "lt"
)

// PredicateFunc decides a predicate condition against the run's context data.
type PredicateFunc func(ctx context.Context, data map[string]any) (bool, error)

// Condition gates a step or a guide.
// Conditions are required unless Optional is set; a failing optional condition is only logged.
type Condition struct {
	Kind        ConditionKind `json:"kind" yaml:"kind" mapstructure:"kind"`
	Optional    bool          `json:"optional,omitempty" yaml:"optional,omitempty" mapstructure:"optional"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`

	// predicate
	Name      string        `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Predicate PredicateFunc `json:"-" yaml:"-" mapstructure:"-"`

	// data
	Key   string `json:"key,omitempty" yaml:"key,omitempty" mapstructure:"key"`
	Op    string `json:"op,omitempty" yaml:"op,omitempty" mapstructure:"op"`
	Value any    `json:"value,omitempty" yaml:"value,omitempty" mapstructure:"value"`

	// exists
	Target *Target `json:"target,omitempty" yaml:"target,omitempty" mapstructure:"target"`
}

// String returns the description or a compact rendering of the condition.
func (c Condition) String() string {
	if c.Description != "" {
		return c.Description
	}
	switch c.Kind {
	case ConditionPredicate:
		if c.Name != "" {
			return "predicate " + c.Name
		}
		return "inline predicate"
	case ConditionData:
		if c.Value == nil {
			return fmt.Sprintf("%s %s", c.Key, c.Op)
		}
		return fmt.Sprintf("%s %s %v", c.Key, c.Op, c.Value)
	case ConditionExists:
		if c.Target != nil {
			return "exists " + c.Target.String()
		}
	}
	return string(c.Kind)
}

// Validate checks that the condition carries what its kind needs.
func (c Condition) Validate() error {
	switch c.Kind {
	case ConditionPredicate:
		if c.Predicate == nil && c.Name == "" {
			return &ValidationError{Field: "condition.name", Reason: "predicate conditions need a name or a function"}
		}
	case ConditionData:
		if c.Key == "" {
			return &ValidationError{Field: "condition.key", Reason: "required for data conditions"}
		}
		switch c.Op {
		case OpEq, OpNe, OpExists, OpNotExists, OpTruthy, OpGt, OpLt:
		default:
			return &ValidationError{Field: "condition.op", Reason: "unknown operator", Value: c.Op}
		}
	case ConditionExists:
		if c.Target == nil || c.Target.IsZero() {
			return &ValidationError{Field: "condition.target", Reason: "required for exists conditions"}
		}
	default:
		return &ValidationError{Field: "condition.kind", Reason: "must be predicate, data or exists", Value: c.Kind}
	}
	return nil
}
