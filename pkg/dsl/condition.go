package dsl

import "github.com/aretw0/wayfinder/pkg/domain"

// Selector targets an element by selector.
func Selector(v string) domain.Target {
	return domain.Target{Strategy: domain.StrategySelector, Value: v}
}

// Attribute targets an element by its onboarding attribute.
func Attribute(v string) domain.Target {
	return domain.Target{Strategy: domain.StrategyAttribute, Value: v}
}

// Path targets an element by structural path.
func Path(v string) domain.Target {
	return domain.Target{Strategy: domain.StrategyPath, Value: v}
}

// Exists requires target to resolve.
func Exists(target domain.Target) domain.Condition {
	return domain.Condition{Kind: domain.ConditionExists, Target: &target}
}

// Data compares the run data at key (dotted) using op.
func Data(key, op string, value any) domain.Condition {
	return domain.Condition{Kind: domain.ConditionData, Key: key, Op: op, Value: value}
}

// Eq is Data with the eq operator.
func Eq(key string, value any) domain.Condition {
	return Data(key, domain.OpEq, value)
}

// Truthy requires a non-empty, non-zero value at key.
func Truthy(key string) domain.Condition {
	return Data(key, domain.OpTruthy, nil)
}

// Predicate refers to a registered predicate.
func Predicate(name string) domain.Condition {
	return domain.Condition{Kind: domain.ConditionPredicate, Name: name}
}

// Func wraps an inline predicate.
func Func(description string, fn domain.PredicateFunc) domain.Condition {
	return domain.Condition{Kind: domain.ConditionPredicate, Description: description, Predicate: fn}
}

// Optional marks c so that its failure is only logged.
func Optional(c domain.Condition) domain.Condition {
	c.Optional = true
	return c
}
