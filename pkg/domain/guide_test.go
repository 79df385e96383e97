package domain_test

import (
	"errors"
	"testing"

	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validGuide() domain.Guide {
	return domain.Guide{
		ID:   "intro",
		Name: "Introduction",
		Steps: []domain.Step{
			{ID: "s1", Title: "Welcome", Type: domain.StepTypeInfo},
			{ID: "s2", Title: "Save", Type: domain.StepTypeAction, Target: &domain.Target{Strategy: domain.StrategySelector, Value: "#save"}},
		},
	}
}

func TestGuide_Validate(t *testing.T) {
	require.NoError(t, validGuide().Validate())

	tests := []struct {
		name   string
		mutate func(g *domain.Guide)
	}{
		{"missing id", func(g *domain.Guide) { g.ID = "" }},
		{"missing name", func(g *domain.Guide) { g.Name = "" }},
		{"no steps", func(g *domain.Guide) { g.Steps = nil }},
		{"duplicate step", func(g *domain.Guide) { g.Steps[1].ID = "s1" }},
		{"step without title", func(g *domain.Guide) { g.Steps[0].Title = "" }},
		{"bad step type", func(g *domain.Guide) { g.Steps[0].Type = "popup" }},
		{"action without target", func(g *domain.Guide) { g.Steps[1].Target = nil }},
		{"interactive without handler", func(g *domain.Guide) { g.Steps[0].Type = domain.StepTypeInteractive }},
		{"bad condition", func(g *domain.Guide) {
			g.Conditions = []domain.Condition{{Kind: domain.ConditionData, Key: "role", Op: "like"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := validGuide().Clone()
			tt.mutate(&g)
			err := g.Validate()
			assert.ErrorIs(t, err, domain.ErrValidation)

			var ve *domain.ValidationError
			assert.True(t, errors.As(err, &ve))
		})
	}
}

func TestGuide_CloneIsIndependent(t *testing.T) {
	g := validGuide()
	c := g.Clone()
	c.Steps[0].Title = "Changed"

	assert.Equal(t, "Welcome", g.Steps[0].Title)
}

func TestTarget_String(t *testing.T) {
	assert.Equal(t, `selector="#save"`, domain.Target{Strategy: domain.StrategySelector, Value: "#save"}.String())
	assert.Equal(t, `"#save"`, domain.Target{Value: "#save"}.String())
	assert.True(t, domain.Target{}.IsZero())
}

func TestCondition_String(t *testing.T) {
	assert.Equal(t, "role eq admin", domain.Condition{Kind: domain.ConditionData, Key: "role", Op: domain.OpEq, Value: "admin"}.String())
	assert.Equal(t, "predicate isAdmin", domain.Condition{Kind: domain.ConditionPredicate, Name: "isAdmin"}.String())
	assert.Equal(t, "custom", domain.Condition{Kind: domain.ConditionPredicate, Name: "x", Description: "custom"}.String())
}
