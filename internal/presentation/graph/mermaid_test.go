package graph_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aretw0/wayfinder/internal/presentation/graph"
	"github.com/aretw0/wayfinder/pkg/domain"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		steps    []domain.Step
		contains []string
	}{
		{
			name: "First Step Shape",
			steps: []domain.Step{
				{ID: "welcome", Title: "Welcome", Type: domain.StepTypeInfo},
			},
			contains: []string{
				`welcome(("Welcome"))`,
				`welcome --> __end`,
				`__end((("completed")))`,
			},
		},
		{
			name: "Step Type Shapes",
			steps: []domain.Step{
				{ID: "a", Type: domain.StepTypeInfo},
				{ID: "b", Type: domain.StepTypeAction},
				{ID: "c", Type: domain.StepTypeInteractive},
				{ID: "d", Type: domain.StepTypeInfo},
			},
			contains: []string{
				`b[/"b"/]`,
				`c[["c"]]`,
				`d["d"]`,
				`a --> b`,
			},
		},
		{
			name: "Target And Timeout Annotations",
			steps: []domain.Step{
				{ID: "start", Type: domain.StepTypeInfo},
				{
					ID: "save-btn", Title: "Save", Type: domain.StepTypeAction,
					Target:  &domain.Target{Value: "#save"},
					Display: domain.DisplayOptions{ActionTimeout: 45 * time.Second},
				},
			},
			contains: []string{
				`save_btn[/"Save <br/> 🎯 #save <br/> ⏱️ 45s"/]`,
			},
		},
		{
			name: "Condition Escaping",
			steps: []domain.Step{
				{ID: "a", Type: domain.StepTypeInfo},
				{ID: "b", Type: domain.StepTypeInfo, Conditions: []domain.Condition{
					{Kind: domain.ConditionData, Key: "role", Op: domain.OpEq, Value: "admin", Description: `role is "admin"`},
				}},
			},
			contains: []string{
				`a -- "role is 'admin'" --> b`,
			},
		},
		{
			name: "Auto Advance",
			steps: []domain.Step{
				{ID: "a", Type: domain.StepTypeInfo, Display: domain.DisplayOptions{AutoAdvance: 2 * time.Second}},
				{ID: "b", Type: domain.StepTypeInfo},
			},
			contains: []string{
				`a -. "⏩ 2s" .-> b`,
			},
		},
		{
			name: "ID Sanitization",
			steps: []domain.Step{
				{ID: "path/to/step.one"},
				{ID: "hyphen-ated"},
			},
			contains: []string{
				`path_to_step_one(("path/to/step.one"))`,
				`hyphen_ated["hyphen-ated"]`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(domain.Guide{ID: "g", Steps: tt.steps}, nil)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() = \n%v\nWant substring: %v", got, want)
				}
			}
			if strings.Contains(got, "classDef") {
				t.Errorf("overlay styles rendered without an overlay")
			}
		})
	}
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	g := domain.Guide{ID: "g", Steps: []domain.Step{{ID: "a"}, {ID: "b"}, {ID: "c"}}}

	got := graph.GenerateMermaid(g, &graph.Overlay{
		VisitedSteps: []string{"a", "b", "a"},
		CurrentStep:  "c",
	})

	if n := strings.Count(got, "class a visited;"); n != 1 {
		t.Errorf("visited class for a rendered %d times, want 1", n)
	}
	for _, want := range []string{"classDef visited", "class b visited;", "class c current;"} {
		if !strings.Contains(got, want) {
			t.Errorf("GenerateMermaid() = \n%v\nWant substring: %v", got, want)
		}
	}
}
