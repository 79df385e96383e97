package dsl_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/wayfinder"
	"github.com/aretw0/wayfinder/pkg/adapters/memory"
	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/aretw0/wayfinder/pkg/dsl"
)

func intro() *dsl.Builder {
	b := dsl.New("intro").Name("Introduction").Description("First look").Version("2")

	b.Info("welcome").
		Title("Welcome").
		Content("Hello, DSL!").
		AutoAdvance(time.Second)

	b.Action("save", dsl.Selector("#save")).
		Title("Save").
		Timeout(45*time.Second).
		Events("click", "keydown").
		When(dsl.Exists(dsl.Attribute("save-button")), dsl.Optional(dsl.Truthy("user.pro")))

	b.Interactive("ask", func(ctx context.Context, ic domain.InteractiveContext) (any, error) {
		return "answer", nil
	}).Title("Ask").Labels("Go on", "Back")

	return b
}

func TestBuilder_SimpleFlow(t *testing.T) {
	// 1. Build the guide using the DSL
	g, err := intro().Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	// 2. Verify guide metadata
	if g.ID != "intro" || g.Name != "Introduction" || g.Description != "First look" || g.Version != "2" {
		t.Errorf("unexpected guide metadata: %+v", g)
	}
	if len(g.Steps) != 3 {
		t.Fatalf("Expected 3 steps, got %d", len(g.Steps))
	}

	// 3. Verify specific steps
	welcome := g.Steps[0]
	if welcome.Type != domain.StepTypeInfo || welcome.Content != "Hello, DSL!" {
		t.Errorf("unexpected welcome step: %+v", welcome)
	}
	if welcome.Display.AutoAdvance != time.Second {
		t.Errorf("Expected auto advance 1s, got %s", welcome.Display.AutoAdvance)
	}

	save := g.Steps[1]
	if save.Type != domain.StepTypeAction {
		t.Errorf("Expected action step, got %s", save.Type)
	}
	if save.Target == nil || *save.Target != dsl.Selector("#save") {
		t.Errorf("unexpected target: %v", save.Target)
	}
	if save.Display.ActionTimeout != 45*time.Second || len(save.Display.ActionEvents) != 2 {
		t.Errorf("unexpected display options: %+v", save.Display)
	}
	if len(save.Conditions) != 2 || !save.Conditions[1].Optional || save.Conditions[0].Optional {
		t.Errorf("unexpected conditions: %+v", save.Conditions)
	}

	ask := g.Steps[2]
	if ask.Run == nil || ask.Display.NextLabel != "Go on" || ask.Display.PrevLabel != "Back" {
		t.Errorf("unexpected interactive step: %+v", ask)
	}
}

func TestBuilder_StepIsReused(t *testing.T) {
	b := dsl.New("g").Name("G")
	b.Info("a").Title("First")
	b.Info("a").Content("more")

	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	if len(g.Steps) != 1 || g.Steps[0].Title != "First" || g.Steps[0].Content != "more" {
		t.Errorf("unexpected steps: %+v", g.Steps)
	}
}

func TestBuilder_Validation(t *testing.T) {
	tests := []struct {
		name  string
		build func() *dsl.Builder
	}{
		{"no steps", func() *dsl.Builder { return dsl.New("g").Name("G") }},
		{"no name", func() *dsl.Builder {
			b := dsl.New("g")
			b.Info("a").Title("A")
			return b
		}},
		{"missing title", func() *dsl.Builder {
			b := dsl.New("g").Name("G")
			b.Info("a")
			return b
		}},
		{"interactive without logic", func() *dsl.Builder {
			b := dsl.New("g").Name("G")
			b.Interactive("a", nil).Title("A")
			return b
		}},
		{"bad condition", func() *dsl.Builder {
			b := dsl.New("g").Name("G").Requires(dsl.Data("plan", "like", "pro"))
			b.Info("a").Title("A")
			return b
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build().Build()
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("Build() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestBuilder_MustBuildPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustBuild() did not panic on an invalid guide")
		}
	}()
	dsl.New("g").MustBuild()
}

func TestSet_LoadsIntoOrchestrator(t *testing.T) {
	ctx := context.Background()
	cfg := wayfinder.DefaultConfig()
	cfg.Animation.ReducedMotion = true

	o, err := wayfinder.New(memory.NewUI(), wayfinder.WithConfig(cfg))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer o.Close(ctx)

	second := dsl.New("second").Name("Second").Requires(dsl.Eq("plan", "pro"))
	second.Info("only").Title("Only")

	n, err := o.LoadGuides(ctx, dsl.Set{intro(), second})
	if err != nil {
		t.Fatalf("LoadGuides() failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("Expected 2 guides, got %d", n)
	}

	// The eligibility condition reads the run data.
	if started, err := o.StartGuide(ctx, "second"); err == nil || started {
		t.Fatalf("StartGuide() = %v, %v; want a precondition error", started, err)
	}
	o.SetData("plan", "pro")
	started, err := o.StartGuide(ctx, "second")
	if err != nil || !started {
		t.Fatalf("StartGuide() = %v, %v", started, err)
	}
	if err := o.NextStep(ctx); err != nil {
		t.Fatalf("NextStep() failed: %v", err)
	}
	if !o.State().CompletedGuides.Has("second") {
		t.Errorf("Expected second to be completed, state: %+v", o.State())
	}
}
