package terminal_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/aretw0/wayfinder"
	"github.com/aretw0/wayfinder/internal/presentation/tui"
	"github.com/aretw0/wayfinder/pkg/adapters/memory"
	"github.com/aretw0/wayfinder/pkg/adapters/terminal"
	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func descriptor() domain.StepDescriptor {
	return domain.StepDescriptor{
		GuideID: "intro", StepID: "save", Index: 1, Total: 3,
		Title: "Save", Content: "Click **Save**.", Type: domain.StepTypeAction,
		Target:  &domain.Target{Strategy: domain.StrategySelector, Value: "#save"},
		Buttons: domain.Buttons{Previous: true, Close: true, PrevLabel: "Back", NextLabel: "Next"},
	}
}

func TestAdapter_Lifecycle(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer
	a := terminal.New(&out, terminal.WithPlainOutput())

	assert.Error(t, a.HighlightElement(ctx, descriptor()), "not initialized")

	require.NoError(t, a.Init(ctx, domain.VisualConfig{GuideID: "intro", GuideName: "Intro", TotalSteps: 3, ShowProgress: true}))
	assert.True(t, a.Active())
	require.NoError(t, a.HighlightElement(ctx, descriptor()))

	text := out.String()
	assert.Contains(t, text, "▶ Intro (3 steps)")
	assert.Contains(t, text, "[2/3] Save")
	assert.Contains(t, text, "Click **Save**.")
	assert.Contains(t, text, "→ #save")
	assert.Contains(t, text, "waiting for you to interact with #save")
	assert.Contains(t, text, "[p] Back  [s] Close")
	assert.NotContains(t, text, "[n]")
	assert.NotContains(t, text, "\x1b[", "plain output has no escape sequences")

	out.Reset()
	require.NoError(t, a.UpdateHighlight(ctx))
	assert.Contains(t, out.String(), "[2/3] Save")

	require.NoError(t, a.Destroy(ctx))
	assert.False(t, a.Active())
	assert.Contains(t, out.String(), "Intro closed")
	require.NoError(t, a.Destroy(ctx))
}

func TestAdapter_Trigger(t *testing.T) {
	ctx := context.Background()
	a := terminal.New(&bytes.Buffer{}, terminal.WithPlainOutput())

	calls := map[domain.Intent]int{}
	for _, in := range []domain.Intent{domain.IntentNext, domain.IntentPrev, domain.IntentClose} {
		a.On(in, func() { calls[in]++ })
	}
	assert.False(t, a.Trigger(domain.IntentOverlay))

	require.NoError(t, a.Init(ctx, domain.VisualConfig{GuideName: "Intro"}))
	require.NoError(t, a.HighlightElement(ctx, descriptor()))

	assert.False(t, a.Trigger(domain.IntentNext), "action steps offer no next control")
	assert.True(t, a.Trigger(domain.IntentPrev))
	assert.True(t, a.Trigger(domain.IntentClose))
	assert.Equal(t, map[domain.Intent]int{domain.IntentPrev: 1, domain.IntentClose: 1}, calls)
}

func TestAdapter_MarkdownRenderer(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer
	a := terminal.New(&out, terminal.WithProfile(termenv.Ascii), terminal.WithRenderer(tui.NewRenderer("notty", 60)))

	require.NoError(t, a.Init(ctx, domain.VisualConfig{GuideName: "Intro"}))
	d := descriptor()
	d.Content = "# Heading\n\nSome *emphasis* here."
	require.NoError(t, a.HighlightElement(ctx, d))

	assert.Contains(t, out.String(), "Heading")
	assert.Contains(t, out.String(), "emphasis")
}

func TestAdapter_DrivesOrchestrator(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer
	a := terminal.New(&out, terminal.WithPlainOutput())

	cfg := wayfinder.DefaultConfig()
	cfg.Animation.ReducedMotion = true
	o, err := wayfinder.New(memory.NewUI(), wayfinder.WithConfig(cfg), wayfinder.WithVisualAdapter(a), wayfinder.WithGuides(domain.Guide{
		ID: "intro", Name: "Intro",
		Steps: []domain.Step{
			{ID: "a", Title: "First", Type: domain.StepTypeInfo},
			{ID: "b", Title: "Second", Type: domain.StepTypeInfo},
		},
	}))
	require.NoError(t, err)
	defer o.Close(ctx)

	_, err = o.StartGuide(ctx, "intro")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "[1/2] First")
	assert.Contains(t, out.String(), "[n] Next")

	require.NoError(t, o.NextStep(ctx))
	assert.Contains(t, out.String(), "[2/2] Second")
	assert.Contains(t, out.String(), "[n] Done")

	require.NoError(t, o.NextStep(ctx))
	assert.False(t, a.Active())
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out.String()), "Intro closed"))
}
