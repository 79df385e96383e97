package navigator_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/aretw0/wayfinder/pkg/event"
	"github.com/aretw0/wayfinder/pkg/navigator"
	"github.com/aretw0/wayfinder/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func steps(n int) []domain.Step {
	out := make([]domain.Step, n)
	for i := range out {
		id := fmt.Sprintf("s%d", i+1)
		out[i] = domain.Step{ID: id, Title: id, Type: domain.StepTypeInfo}
	}
	return out
}

func TestNavigateRequiresGuide(t *testing.T) {
	n := navigator.New()
	_, err := n.Next(context.Background())
	assert.ErrorIs(t, err, domain.ErrState)
	_, err = n.NavigateToStep(context.Background(), 0, domain.DirectionJump)
	assert.ErrorIs(t, err, domain.ErrState)
}

func TestNavigation(t *testing.T) {
	bus := event.NewBus()
	rec := event.Record(bus)
	n := navigator.New(navigator.WithEmitter(bus))
	n.Init("tour", steps(3))
	ctx := context.Background()

	s, err := n.First(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s1", s.ID)
	assert.Empty(t, rec.Events(), "entering the first step is not a move")

	s, err = n.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s2", s.ID)

	s, err = n.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s3", s.ID)
	assert.False(t, n.CanGoForward())

	_, err = n.Next(ctx)
	assert.ErrorIs(t, err, domain.ErrState)

	s, err = n.Previous(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s2", s.ID)
	assert.True(t, n.CanGoBack())

	evs := rec.Events(domain.EventStepNavigated)
	require.Len(t, evs, 3)
	assert.Equal(t, 0, evs[0].From)
	assert.Equal(t, 1, evs[0].To)
	assert.Equal(t, domain.DirectionForward, evs[0].Direction)
	assert.Equal(t, domain.DirectionLast, evs[1].Direction)
	assert.Equal(t, domain.DirectionBackward, evs[2].Direction)
	assert.Equal(t, "tour", evs[2].GuideID)

	h := n.History()
	require.Len(t, h, 4)
	assert.Equal(t, domain.NoStep, h[0].From)
	assert.Equal(t, "s3", h[3].FromStepID)
	assert.Equal(t, "s2", h[3].ToStepID)
}

func TestNavigateOutOfRange(t *testing.T) {
	n := navigator.New()
	n.Init("tour", steps(2))
	for _, i := range []int{-1, 2} {
		_, err := n.NavigateToStep(context.Background(), i, domain.DirectionJump)
		assert.ErrorIs(t, err, domain.ErrValidation, "index %d", i)
	}
	assert.Equal(t, domain.NoStep, n.CurrentIndex())
}

func TestBackNavigationDisabled(t *testing.T) {
	cfg := navigator.DefaultConfig()
	cfg.AllowBack = false
	n := navigator.New(navigator.WithConfig(cfg))
	n.Init("tour", steps(3))
	ctx := context.Background()

	_, err := n.Previous(ctx)
	assert.ErrorIs(t, err, domain.ErrState, "rejected before any step is shown")

	_, err = n.NavigateToStep(ctx, 2, domain.DirectionJump)
	require.NoError(t, err)

	_, err = n.Previous(ctx)
	assert.ErrorIs(t, err, domain.ErrState)
	_, err = n.NavigateToStep(ctx, 0, domain.DirectionJump)
	assert.ErrorIs(t, err, domain.ErrState, "backward jumps are moves back too")
	assert.False(t, n.CanGoBack())
	assert.Equal(t, 2, n.CurrentIndex())
}

func TestHistoryEvictsOldestFirst(t *testing.T) {
	cfg := navigator.DefaultConfig()
	cfg.MaxHistorySize = 3
	n := navigator.New(navigator.WithConfig(cfg))
	n.Init("tour", steps(2))
	ctx := context.Background()

	_, err := n.First(ctx)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		if i%2 == 0 {
			_, err = n.Next(ctx)
		} else {
			_, err = n.Previous(ctx)
		}
		require.NoError(t, err)
		assert.LessOrEqual(t, len(n.History()), 3)
	}

	h := n.History()
	require.Len(t, h, 3)
	// 6 entries were appended: first, then five alternating moves. The last three survive.
	assert.Equal(t, []int{1, 0, 1}, []int{h[0].To, h[1].To, h[2].To})
	assert.Equal(t, domain.DirectionBackward, h[1].Direction)
}

func TestHistoryUsesClock(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	n := navigator.New(navigator.WithClock(func() time.Time { return at }))
	n.Init("tour", steps(2))
	ctx := context.Background()

	_, err := n.First(ctx)
	require.NoError(t, err)
	at = at.Add(time.Minute)
	_, err = n.Next(ctx)
	require.NoError(t, err)

	h := n.History()
	require.Len(t, h, 2)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), h[0].Timestamp)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 5, 5, 0, time.UTC), h[1].Timestamp)
}

func TestHooks(t *testing.T) {
	var calls []string
	record := func(name string) domain.HookFunc {
		return func(_ context.Context, hc domain.HookContext) error {
			calls = append(calls, fmt.Sprintf("%s:%s", name, hc.Step.ID))
			return nil
		}
	}

	reg := registry.NewRegistry()
	reg.RegisterHook("track", record("named-enter"))

	s := steps(2)
	s[0].Hooks.OnLeave = record("leave")
	s[1].Hooks.OnEnterName = "track"
	s[1].Hooks.OnEnterComplete = record("complete")

	n := navigator.New(navigator.WithHooks(reg))
	n.Init("tour", s)
	ctx := context.Background()

	_, err := n.First(ctx)
	require.NoError(t, err)
	_, err = n.Next(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"leave:s1", "named-enter:s2", "complete:s2"}, calls)
}

func TestHookErrors(t *testing.T) {
	veto := errors.New("not yet")
	s := steps(3)
	s[1].Hooks.OnEnter = func(context.Context, domain.HookContext) error { return veto }
	s[2].Hooks.OnEnterComplete = func(context.Context, domain.HookContext) error { return errors.New("ignored") }

	bus := event.NewBus()
	rec := event.Record(bus)
	n := navigator.New(navigator.WithEmitter(bus))
	n.Init("tour", s)
	ctx := context.Background()

	_, err := n.First(ctx)
	require.NoError(t, err)

	_, err = n.Next(ctx)
	require.ErrorIs(t, err, veto)
	assert.Equal(t, 0, n.CurrentIndex())
	assert.Empty(t, rec.Events(domain.EventStepNavigated))
	assert.False(t, n.Navigating())

	got, err := n.NavigateToStep(ctx, 2, domain.DirectionJump)
	require.NoError(t, err, "onEnterComplete failures do not abort")
	assert.Equal(t, "s3", got.ID)
}

func TestConcurrentNavigationRejected(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	s := steps(2)
	s[0].Hooks.OnEnter = func(context.Context, domain.HookContext) error {
		close(entered)
		<-release
		return nil
	}

	n := navigator.New()
	n.Init("tour", s)

	done := make(chan error, 1)
	go func() {
		_, err := n.First(context.Background())
		done <- err
	}()
	<-entered

	assert.True(t, n.Navigating())
	_, err := n.NavigateToStep(context.Background(), 1, domain.DirectionJump)
	assert.ErrorIs(t, err, domain.ErrState)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 0, n.CurrentIndex())
}

func TestSkipGuide(t *testing.T) {
	bus := event.NewBus()
	rec := event.Record(bus)
	n := navigator.New(navigator.WithEmitter(bus))
	n.Init("tour", steps(2))
	_, err := n.First(context.Background())
	require.NoError(t, err)

	require.NoError(t, n.SkipGuide())
	assert.Equal(t, "", n.GuideID())
	assert.Equal(t, domain.NoStep, n.CurrentIndex())
	assert.Empty(t, n.History())
	assert.Equal(t, 0, n.Len())

	evs := rec.Events(domain.EventGuideSkipped)
	require.Len(t, evs, 1)
	assert.Equal(t, "tour", evs[0].GuideID)

	assert.ErrorIs(t, n.SkipGuide(), domain.ErrState)
}

func TestSkipDisabled(t *testing.T) {
	cfg := navigator.DefaultConfig()
	cfg.AllowSkip = false
	n := navigator.New(navigator.WithConfig(cfg))
	n.Init("tour", steps(1))
	assert.ErrorIs(t, n.SkipGuide(), domain.ErrState)
	assert.Equal(t, "tour", n.GuideID())
}
