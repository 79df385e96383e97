package wayfinder_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/aretw0/wayfinder"
	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runnerFixture struct {
	*fixture
	in   *io.PipeWriter
	out  *bytes.Buffer
	done chan error
}

func startRunner(t *testing.T, f *fixture, guideID string) *runnerFixture {
	t.Helper()
	pr, pw := io.Pipe()
	out := &bytes.Buffer{}
	r := wayfinder.NewRunner(pr, out)
	r.Headless = true
	r.Interact = f.ui.Interact

	rf := &runnerFixture{fixture: f, in: pw, out: out, done: make(chan error, 1)}
	go func() { rf.done <- r.Run(context.Background(), f.o, guideID) }()
	t.Cleanup(func() { _ = pw.Close() })
	return rf
}

// idleAt waits until the guide rests on step idx with no command in flight.
func (rf *runnerFixture) idleAt(t *testing.T, idx int) {
	t.Helper()
	require.Eventually(t, func() bool {
		st := rf.o.State()
		return st.IsActive && !st.IsPaused && st.CurrentStepIndex == idx && !rf.o.Busy()
	}, time.Second, 5*time.Millisecond)
}

func (rf *runnerFixture) send(t *testing.T, line string) {
	t.Helper()
	_, err := fmt.Fprintln(rf.in, line)
	require.NoError(t, err)
}

func (rf *runnerFixture) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-rf.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not return")
		return nil
	}
}

func TestRunner_PlaysToCompletion(t *testing.T) {
	f := newFixture(t, testConfig(), wayfinder.WithGuides(tour("intro")))
	rf := startRunner(t, f, "intro")

	rf.idleAt(t, 0)
	rf.send(t, "n")
	rf.idleAt(t, 1)
	rf.send(t, "next")
	rf.idleAt(t, 2)
	rf.send(t, "")

	require.NoError(t, rf.wait(t))
	assert.True(t, f.o.State().CompletedGuides.Has("intro"))
}

func TestRunner_ClickCompletesActionStep(t *testing.T) {
	f := newFixture(t, testConfig(), wayfinder.WithGuides(tour("act", actionStep("save", "save"), infoStep("after"))))
	rf := startRunner(t, f, "act")

	require.Eventually(t, func() bool { return f.ui.Waiting() == 1 }, time.Second, 5*time.Millisecond)
	rf.send(t, "c save")
	rf.idleAt(t, 0)
	assert.Len(t, f.rec.Events(domain.EventStepExecuted), 1)

	rf.send(t, "s")
	require.NoError(t, rf.wait(t))
	assert.True(t, f.o.State().SkippedGuides.Has("act"))
}

func TestRunner_QuitPauses(t *testing.T) {
	f := newFixture(t, testConfig(), wayfinder.WithGuides(tour("intro")))
	rf := startRunner(t, f, "intro")

	rf.idleAt(t, 0)
	rf.send(t, "q")
	require.NoError(t, rf.wait(t))

	st := f.o.State()
	assert.True(t, st.IsActive)
	assert.True(t, st.IsPaused)
	assert.Contains(t, rf.out.String(), "Bye!")
}

func TestRunner_EOFPausesAndResumeContinues(t *testing.T) {
	f := newFixture(t, testConfig(), wayfinder.WithGuides(tour("intro")))
	rf := startRunner(t, f, "intro")

	rf.idleAt(t, 0)
	rf.send(t, "j 2")
	rf.idleAt(t, 2)
	require.NoError(t, rf.in.Close())
	require.NoError(t, rf.wait(t))
	assert.True(t, f.o.State().IsPaused)

	// A second run resumes where the first left off.
	again := startRunner(t, f, "intro")
	again.idleAt(t, 2)
	assert.False(t, f.o.State().IsPaused)
	again.send(t, "n")
	require.NoError(t, again.wait(t))
	assert.True(t, f.o.State().CompletedGuides.Has("intro"))
}

func TestRunner_AlreadyCompleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testConfig(), wayfinder.WithGuides(tour("intro")))
	_, err := f.o.StartGuide(ctx, "intro")
	require.NoError(t, err)
	require.NoError(t, f.o.CompleteGuide(ctx))

	rf := startRunner(t, f, "intro")
	require.NoError(t, rf.wait(t))
	assert.Contains(t, rf.out.String(), "already completed")
}

func TestRunner_RequiresIO(t *testing.T) {
	f := newFixture(t, testConfig())
	assert.Error(t, (&wayfinder.Runner{}).Run(context.Background(), f.o, "x"))
}
