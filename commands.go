package wayfinder

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/aretw0/wayfinder/pkg/executor"
)

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeSkipped
)

// StartGuide activates guide id, shows its first step and executes it.
//
// It fails when another guide is active or id is unknown, and returns false
// without touching the run state when id was already completed or skipped.
// If the first step fails the guide stays active and paused, and the step error
// is returned alongside true.
func (o *Orchestrator) StartGuide(ctx context.Context, id string) (bool, error) {
	op := "start guide " + id

	o.mu.Lock()
	if o.state.IsActive {
		err := &domain.StateError{Op: op, Reason: fmt.Sprintf("guide %q is already active", o.state.CurrentGuideID)}
		o.mu.Unlock()
		return false, o.fail(op, err)
	}
	g, ok := o.guides[id]
	if !ok {
		o.mu.Unlock()
		return false, o.fail(op, fmt.Errorf("%s: %w", op, domain.ErrGuideNotFound))
	}
	if o.state.CompletedGuides.Has(id) || o.state.SkippedGuides.Has(id) {
		o.mu.Unlock()
		o.logger.Debug("guide already finished, not starting", "guide_id", id)
		return false, nil
	}
	cctx, err := o.acquire(ctx, op)
	data := maps.Clone(o.data)
	o.mu.Unlock()
	if err != nil {
		return false, o.fail(op, err)
	}
	defer o.release()

	// 1. Guide eligibility
	if err := o.conditions.Check(cctx, fmt.Sprintf("guide %q", id), g.Conditions, data); err != nil {
		return false, o.fail(op, err)
	}

	// 2. Load the steps and enter the first one
	o.executor.Reset()
	o.navigator.Init(id, g.Steps)
	if _, err := o.navigator.First(cctx); err != nil {
		o.navigator.Reset()
		return false, o.fail(op, err)
	}

	o.mu.Lock()
	o.state.CurrentGuideID = id
	o.state.CurrentStepIndex = 0
	o.state.IsActive = true
	o.state.IsPaused = false
	o.pausedExec = ""
	o.mu.Unlock()

	o.initVisual(cctx, g)
	o.persist(cctx)
	o.emit(domain.Event{
		Type:      domain.EventGuideStarted,
		GuideID:   id,
		StepIndex: 0,
		Context:   map[string]any{"name": g.Name, "totalSteps": len(g.Steps)},
	})

	// 3. Execute it
	return true, o.runStep(cctx, false)
}

// NextStep advances to the next step and executes it. On the last step it
// completes the guide instead.
func (o *Orchestrator) NextStep(ctx context.Context) error {
	op := "go to next step"
	cctx, err := o.begin(ctx, op)
	if err != nil {
		return o.fail(op, err)
	}
	defer o.release()

	if !o.navigator.CanGoForward() {
		return o.finish(cctx, outcomeCompleted)
	}

	left, _ := o.navigator.Current()
	leftIdx := o.navigator.CurrentIndex()
	if _, err := o.navigator.Next(cctx); err != nil {
		return o.fail(op, err)
	}
	o.emit(domain.Event{Type: domain.EventStepCompleted, GuideID: o.navigator.GuideID(), StepID: left.ID, StepIndex: leftIdx})

	o.moved(cctx)
	return o.runStep(cctx, false)
}

// PreviousStep moves back one step and executes it.
func (o *Orchestrator) PreviousStep(ctx context.Context) error {
	op := "go to previous step"
	cctx, err := o.begin(ctx, op)
	if err != nil {
		return o.fail(op, err)
	}
	defer o.release()

	if _, err := o.navigator.Previous(cctx); err != nil {
		return o.fail(op, err)
	}
	o.moved(cctx)
	return o.runStep(cctx, false)
}

// JumpToStep moves to step index i and executes it.
func (o *Orchestrator) JumpToStep(ctx context.Context, i int) error {
	op := fmt.Sprintf("jump to step %d", i)
	cctx, err := o.begin(ctx, op)
	if err != nil {
		return o.fail(op, err)
	}
	defer o.release()

	if _, err := o.navigator.NavigateToStep(cctx, i, domain.DirectionJump); err != nil {
		return o.fail(op, err)
	}
	o.moved(cctx)
	return o.runStep(cctx, false)
}

// PauseGuide pauses the active guide, interrupting a step that is still
// executing. The step index is kept. Called from an event handler of the
// running command, it takes effect as that command returns.
func (o *Orchestrator) PauseGuide(ctx context.Context) error {
	op := "pause guide"

	o.mu.Lock()
	if !o.state.IsActive {
		o.mu.Unlock()
		return o.fail(op, &domain.StateError{Op: op, Reason: "no active guide"})
	}
	if o.state.IsPaused {
		o.mu.Unlock()
		return o.fail(op, &domain.StateError{Op: op, Reason: "guide is already paused"})
	}
	o.state.IsPaused = true
	guideID, idx := o.state.CurrentGuideID, o.state.CurrentStepIndex
	o.mu.Unlock()

	pause := func(ctx context.Context) {
		o.mu.Lock()
		still := o.state.IsActive && o.state.IsPaused && o.state.CurrentGuideID == guideID
		o.mu.Unlock()
		if !still {
			return
		}
		o.animator.Pause()
		o.executor.ClearHighlight()
		o.destroyVisual(ctx)
		o.persist(ctx)
		o.emit(domain.Event{Type: domain.EventGuidePaused, GuideID: guideID, StepIndex: idx})
	}

	o.stopAdvance()
	if o.interrupt(interruptPause, pause) {
		return nil
	}
	pause(ctx)
	return nil
}

// ResumeGuide resumes a paused guide by executing its current step again from
// the start. Side effects of that step may repeat.
func (o *Orchestrator) ResumeGuide(ctx context.Context) error {
	op := "resume guide"

	o.mu.Lock()
	if !o.state.IsActive {
		o.mu.Unlock()
		return o.fail(op, &domain.StateError{Op: op, Reason: "no active guide"})
	}
	if !o.state.IsPaused {
		o.mu.Unlock()
		return o.fail(op, &domain.StateError{Op: op, Reason: "guide is not paused"})
	}
	cctx, err := o.acquire(ctx, op)
	if err != nil {
		o.mu.Unlock()
		return o.fail(op, err)
	}
	o.state.IsPaused = false
	guideID, idx := o.state.CurrentGuideID, o.state.CurrentStepIndex
	g := o.guides[guideID]
	o.mu.Unlock()
	defer o.release()

	if err := o.ensureNavigator(cctx, guideID, idx); err != nil {
		o.mu.Lock()
		o.state.IsPaused = true
		o.mu.Unlock()
		return o.fail(op, err)
	}

	o.animator.Resume()
	o.initVisual(cctx, g)
	o.persist(cctx)
	o.emit(domain.Event{Type: domain.EventGuideResumed, GuideID: guideID, StepIndex: idx})

	return o.runStep(cctx, true)
}

// CompleteGuide marks the active guide completed and deactivates it.
func (o *Orchestrator) CompleteGuide(ctx context.Context) error {
	return o.terminate(ctx, "complete guide", outcomeCompleted)
}

// SkipGuide marks the active guide skipped and deactivates it. Like
// PauseGuide it may be called from an event handler, e.g. on an error event.
func (o *Orchestrator) SkipGuide(ctx context.Context) error {
	if !o.cfg.Navigation.AllowSkip {
		op := "skip guide"
		return o.fail(op, &domain.StateError{Op: op, Reason: "skipping is disabled"})
	}
	return o.terminate(ctx, "skip guide", outcomeSkipped)
}

func (o *Orchestrator) terminate(ctx context.Context, op string, out outcome) error {
	o.mu.Lock()
	active := o.state.IsActive
	o.mu.Unlock()
	if !active {
		return o.fail(op, &domain.StateError{Op: op, Reason: "no active guide"})
	}

	o.stopAdvance()
	queued := o.interrupt(interruptStop, func(ctx context.Context) {
		o.mu.Lock()
		active := o.state.IsActive
		o.mu.Unlock()
		if active {
			_ = o.finish(ctx, out)
		}
	})
	if queued {
		return nil
	}

	o.mu.Lock()
	if !o.state.IsActive {
		o.mu.Unlock()
		return o.fail(op, &domain.StateError{Op: op, Reason: "no active guide"})
	}
	cctx, err := o.acquire(ctx, op)
	o.mu.Unlock()
	if err != nil {
		return o.fail(op, err)
	}
	defer o.release()

	return o.finish(cctx, out)
}

// finish ends the active guide with out. Callers hold the command slot.
func (o *Orchestrator) finish(ctx context.Context, out outcome) error {
	o.mu.Lock()
	guideID, idx := o.state.CurrentGuideID, o.state.CurrentStepIndex
	o.mu.Unlock()

	current, hasStep := o.navigator.Current()
	loaded := o.navigator.GuideID() == guideID
	o.abandonExecution("guide finished")
	o.executor.Reset()

	o.mu.Lock()
	switch out {
	case outcomeCompleted:
		o.state.CompletedGuides.Add(guideID)
		o.state.SkippedGuides.Remove(guideID)
	case outcomeSkipped:
		o.state.SkippedGuides.Add(guideID)
	}
	o.state.Deactivate()
	o.pausedExec = ""
	o.mu.Unlock()

	switch out {
	case outcomeCompleted:
		o.navigator.Reset()
		if hasStep {
			o.emit(domain.Event{Type: domain.EventStepCompleted, GuideID: guideID, StepID: current.ID, StepIndex: idx})
		}
	case outcomeSkipped:
		if !loaded || o.navigator.SkipGuide() != nil {
			o.navigator.Reset()
			o.emit(domain.Event{Type: domain.EventGuideSkipped, GuideID: guideID, StepIndex: idx})
		}
	}

	o.animator.Resume()
	o.destroyVisual(ctx)
	o.persist(ctx)

	if out == outcomeCompleted {
		o.emit(domain.Event{Type: domain.EventGuideCompleted, GuideID: guideID, StepIndex: idx})
	}
	return nil
}

// ResetGuide forgets that guide id was completed or skipped. Resetting the
// active guide tears the step engine down and deactivates it.
func (o *Orchestrator) ResetGuide(ctx context.Context, id string) error {
	op := "reset guide " + id

	o.mu.Lock()
	_, known := o.guides[id]
	known = known || o.state.CompletedGuides.Has(id) || o.state.SkippedGuides.Has(id)
	active := o.state.IsActive && o.state.CurrentGuideID == id
	o.mu.Unlock()
	if !known {
		return o.fail(op, fmt.Errorf("%s: %w", op, domain.ErrGuideNotFound))
	}

	reset := func(ctx context.Context) {
		o.mu.Lock()
		current := o.state.IsActive && o.state.CurrentGuideID == id
		o.mu.Unlock()
		if current {
			o.teardown(ctx)
		}

		o.mu.Lock()
		o.state.CompletedGuides.Remove(id)
		o.state.SkippedGuides.Remove(id)
		if current {
			o.state.Deactivate()
		}
		o.mu.Unlock()

		o.persist(ctx)
		o.emit(domain.Event{Type: domain.EventGuideReset, GuideID: id})
	}

	if active {
		o.stopAdvance()
		if o.interrupt(interruptStop, reset) {
			return nil
		}
		o.mu.Lock()
		cctx, err := o.acquire(ctx, op)
		o.mu.Unlock()
		if err != nil {
			return o.fail(op, err)
		}
		defer o.release()
		ctx = cctx
	}

	reset(ctx)
	return nil
}

// ResetAll discards the whole run state and every execution record.
func (o *Orchestrator) ResetAll(ctx context.Context) error {
	op := "reset all guides"

	reset := func(ctx context.Context) {
		o.teardown(ctx)
		o.tracker.Reset()

		now := o.now()
		o.mu.Lock()
		o.state = domain.NewRunState()
		o.lastReset = &now
		o.mu.Unlock()

		o.persist(ctx)
		o.saveTracked(domain.Event{Data: o.tracker.State()})
		o.emit(domain.Event{Type: domain.EventGuideReset, StepIndex: domain.NoStep, Context: map[string]any{"all": true}})
	}

	o.stopAdvance()
	if o.interrupt(interruptStop, reset) {
		return nil
	}
	o.mu.Lock()
	cctx, err := o.acquire(ctx, op)
	o.mu.Unlock()
	if err != nil {
		return o.fail(op, err)
	}
	defer o.release()

	reset(cctx)
	return nil
}

// begin takes the command slot for a navigation command.
func (o *Orchestrator) begin(ctx context.Context, op string) (context.Context, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.state.IsActive {
		return nil, &domain.StateError{Op: op, Reason: "no active guide"}
	}
	if o.state.IsPaused {
		return nil, &domain.StateError{Op: op, Reason: "guide is paused"}
	}
	return o.acquire(ctx, op)
}

// moved syncs the run state with the navigator cursor and persists it.
func (o *Orchestrator) moved(ctx context.Context) {
	o.mu.Lock()
	o.state.CurrentStepIndex = o.navigator.CurrentIndex()
	o.pausedExec = ""
	o.mu.Unlock()
	o.persist(ctx)
}

// ensureNavigator reloads the navigator for a run restored from storage.
func (o *Orchestrator) ensureNavigator(ctx context.Context, guideID string, idx int) error {
	if o.navigator.GuideID() == guideID && o.navigator.CurrentIndex() == idx {
		return nil
	}
	g, ok := o.Guide(guideID)
	if !ok {
		return fmt.Errorf("restore guide %q: %w", guideID, domain.ErrGuideNotFound)
	}
	o.executor.Reset()
	o.navigator.Init(guideID, g.Steps)
	if _, err := o.navigator.NavigateToStep(ctx, idx, domain.DirectionJump); err != nil {
		o.navigator.Reset()
		return err
	}
	return nil
}

// teardown stops the step engine for the active guide. Callers hold the command slot.
func (o *Orchestrator) teardown(ctx context.Context) {
	o.abandonExecution("guide reset")
	o.executor.Reset()
	o.navigator.Reset()
	o.animator.Resume()
	o.destroyVisual(ctx)
	o.mu.Lock()
	o.pausedExec = ""
	o.mu.Unlock()
}

// abandonExecution cancels the open execution record, if any.
func (o *Orchestrator) abandonExecution(reason string) {
	if cur, ok := o.tracker.Current(); ok {
		if err := o.tracker.CancelStepExecution(cur.ID, reason); err != nil {
			o.logger.Debug("failed to cancel execution", "execution_id", cur.ID, "err", err)
		}
	}
}

// runStep executes the step under the cursor. Callers hold the command slot.
func (o *Orchestrator) runStep(ctx context.Context, resumed bool) error {
	step, ok := o.navigator.Current()
	if !ok {
		return &domain.StateError{Op: "execute step", Reason: "no current step"}
	}
	idx, total := o.navigator.CurrentIndex(), o.navigator.Len()

	var prev *domain.Step
	if h := o.navigator.History(); !resumed && len(h) > 0 && h[len(h)-1].From >= 0 {
		if p, ok := o.navigator.Step(h[len(h)-1].From); ok {
			prev = &p
		}
	}

	o.mu.Lock()
	guideID := o.state.CurrentGuideID
	resumeID := o.pausedExec
	o.pausedExec = ""
	data := maps.Clone(o.data)
	o.mu.Unlock()

	// 1. Open (or reopen) the execution record
	execID := ""
	if resumed && resumeID != "" && o.tracker.ResumeStepExecution(resumeID) == nil {
		execID = resumeID
	} else {
		o.abandonExecution("superseded")
		id, err := o.tracker.StartStepExecution(step, map[string]any{"guideId": guideID, "stepIndex": idx})
		if err != nil {
			return o.fail("execute step "+step.ID, err)
		}
		execID = id
	}

	// 2. Execute
	res, err := o.executor.Execute(ctx, step, executor.ExecContext{
		GuideID:  guideID,
		Index:    idx,
		Total:    total,
		Previous: prev,
		Data:     data,
	})
	if err == nil {
		if cerr := o.tracker.CompleteStepExecution(execID, res); cerr != nil {
			o.logger.Debug("failed to complete execution", "execution_id", execID, "err", cerr)
		}
		o.emit(domain.Event{Type: domain.EventStepExecuted, GuideID: guideID, StepID: step.ID, StepIndex: idx, Data: res})

		o.mu.Lock()
		running := o.state.IsActive && !o.state.IsPaused
		o.mu.Unlock()
		if running {
			o.scheduleAfter(guideID, step, idx, res)
		}
		return nil
	}

	// 3. Interrupted by another command
	o.mu.Lock()
	kind := interruptNone
	if o.busy != nil {
		kind = o.busy.interrupt
	}
	o.mu.Unlock()
	switch kind {
	case interruptPause:
		if perr := o.tracker.PauseStepExecution(execID); perr == nil {
			o.mu.Lock()
			o.pausedExec = execID
			o.mu.Unlock()
		}
		return nil
	case interruptStop:
		_ = o.tracker.CancelStepExecution(execID, "interrupted")
		return nil
	}

	// 4. Failed: the run stays active and paused so the step can be retried
	if errors.Is(err, context.Canceled) {
		_ = o.tracker.CancelStepExecution(execID, "context cancelled")
	} else {
		_ = o.tracker.FailStepExecution(execID, err)
	}
	o.mu.Lock()
	o.state.IsPaused = true
	o.mu.Unlock()
	o.executor.ClearHighlight()
	o.destroyVisual(ctx)
	o.persist(ctx)
	o.emit(domain.Event{Type: domain.EventGuidePaused, GuideID: guideID, StepID: step.ID, StepIndex: idx, Err: err, Context: map[string]any{"reason": "error"}})
	return err
}

// scheduleAfter arranges the automatic advance of the step just executed.
func (o *Orchestrator) scheduleAfter(guideID string, step domain.Step, idx int, res *domain.StepResult) {
	switch {
	case res.AutoAdvance > 0:
		o.scheduleAdvance(guideID, idx, res.AutoAdvance)
	case step.Type == domain.StepTypeAction && o.cfg.AdvanceOnAction:
		o.scheduleAdvance(guideID, idx, 0)
	}
}

func (o *Orchestrator) scheduleAdvance(guideID string, idx int, delay time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.advance != nil {
		o.advance.Stop()
	}
	o.advanceGen++
	gen := o.advanceGen
	o.advance = time.AfterFunc(delay, func() { o.autoAdvance(gen, guideID, idx) })
}

// autoAdvance runs NextStep once the scheduling command has returned, provided
// nothing moved the run in between.
func (o *Orchestrator) autoAdvance(gen uint64, guideID string, idx int) {
	o.mu.Lock()
	c := o.busy
	o.mu.Unlock()
	if c != nil {
		<-c.done
	}

	o.mu.Lock()
	valid := o.advanceGen == gen && o.busy == nil &&
		o.state.IsActive && !o.state.IsPaused &&
		o.state.CurrentGuideID == guideID && o.state.CurrentStepIndex == idx
	if valid {
		o.advance = nil
	}
	o.mu.Unlock()
	if !valid {
		return
	}
	if err := o.NextStep(context.Background()); err != nil {
		o.logger.Debug("auto-advance failed", "guide_id", guideID, "step_index", idx, "err", err)
	}
}

func (o *Orchestrator) stopAdvance() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancelAdvance()
}
