package wayfinder

import (
	"context"

	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/aretw0/wayfinder/pkg/executor"
)

// bindVisual translates adapter intents into commands.
func (o *Orchestrator) bindVisual() {
	if o.visual == nil {
		return
	}
	o.visual.On(domain.IntentNext, func() { o.dispatch(domain.IntentNext, o.NextStep) })
	o.visual.On(domain.IntentPrev, func() { o.dispatch(domain.IntentPrev, o.PreviousStep) })
	o.visual.On(domain.IntentClose, func() { o.dispatch(domain.IntentClose, o.SkipGuide) })
	o.visual.On(domain.IntentOverlay, func() {
		switch o.cfg.OverlayAction {
		case OverlayNext:
			o.dispatch(domain.IntentOverlay, o.NextStep)
		case OverlayClose:
			o.dispatch(domain.IntentOverlay, o.SkipGuide)
		}
	})
}

// dispatch runs cmd off the adapter's callback goroutine.
func (o *Orchestrator) dispatch(intent domain.Intent, cmd func(context.Context) error) {
	go func() {
		if err := cmd(context.Background()); err != nil {
			o.logger.Debug("intent rejected", "intent", intent, "err", err)
		}
	}()
}

func (o *Orchestrator) initVisual(ctx context.Context, g domain.Guide) {
	if o.visual == nil {
		return
	}
	err := o.visual.Init(ctx, domain.VisualConfig{
		GuideID:      g.ID,
		GuideName:    g.Name,
		TotalSteps:   len(g.Steps),
		AllowClose:   o.cfg.AllowClose,
		ShowProgress: o.cfg.ShowProgress,
	})
	if err != nil {
		o.logger.Warn("visual adapter init failed", "guide_id", g.ID, "err", err)
		return
	}
	o.mu.Lock()
	o.visualOn = true
	o.mu.Unlock()
}

func (o *Orchestrator) destroyVisual(ctx context.Context) {
	if o.visual == nil {
		return
	}
	o.mu.Lock()
	on := o.visualOn
	o.visualOn = false
	o.mu.Unlock()
	if !on {
		return
	}
	if err := o.visual.Destroy(context.WithoutCancel(ctx)); err != nil {
		o.logger.Warn("visual adapter destroy failed", "err", err)
	}
}

// stepReady presents a located step to the visual adapter before its body runs,
// so action steps are on screen while they wait.
func (o *Orchestrator) stepReady(ctx context.Context, step domain.Step, ec executor.ExecContext, el domain.Element) {
	if o.visual == nil {
		return
	}
	desc := o.describe(ec.GuideID, step, ec.Index, ec.Total)
	desc.Element = el
	if err := o.visual.HighlightElement(ctx, desc); err != nil {
		o.logger.Warn("visual adapter highlight failed", "step_id", step.ID, "err", err)
	}
}

// Refresh asks the visual adapter to reposition the current highlight,
// e.g. after the host layout changed.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	o.mu.Lock()
	on := o.visualOn
	o.mu.Unlock()
	if o.visual == nil || !on {
		return nil
	}
	return o.visual.UpdateHighlight(ctx)
}

// Descriptor describes the current step of the active guide.
func (o *Orchestrator) Descriptor() (domain.StepDescriptor, bool) {
	o.mu.Lock()
	guideID, active := o.state.CurrentGuideID, o.state.IsActive
	o.mu.Unlock()
	if !active || o.navigator.GuideID() != guideID {
		return domain.StepDescriptor{}, false
	}
	step, ok := o.navigator.Current()
	if !ok {
		return domain.StepDescriptor{}, false
	}
	desc := o.describe(guideID, step, o.navigator.CurrentIndex(), o.navigator.Len())
	if res, ok := o.executor.Result(step.ID); ok {
		desc.Element = res.Element
	}
	return desc, true
}

func (o *Orchestrator) describe(guideID string, step domain.Step, idx, total int) domain.StepDescriptor {
	g, _ := o.Guide(guideID)
	last := idx == total-1

	next := step.Display.NextLabel
	if next == "" {
		next = "Next"
		if last {
			next = "Done"
		}
	}
	prev := step.Display.PrevLabel
	if prev == "" {
		prev = "Back"
	}

	return domain.StepDescriptor{
		GuideID:   guideID,
		GuideName: g.Name,
		StepID:    step.ID,
		Index:     idx,
		Total:     total,
		Title:     step.Title,
		Content:   step.Content,
		Type:      step.Type,
		Target:    step.Target,
		Position:  step.Display.Position,
		Buttons: domain.Buttons{
			Previous:  o.navigator.CanGoBack(),
			Next:      step.Type != domain.StepTypeAction,
			Close:     o.cfg.AllowClose && o.cfg.Navigation.AllowSkip,
			NextLabel: next,
			PrevLabel: prev,
		},
	}
}
