/*
Package wayfinder is an orchestration engine for guided product tours: ordered
sequences of steps that point at elements of a host interface, explain them and
wait for the user to act.

The engine never renders anything. It resolves step targets through the host
(ports.ElementQuerier), drives highlight and transition effects through it
(ports.Effects), waits for user interactions (ports.InteractionWaiter), and hands
a description of every ready step to a visual adapter (ports.VisualAdapter),
which reports navigation intents back. Progress is persisted through any
ports.KeyValueStore.

# Concept

A Guide is a named list of Steps. An info step shows content and completes at
once (optionally advancing by itself after a delay), an action step completes
when the user interacts with its target, and an interactive step runs custom
logic registered by name. Guides and steps can be gated by conditions.

The Orchestrator keeps one run state per instance: which guide is active, on
which step, whether it is paused, and which guides were completed or skipped.
Every state change is published on an event bus.

# Usage

	ui := memory.NewUI(&memory.Element{Name: "save", Selector: "#save"})

	o, err := wayfinder.New(ui, wayfinder.WithStore(file.New(".wayfinder/state")))
	if err != nil {
		log.Fatal(err)
	}
	defer o.Close(ctx)

	err = o.RegisterGuide(domain.Guide{
		ID:   "intro",
		Name: "Introduction",
		Steps: []domain.Step{
			{ID: "hello", Title: "Welcome", Content: "Let's look around.", Type: domain.StepTypeInfo},
			{ID: "save", Title: "Save", Content: "Click save.", Type: domain.StepTypeAction,
				Target: &domain.Target{Strategy: domain.StrategySelector, Value: "#save"}},
		},
	})

	o.On(domain.EventGuideCompleted, func(ev domain.Event) {
		log.Printf("guide %s completed", ev.GuideID)
	})

	started, err := o.StartGuide(ctx, "intro")
	// ... o.NextStep(ctx), o.PauseGuide(ctx), o.ResumeGuide(ctx), o.SkipGuide(ctx)
*/
package wayfinder
