/*
Package dsl provides a Go DSL for building Wayfinder guides in code.

It is the programmatic counterpart of guide files: the same guides can be defined
with a type-safe, fluent builder instead of YAML or JSON, which is handy for guides
computed at runtime, for tests, and for hooks and predicates written as closures.

Example usage:

	b := dsl.New("intro").Name("Introduction")

	b.Info("welcome").
		Title("Welcome").
		Content("Let's take a quick tour.").
		AutoAdvance(2 * time.Second)

	b.Action("save", dsl.Selector("#save")).
		Title("Save your work").
		Content("Click **Save** to keep your changes.").
		When(dsl.Exists(dsl.Attribute("save-button")))

	b.Info("done").Title("All set")

	guide, err := b.Build()
	// ... pass guide to Orchestrator.RegisterGuide, or b itself to LoadGuides.
*/
package dsl
