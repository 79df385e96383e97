/*
Package domain contains the core domain models of the Wayfinder guided-tour engine.

It defines the guide/step data model, the run state owned by the orchestrator, the
execution records kept by the tracker and the typed error taxonomy shared by every
component. This package is kept pure and free of external dependencies like I/O,
rendering or persistence, following Hexagonal Architecture principles.

# Key Entities

  - Guide: A registered, named sequence of Steps representing one complete walkthrough.
  - Step: One unit of a Guide (info, action, or interactive).
  - Target: A strategy-plus-value pair identifying which interface element a step refers to.
  - Element: The abstract handle of a resolved interface element (visibility, interactivity, bounds).
  - RunState: The orchestrator's active/paused/guide/step bookkeeping.
  - ExecutionRecord: The state-machine instance tracking one attempt to run a Step.
  - Event: The notification published on the event bus for every observable change.
*/
package domain
