package domain

import "time"

// EventType identifies an event published on the bus.
type EventType string

// Public event surface.
const (
	EventGuideStarted   EventType = "guideStarted"
	EventGuidePaused    EventType = "guidePaused"
	EventGuideResumed   EventType = "guideResumed"
	EventStepExecuted   EventType = "stepExecuted"
	EventStepNavigated  EventType = "stepNavigated"
	EventStepCompleted  EventType = "stepCompleted"
	EventGuideCompleted EventType = "guideCompleted"
	EventGuideSkipped   EventType = "guideSkipped"
	EventGuideReset     EventType = "guideReset"
	EventError          EventType = "error"
	EventLog            EventType = "log"
)

// Component-level events.
const (
	EventStepExecuting      EventType = "stepExecuting"
	EventElementLocated     EventType = "elementLocated"
	EventLocatorFailed      EventType = "locatorFailed"
	EventAnimationStarted   EventType = "animationStarted"
	EventAnimationCompleted EventType = "animationCompleted"
	EventTrackerAutosave    EventType = "trackerAutosave"
)

// EventWildcard subscribes to every event type.
const EventWildcard EventType = "*"

// Event is the single payload type carried by the bus.
// Fields irrelevant to a given type are left zero.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	GuideID   string    `json:"guideId,omitempty"`
	StepID    string    `json:"stepId,omitempty"`
	StepIndex int       `json:"stepIndex"`
	From      int       `json:"from"`
	To        int       `json:"to"`
	Direction Direction `json:"direction,omitempty"`

	Message string         `json:"message,omitempty"`
	Err     error          `json:"-"`
	Context map[string]any `json:"context,omitempty"`
	Data    any            `json:"data,omitempty"`
}

// ErrorString returns the event error message, or empty.
func (e Event) ErrorString() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}
