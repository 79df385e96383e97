package domain

import "time"

// ExecutionStatus is the status of one ExecutionRecord.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionPaused    ExecutionStatus = "paused"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// Final reports whether the status ends a record.
func (s ExecutionStatus) Final() bool {
	return s == ExecutionCompleted || s == ExecutionFailed || s == ExecutionCancelled
}

// ExecutionRecord tracks one attempt to run a Step.
type ExecutionRecord struct {
	ID      string          `json:"id"`
	StepID  string          `json:"stepId"`
	Step    Step            `json:"step"`
	Context map[string]any  `json:"context,omitempty"`
	Status  ExecutionStatus `json:"status"`

	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime,omitempty"`
	// Duration excludes the time spent paused.
	Duration      time.Duration `json:"duration"`
	PauseDuration time.Duration `json:"pauseDuration"`
	PausedAt      time.Time     `json:"pausedAt,omitempty"`

	Progress     float64 `json:"progress"`
	ProgressData any     `json:"progressData,omitempty"`

	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	Err    error  `json:"-"`
}

// Clone copies the record and its context map.
func (r ExecutionRecord) Clone() ExecutionRecord {
	out := r
	if r.Context != nil {
		out.Context = make(map[string]any, len(r.Context))
		for k, v := range r.Context {
			out.Context[k] = v
		}
	}
	return out
}

// Direction tags a navigation move.
type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
	DirectionJump     Direction = "jump"
	DirectionFirst    Direction = "first"
	DirectionLast     Direction = "last"
)

// NavigationEntry is one move recorded by the navigator.
type NavigationEntry struct {
	From       int       `json:"fromStep"`
	To         int       `json:"toStep"`
	FromStepID string    `json:"fromStepId,omitempty"`
	ToStepID   string    `json:"toStepId"`
	Timestamp  time.Time `json:"timestamp"`
	Direction  Direction `json:"direction"`
}

// Metrics aggregates finalized execution records.
type Metrics struct {
	TotalExecutions int           `json:"totalExecutions"`
	Completed       int           `json:"completed"`
	Failed          int           `json:"failed"`
	Cancelled       int           `json:"cancelled"`
	TotalDuration   time.Duration `json:"totalDuration"`
	AverageDuration time.Duration `json:"averageDuration"`
	LastExecution   time.Time     `json:"lastExecution,omitempty"`
}

// Record folds a finalized record into the aggregate.
func (m *Metrics) Record(r ExecutionRecord) {
	m.TotalExecutions++
	switch r.Status {
	case ExecutionCompleted:
		m.Completed++
	case ExecutionFailed:
		m.Failed++
	case ExecutionCancelled:
		m.Cancelled++
	}
	m.TotalDuration += r.Duration
	m.AverageDuration = m.TotalDuration / time.Duration(m.TotalExecutions)
	m.LastExecution = r.EndTime
}

// StepStats are the Metrics of a single step id.
type StepStats struct {
	StepID string `json:"stepId"`
	Metrics
}

// ErrorEntry is one failure kept in the tracker's error history.
type ErrorEntry struct {
	ExecutionID string    `json:"executionId"`
	StepID      string    `json:"stepId"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

// Snapshot is a point-in-time copy of the tracker state.
type Snapshot struct {
	ID        string               `json:"id"`
	CreatedAt time.Time            `json:"createdAt"`
	History   []ExecutionRecord    `json:"history"`
	Stats     map[string]StepStats `json:"stats"`
	Errors    []ErrorEntry         `json:"errors"`
	Metrics   Metrics              `json:"metrics"`
}

// TrackedState is the full state the tracker hands to autosave.
type TrackedState struct {
	Current *ExecutionRecord     `json:"current,omitempty"`
	History []ExecutionRecord    `json:"history"`
	Stats   map[string]StepStats `json:"stats"`
	Errors  []ErrorEntry         `json:"errors"`
	Metrics Metrics              `json:"metrics"`
	SavedAt time.Time            `json:"savedAt"`
}

// StepResult is produced by a successful step execution.
type StepResult struct {
	StepID      string        `json:"stepId"`
	Type        StepType      `json:"type"`
	CompletedAt time.Time     `json:"completedAt"`
	Content     string        `json:"content,omitempty"`
	Data        any           `json:"data,omitempty"`
	Interaction *Interaction  `json:"interaction,omitempty"`
	AutoAdvance time.Duration `json:"autoAdvance,omitempty"`
	// Element is the resolved target, nil for steps without one.
	Element Element `json:"-"`
}
