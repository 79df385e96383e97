package domain

import (
	"sort"
	"time"
)

// NoStep is the cursor value while no guide is active.
const NoStep = -1

// IDSet is an unordered set of guide ids.
type IDSet map[string]struct{}

// NewIDSet builds a set from ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IDSet) Add(id string)    { s[id] = struct{}{} }
func (s IDSet) Remove(id string) { delete(s, id) }

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Slice returns the ids sorted, so serialized state is stable.
func (s IDSet) Slice() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Clone copies the set.
func (s IDSet) Clone() IDSet {
	out := make(IDSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// RunState is the orchestrator-level progress of one instance.
type RunState struct {
	// CurrentGuideID is empty when no guide is active.
	CurrentGuideID string
	// CurrentStepIndex is NoStep when inactive.
	CurrentStepIndex int
	IsActive         bool
	IsPaused         bool
	CompletedGuides  IDSet
	SkippedGuides    IDSet
}

// NewRunState creates an inactive state with empty sets.
func NewRunState() RunState {
	return RunState{
		CurrentStepIndex: NoStep,
		CompletedGuides:  IDSet{},
		SkippedGuides:    IDSet{},
	}
}

// Clone returns a deep copy.
func (s RunState) Clone() RunState {
	out := s
	out.CompletedGuides = s.CompletedGuides.Clone()
	out.SkippedGuides = s.SkippedGuides.Clone()
	return out
}

// Deactivate clears the cursor and the active guide, keeping the sets.
func (s *RunState) Deactivate() {
	s.CurrentGuideID = ""
	s.CurrentStepIndex = NoStep
	s.IsActive = false
	s.IsPaused = false
}

// PersistedState is the serialized form of RunState.
type PersistedState struct {
	CompletedGuides []string   `json:"completedGuides"`
	SkippedGuides   []string   `json:"skippedGuides"`
	CurrentGuide    *string    `json:"currentGuide"`
	CurrentStep     int        `json:"currentStep"`
	IsActive        bool       `json:"isActive"`
	IsPaused        bool       `json:"isPaused"`
	LastResetTime   *time.Time `json:"last_reset_time,omitempty"`
}

// Persisted converts the run state to its serialized form.
func (s RunState) Persisted() PersistedState {
	p := PersistedState{
		CompletedGuides: s.CompletedGuides.Slice(),
		SkippedGuides:   s.SkippedGuides.Slice(),
		CurrentStep:     s.CurrentStepIndex,
		IsActive:        s.IsActive,
		IsPaused:        s.IsPaused,
	}
	if s.CurrentGuideID != "" {
		id := s.CurrentGuideID
		p.CurrentGuide = &id
	}
	return p
}

// RunState rebuilds the in-memory state. Sets are reconstructed and an
// inconsistent cursor is normalized to the inactive sentinel.
func (p PersistedState) RunState() RunState {
	s := NewRunState()
	s.CompletedGuides = NewIDSet(p.CompletedGuides...)
	s.SkippedGuides = NewIDSet(p.SkippedGuides...)
	// A guide cannot be both; completion wins.
	for id := range s.CompletedGuides {
		s.SkippedGuides.Remove(id)
	}
	if p.IsActive && p.CurrentGuide != nil && *p.CurrentGuide != "" && p.CurrentStep >= 0 {
		s.CurrentGuideID = *p.CurrentGuide
		s.CurrentStepIndex = p.CurrentStep
		s.IsActive = true
		s.IsPaused = p.IsPaused
	}
	return s
}
