package domain

// Intent is a navigation request originating from the visual adapter.
type Intent string

const (
	IntentNext    Intent = "nextClick"
	IntentPrev    Intent = "prevClick"
	IntentClose   Intent = "closeClick"
	IntentOverlay Intent = "overlayClick"
)

// Buttons describes which controls the visual adapter should offer.
type Buttons struct {
	Previous  bool   `json:"previous"`
	Next      bool   `json:"next"`
	Close     bool   `json:"close"`
	NextLabel string `json:"nextLabel"`
	PrevLabel string `json:"prevLabel"`
}

// StepDescriptor is everything a visual adapter needs to present a step.
type StepDescriptor struct {
	GuideID   string   `json:"guideId"`
	GuideName string   `json:"guideName"`
	StepID    string   `json:"stepId"`
	Index     int      `json:"index"`
	Total     int      `json:"total"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Type      StepType `json:"type"`
	Target    *Target  `json:"target,omitempty"`
	Element   Element  `json:"-"`
	Position  string   `json:"position,omitempty"`
	Buttons   Buttons  `json:"buttons"`
}

// VisualConfig is handed to the visual adapter on activation.
type VisualConfig struct {
	GuideID      string `json:"guideId"`
	GuideName    string `json:"guideName"`
	TotalSteps   int    `json:"totalSteps"`
	AllowClose   bool   `json:"allowClose"`
	ShowProgress bool   `json:"showProgress"`
}
