package domain

import "time"

// Rect is an element's bounding box in host coordinates.
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Intersects reports whether r and o overlap. A zero-size rect intersects
// when its origin lies inside the other.
func (r Rect) Intersects(o Rect) bool {
	return overlaps(r.X, r.Width, o.X, o.Width) && overlaps(r.Y, r.Height, o.Y, o.Height)
}

// overlaps reports whether the spans [a, a+al) and [b, b+bl) share a point.
func overlaps(a, al, b, bl float64) bool {
	switch {
	case al == 0 && bl == 0:
		return a == b
	case al == 0:
		return a >= b && a < b+bl
	case bl == 0:
		return b >= a && b < a+al
	}
	return a < b+bl && b < a+al
}

// Element is an abstract handle to a host interface element.
type Element interface {
	ID() string
	// IsVisible is false when hidden by styling.
	IsVisible() bool
	// IsInteractive is false when disabled or pointer-transparent.
	IsInteractive() bool
	Bounds() Rect
}

// OpacityReporter is implemented by elements that expose their effective opacity (0..1).
type OpacityReporter interface {
	Opacity() float64
}

// Interaction is a user action observed on an element.
type Interaction struct {
	Kind      string    `json:"kind"`
	ElementID string    `json:"elementId"`
	At        time.Time `json:"at"`
	Data      any       `json:"data,omitempty"`
}

// EffectKind names a visual treatment applied by the host.
type EffectKind string

const (
	EffectHighlight EffectKind = "highlight"
	EffectFadeIn    EffectKind = "fadeIn"
	EffectFadeOut   EffectKind = "fadeOut"
	EffectSlideIn   EffectKind = "slideIn"
	EffectSlideOut  EffectKind = "slideOut"
)

// Effect is one visual treatment request.
type Effect struct {
	Kind      EffectKind
	Duration  time.Duration
	Direction string // slide direction: left, right, up, down
}
