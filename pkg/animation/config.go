package animation

import "time"

// Strategy selects how TransitionSteps moves between two elements.
type Strategy string

const (
	// StrategyFade fades the outgoing element out, then the incoming one in.
	StrategyFade Strategy = "fade"
	// StrategySlide slides the outgoing element out, then the incoming one in.
	StrategySlide Strategy = "slide"
	// StrategyCrossfade fades out and in at the same time.
	StrategyCrossfade Strategy = "crossfade"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyFade, StrategySlide, StrategyCrossfade:
		return true
	}
	return false
}

// Config configures the Coordinator.
type Config struct {
	// Enabled turns every effect into a no-op when false.
	Enabled           bool          `yaml:"enabled"`
	HighlightDuration time.Duration `yaml:"highlight_duration"`
	FadeDuration      time.Duration `yaml:"fade_duration"`
	SlideDuration     time.Duration `yaml:"slide_duration"`
	Strategy          Strategy      `yaml:"strategy"`
	// ReducedMotion applies effects without waiting for their duration.
	ReducedMotion bool `yaml:"reduced_motion"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		HighlightDuration: 300 * time.Millisecond,
		FadeDuration:      200 * time.Millisecond,
		SlideDuration:     250 * time.Millisecond,
		Strategy:          StrategyFade,
	}
}

// Options overrides Config for one call.
type Options struct {
	Duration  time.Duration
	Direction string
	Strategy  Strategy
}
