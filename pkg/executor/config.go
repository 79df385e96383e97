package executor

import (
	"time"

	"github.com/aretw0/wayfinder/pkg/locator"
)

// Config configures the StepExecutor.
type Config struct {
	// ActionTimeout bounds the wait of action steps that set no timeout of their own.
	ActionTimeout time.Duration `yaml:"action_timeout"`
	// ActionEvents are the interaction kinds completing an action step by default.
	ActionEvents       []string `yaml:"action_events"`
	HighlightEnabled   bool     `yaml:"highlight_enabled"`
	TransitionsEnabled bool     `yaml:"transitions_enabled"`
	// MaxHistory bounds the executed-step history (oldest dropped first).
	MaxHistory int `yaml:"max_history"`
	// Locate overrides the locator configuration for step targets.
	Locate locator.Options `yaml:"-"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		ActionTimeout:      30 * time.Second,
		ActionEvents:       []string{"click"},
		HighlightEnabled:   true,
		TransitionsEnabled: true,
		MaxHistory:         100,
	}
}
