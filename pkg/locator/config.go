package locator

import (
	"time"

	"github.com/aretw0/wayfinder/pkg/domain"
)

// Checks toggles the state validations applied to a located candidate.
type Checks struct {
	// Visibility rejects hidden elements and elements wholly outside the viewport.
	Visibility bool `yaml:"visibility"`
	// Interactivity rejects disabled or pointer-transparent elements and low opacity.
	Interactivity bool `yaml:"interactivity"`
	// Size rejects elements smaller than MinWidth x MinHeight.
	Size bool `yaml:"size"`
}

// Config configures an ElementLocator.
type Config struct {
	// Strategies is the lookup priority order.
	Strategies []domain.Strategy `yaml:"strategies"`
	// StrictStrategy restricts lookup to the target's own strategy.
	StrictStrategy bool `yaml:"strict_strategy"`

	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	// Timeout bounds a whole Locate call, retries included. Zero means the default.
	Timeout time.Duration `yaml:"timeout"`
	// Jitter is the fraction of each delay added at random (0.1 = up to 10%).
	Jitter float64 `yaml:"jitter"`

	// PollInterval is the fixed interval of WaitForElement. Zero means the default.
	PollInterval time.Duration `yaml:"poll_interval"`
	// Concurrency bounds LocateMultiple fan-out.
	Concurrency int `yaml:"concurrency"`

	Checks     Checks       `yaml:"checks"`
	MinWidth   float64      `yaml:"min_width"`
	MinHeight  float64      `yaml:"min_height"`
	MinOpacity float64      `yaml:"min_opacity"`
	Viewport   *domain.Rect `yaml:"viewport,omitempty"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Strategies:   []domain.Strategy{domain.StrategySelector, domain.StrategyAttribute, domain.StrategyPath},
		MaxAttempts:  3,
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Timeout:      5 * time.Second,
		Jitter:       0.1,
		PollInterval: 100 * time.Millisecond,
		Concurrency:  4,
		Checks:       Checks{Visibility: true, Interactivity: true, Size: true},
		MinWidth:     1,
		MinHeight:    1,
		MinOpacity:   0.1,
	}
}

// Options overrides Config for a single call. Zero fields keep the configured value.
type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Timeout     time.Duration
	Checks      *Checks
}

// with applies opts and replaces unusable values: a non-positive Timeout or
// PollInterval falls back to its default.
func (c Config) with(opts Options) Config {
	if opts.MaxAttempts > 0 {
		c.MaxAttempts = opts.MaxAttempts
	}
	if opts.BaseDelay > 0 {
		c.BaseDelay = opts.BaseDelay
	}
	if opts.Timeout > 0 {
		c.Timeout = opts.Timeout
	}
	if opts.Checks != nil {
		c.Checks = *opts.Checks
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = c.BaseDelay
	}
	def := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	return c
}
