// Package terminal is a reference visual adapter that presents steps as text.
//
// Step content is treated as markdown and rendered with glamour; progress,
// target and controls are colored with termenv according to the output profile.
// Intents are raised by the caller through Trigger, typically from keyboard input.
package terminal

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aretw0/wayfinder/internal/presentation/tui"
	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/aretw0/wayfinder/pkg/ports"
	"github.com/muesli/termenv"
)

var _ ports.VisualAdapter = (*Adapter)(nil)

// Adapter implements ports.VisualAdapter on an io.Writer.
type Adapter struct {
	out     io.Writer
	profile termenv.Profile
	render  func(string) (string, error)

	mu        sync.Mutex
	cfg       domain.VisualConfig
	active    bool
	last      *domain.StepDescriptor
	callbacks map[domain.Intent]func()
}

type Option func(*Adapter)

// WithProfile sets the color profile (default: detected from the output).
func WithProfile(p termenv.Profile) Option {
	return func(a *Adapter) { a.profile = p }
}

// WithRenderer replaces the markdown renderer.
func WithRenderer(fn func(string) (string, error)) Option {
	return func(a *Adapter) { a.render = fn }
}

// WithPlainOutput disables colors and markdown rendering.
func WithPlainOutput() Option {
	return func(a *Adapter) {
		a.profile = termenv.Ascii
		a.render = tui.Plain
	}
}

// New creates an Adapter writing to out.
func New(out io.Writer, opts ...Option) *Adapter {
	a := &Adapter{
		out:       out,
		profile:   termenv.NewOutput(out).EnvColorProfile(),
		callbacks: make(map[domain.Intent]func()),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.render == nil {
		style := ""
		if a.profile == termenv.Ascii {
			style = "notty"
		}
		a.render = tui.NewRenderer(style, 80)
	}
	return a
}

func (a *Adapter) Init(ctx context.Context, cfg domain.VisualConfig) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = cfg
	a.active = true
	a.last = nil

	title := a.profile.String(cfg.GuideName).Bold()
	count := a.profile.String(fmt.Sprintf("(%d steps)", cfg.TotalSteps)).Faint()
	_, err := fmt.Fprintf(a.out, "\n%s %s %s\n", a.accent("▶"), title, count)
	return err
}

func (a *Adapter) HighlightElement(ctx context.Context, step domain.StepDescriptor) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active {
		return fmt.Errorf("failed to present step %q: adapter is not initialized", step.StepID)
	}
	d := step
	a.last = &d
	return a.draw(d)
}

// UpdateHighlight redraws the last presented step.
func (a *Adapter) UpdateHighlight(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active || a.last == nil {
		return nil
	}
	return a.draw(*a.last)
}

func (a *Adapter) Destroy(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active {
		return nil
	}
	a.active = false
	a.last = nil
	_, err := fmt.Fprintf(a.out, "%s\n", a.profile.String("■ "+a.cfg.GuideName+" closed").Faint())
	return err
}

func (a *Adapter) On(intent domain.Intent, callback func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.callbacks[intent] = callback
}

// Trigger raises intent as if the user had used the matching control.
// Returns false when nothing handles it or the control is not offered.
func (a *Adapter) Trigger(intent domain.Intent) bool {
	a.mu.Lock()
	cb := a.callbacks[intent]
	last := a.last
	a.mu.Unlock()
	if cb == nil {
		return false
	}
	if last != nil {
		switch intent {
		case domain.IntentNext:
			if !last.Buttons.Next {
				return false
			}
		case domain.IntentPrev:
			if !last.Buttons.Previous {
				return false
			}
		case domain.IntentClose:
			if !last.Buttons.Close {
				return false
			}
		}
	}
	cb()
	return true
}

// Active reports whether a guide is on screen.
func (a *Adapter) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// draw writes one step. Callers hold a.mu.
func (a *Adapter) draw(d domain.StepDescriptor) error {
	var b strings.Builder

	header := a.profile.String(d.Title).Bold().String()
	if a.cfg.ShowProgress && d.Total > 0 {
		header = a.accent(fmt.Sprintf("[%d/%d]", d.Index+1, d.Total)) + " " + header
	}
	b.WriteString("\n" + header + "\n")

	if d.Content != "" {
		body, err := a.render(d.Content)
		if err != nil {
			return fmt.Errorf("failed to render step %q: %w", d.StepID, err)
		}
		b.WriteString(body)
	}

	if d.Target != nil {
		b.WriteString(a.profile.String("→ "+d.Target.Value).Foreground(a.profile.Color("#fbbf24")).String() + "\n")
	}
	if d.Type == domain.StepTypeAction && d.Target != nil {
		b.WriteString(a.profile.String("waiting for you to interact with "+d.Target.Value).Italic().String() + "\n")
	}

	var controls []string
	if d.Buttons.Previous {
		controls = append(controls, "[p] "+d.Buttons.PrevLabel)
	}
	if d.Buttons.Next {
		controls = append(controls, "[n] "+d.Buttons.NextLabel)
	}
	if d.Buttons.Close {
		controls = append(controls, "[s] Close")
	}
	if len(controls) > 0 {
		b.WriteString(a.profile.String(strings.Join(controls, "  ")).Faint().String() + "\n")
	}

	_, err := io.WriteString(a.out, b.String())
	return err
}

func (a *Adapter) accent(s string) string {
	return a.profile.String(s).Foreground(a.profile.Color("#22d3ee")).String()
}
