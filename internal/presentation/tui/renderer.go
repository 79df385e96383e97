package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
// An empty style detects light or dark backgrounds automatically; "notty" and
// "ascii" produce output without escape sequences.
func NewRenderer(style string, width int) func(string) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithEmoji()}
	if style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return Plain
	}
	return func(markdown string) (string, error) {
		out, err := r.Render(markdown)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(out, "\n") + "\n", nil
	}
}

// Plain renders markdown as-is.
func Plain(markdown string) (string, error) {
	if markdown == "" || strings.HasSuffix(markdown, "\n") {
		return markdown, nil
	}
	return markdown + "\n", nil
}
