package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the Wayfinder banner to w.
func PrintBanner(w io.Writer, p termenv.Profile) {
	lines := []struct {
		text  string
		color string
	}{
		{` __      __              __ _         _`, "#34d399"},
		{` \ \    / /_ _ _  _ ___ / _(_)_ _  __| |___ _ _`, "#2dd4bf"},
		{`  \ \/\/ / _' | || |___|  _| | ' \/ _' / -_) '_|`, "#22d3ee"},
		{`   \_/\_/\__,_|\_, |   |_| |_|_||_\__,_\___|_|`, "#38bdf8"},
		{`               |__/`, "#60a5fa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
