package tui_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aretw0/wayfinder/internal/presentation/tui"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintBanner_AsciiHasNoEscapes(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf, termenv.Ascii)

	assert.Contains(t, buf.String(), "|__/")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestPrintBanner_Colored(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf, termenv.TrueColor)
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestRenderer(t *testing.T) {
	out, err := tui.NewRenderer("notty", 60)("Click **Save**.")
	require.NoError(t, err)
	assert.Contains(t, out, "Save")
	assert.True(t, strings.HasSuffix(out, "\n"))

	plain, err := tui.Plain("as is")
	require.NoError(t, err)
	assert.Equal(t, "as is\n", plain)
}
