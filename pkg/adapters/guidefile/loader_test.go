package guidefile_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/wayfinder/pkg/adapters/guidefile"
	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_YAML(t *testing.T) {
	guides, err := guidefile.LoadFile(filepath.Join("testdata", "intro.yaml"))
	require.NoError(t, err)
	require.Len(t, guides, 1)

	g := guides[0]
	assert.Equal(t, "intro", g.ID)
	assert.Equal(t, "Introduction", g.Name)
	require.Len(t, g.Steps, 3)

	welcome := g.Steps[0]
	assert.Equal(t, domain.StepTypeInfo, welcome.Type)
	assert.Equal(t, 2*time.Second, welcome.Display.AutoAdvance)

	save := g.Steps[1]
	require.NotNil(t, save.Target)
	assert.Equal(t, domain.Target{Strategy: domain.StrategySelector, Value: "#save"}, *save.Target)
	assert.Equal(t, 45*time.Second, save.Display.ActionTimeout)
	assert.Equal(t, []string{"click", "keydown"}, save.Display.ActionEvents)
	require.Len(t, save.Conditions, 1)
	assert.Equal(t, domain.ConditionExists, save.Conditions[0].Kind)
	assert.Equal(t, domain.StrategyAttribute, save.Conditions[0].Target.Strategy)

	assert.Equal(t, "track-done", g.Steps[2].Hooks.OnEnterName)
}

func TestLoadFile_JSONList(t *testing.T) {
	guides, err := guidefile.LoadFile(filepath.Join("testdata", "more.json"))
	require.NoError(t, err)
	require.Len(t, guides, 2)

	assert.Equal(t, "admin", guides[0].ID)
	require.Len(t, guides[0].Conditions, 1)
	assert.Equal(t, "user.role", guides[0].Conditions[0].Key)
	assert.Equal(t, "admin", guides[0].Conditions[0].Value)
	assert.Equal(t, "ask-name", guides[1].Steps[0].Handler)
}

func TestLoadDir_SkipsOtherFiles(t *testing.T) {
	guides, err := guidefile.LoadDir("testdata")
	require.NoError(t, err)

	ids := make([]string, 0, len(guides))
	for _, g := range guides {
		ids = append(ids, g.ID)
	}
	assert.Equal(t, []string{"intro", "admin", "wizard"}, ids)
}

func TestLoader_DuplicateIDs(t *testing.T) {
	l := guidefile.New("testdata", filepath.Join("testdata", "intro.yaml"))
	_, err := l.LoadGuides(context.Background())
	assert.ErrorIs(t, err, domain.ErrValidation)

	guides, err := guidefile.New("testdata").LoadGuides(context.Background())
	require.NoError(t, err)
	assert.Len(t, guides, 3)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"no guide", "foo: bar\n"},
		{"bad yaml", "id: [\n"},
		{"guides not a list", "guides: nope\n"},
		{"unknown field", "id: x\nname: X\ncolour: red\nsteps:\n  - {id: a, title: A, type: info}\n"},
		{"bad duration", "id: x\nname: X\nsteps:\n  - {id: a, title: A, type: info, display: {auto_advance: soon}}\n"},
		{"invalid guide", "id: x\nname: X\nsteps: []\n"},
		{"action without target", "id: x\nname: X\nsteps:\n  - {id: a, title: A, type: action}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := guidefile.Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadUI(t *testing.T) {
	ui, err := guidefile.LoadUI(filepath.Join("testdata", "intro.yaml"))
	require.NoError(t, err)

	els := ui.Elements()
	require.Len(t, els, 2)
	assert.Equal(t, "save", els[0].Name)
	assert.Equal(t, 80.0, els[0].Rect.Width)
	assert.True(t, els[1].Hidden)

	el, err := ui.Query(context.Background(), domain.StrategyAttribute, "save-button")
	require.NoError(t, err)
	assert.Equal(t, "save", el.ID())
}

func TestLoadUI_MissingID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ui.yaml")
	require.NoError(t, os.WriteFile(path, []byte("elements:\n  - selector: '#x'\n"), 0o644))
	_, err := guidefile.LoadUI(path)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
