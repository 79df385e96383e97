// Package guidefile loads guide definitions from YAML or JSON files.
//
// A file holds either a single guide or a list under "guides":
//
//	id: intro
//	name: Introduction
//	steps:
//	  - id: welcome
//	    title: Welcome
//	    type: info
//	    display:
//	      auto_advance: 3s
//	  - id: save
//	    title: Save
//	    type: action
//	    target: "#save"
//
// A target given as a plain string is a selector. Durations use Go syntax ("250ms", "3s").
// Files may also carry an "elements" list describing a simulated interface, see LoadUI.
package guidefile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/aretw0/wayfinder/pkg/adapters/memory"
	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Extensions lists the file extensions picked up by LoadDir.
var Extensions = []string{".yaml", ".yml", ".json"}

// Loader reads every guide file under Paths (files or directories).
// It satisfies wayfinder.GuideLoader.
type Loader struct {
	Paths []string
}

// New creates a Loader over paths.
func New(paths ...string) *Loader {
	return &Loader{Paths: paths}
}

// LoadGuides parses every configured path. Guide ids must be unique across files.
func (l *Loader) LoadGuides(ctx context.Context) ([]domain.Guide, error) {
	var out []domain.Guide
	seen := make(map[string]string)
	for _, p := range l.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}

		var guides []domain.Guide
		if info.IsDir() {
			guides, err = LoadDir(p)
		} else {
			guides, err = LoadFile(p)
		}
		if err != nil {
			return nil, err
		}
		for _, g := range guides {
			if prev, dup := seen[g.ID]; dup {
				return nil, &domain.ValidationError{Field: "guide.id", Reason: "defined in " + prev + " and " + p, Value: g.ID}
			}
			seen[g.ID] = p
			out = append(out, g)
		}
	}
	return out, nil
}

// LoadDir parses the guide files directly inside dir, in name order.
func LoadDir(dir string) ([]domain.Guide, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read guide directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isGuideFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var out []domain.Guide
	for _, name := range names {
		guides, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, guides...)
	}
	return out, nil
}

// LoadFile parses one guide file.
func LoadFile(path string) ([]domain.Guide, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read guide file: %w", err)
	}
	guides, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return guides, nil
}

// Parse decodes and validates the guides in data.
func Parse(data []byte) ([]domain.Guide, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse guide file: %w", err)
	}
	if len(raw) == 0 {
		return nil, &domain.ValidationError{Field: "guides", Reason: "file is empty"}
	}

	var items []any
	if list, ok := raw["guides"]; ok {
		l, ok := list.([]any)
		if !ok {
			return nil, &domain.ValidationError{Field: "guides", Reason: "must be a list", Value: list}
		}
		items = l
	} else if _, ok := raw["id"]; ok {
		single := make(map[string]any, len(raw))
		for k, v := range raw {
			if k != "elements" {
				single[k] = v
			}
		}
		items = []any{single}
	}
	if len(items) == 0 {
		return nil, &domain.ValidationError{Field: "guides", Reason: "no guide defined"}
	}

	out := make([]domain.Guide, 0, len(items))
	for i, item := range items {
		var g domain.Guide
		if err := decode(item, &g); err != nil {
			return nil, fmt.Errorf("guide %d: %w", i, err)
		}
		if err := g.Validate(); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// LoadUI reads the "elements" list of a file into a simulated interface.
// Returns an empty UI when the file has none.
func LoadUI(path string) (*memory.UI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ui file: %w", err)
	}
	var doc struct {
		Elements []*memory.Element `yaml:"elements"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse ui file: %w", err)
	}
	for i, el := range doc.Elements {
		if el == nil || el.Name == "" {
			return nil, &domain.ValidationError{Field: fmt.Sprintf("elements[%d].id", i), Reason: "required"}
		}
	}
	return memory.NewUI(doc.Elements...), nil
}

func decode(input any, out *domain.Guide) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			targetShorthandHook,
		),
		ErrorUnused:      true,
		WeaklyTypedInput: false,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(input); err != nil {
		return &domain.ValidationError{Field: "guide", Reason: err.Error()}
	}
	return nil
}

var targetType = reflect.TypeOf(domain.Target{})

// targetShorthandHook accepts "#id" in place of {strategy: selector, value: "#id"}.
func targetShorthandHook(from, to reflect.Type, data any) (any, error) {
	if to != targetType || from.Kind() != reflect.String {
		return data, nil
	}
	return map[string]any{"strategy": string(domain.StrategySelector), "value": data.(string)}, nil
}

func isGuideFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
