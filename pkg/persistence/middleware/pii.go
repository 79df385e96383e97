package middleware

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/aretw0/wayfinder/pkg/ports"
)

// Mask replaces the values of masked keys.
const Mask = "***"

type piiMiddleware struct {
	next     ports.KeyValueStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks, at any depth of a JSON value,
// the values of object keys matching one of the patterns. Non-JSON values pass through.
// Masking is one-way: Load returns the masked document.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.KeyValueStore) ports.KeyValueStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, key string, value []byte) error {
	var doc any
	if err := json.Unmarshal(value, &doc); err != nil {
		return m.next.Save(ctx, key, value)
	}

	masked, err := json.Marshal(maskValue(doc, m.patterns))
	if err != nil {
		return m.next.Save(ctx, key, value)
	}
	return m.next.Save(ctx, key, masked)
}

func (m *piiMiddleware) Load(ctx context.Context, key string) ([]byte, error) {
	return m.next.Load(ctx, key)
}

func (m *piiMiddleware) Clear(ctx context.Context, key string) error {
	return m.next.Clear(ctx, key)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func maskValue(v any, patterns []*regexp.Regexp) any {
	switch t := v.(type) {
	case map[string]any:
		for k, sub := range t {
			if matchesAny(k, patterns) {
				t[k] = Mask
				continue
			}
			t[k] = maskValue(sub, patterns)
		}
	case []any:
		for i, sub := range t {
			t[i] = maskValue(sub, patterns)
		}
	}
	return v
}

func matchesAny(k string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(k) {
			return true
		}
	}
	return false
}
