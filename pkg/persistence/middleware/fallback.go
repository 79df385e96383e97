package middleware

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/aretw0/wayfinder/pkg/adapters/memory"
	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/aretw0/wayfinder/pkg/ports"
)

type fallbackMiddleware struct {
	next   ports.KeyValueStore
	mirror *memory.Store
	logger *slog.Logger
}

// NewFallbackMiddleware keeps an in-memory mirror of every write so the engine
// keeps working while the wrapped store is unavailable. Primary failures are
// logged and absorbed; reads fall back to the mirror.
func NewFallbackMiddleware(logger *slog.Logger) Middleware {
	return func(next ports.KeyValueStore) ports.KeyValueStore {
		return &fallbackMiddleware{
			next:   next,
			mirror: memory.NewStore(),
			logger: logger,
		}
	}
}

func (m *fallbackMiddleware) Save(ctx context.Context, key string, value []byte) error {
	if err := m.mirror.Save(ctx, key, value); err != nil {
		return err
	}
	if err := m.next.Save(ctx, key, value); err != nil {
		m.logger.Warn("primary store unavailable, value kept in memory", "key", key, "err", err)
	}
	return nil
}

func (m *fallbackMiddleware) Load(ctx context.Context, key string) ([]byte, error) {
	value, err := m.next.Load(ctx, key)
	if err == nil {
		_ = m.mirror.Save(ctx, key, value)
		return value, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		m.logger.Warn("primary store unavailable, serving from memory", "key", key, "err", err)
	}
	return m.mirror.Load(ctx, key)
}

func (m *fallbackMiddleware) Clear(ctx context.Context, key string) error {
	_ = m.mirror.Clear(ctx, key)
	if err := m.next.Clear(ctx, key); err != nil {
		m.logger.Warn("primary store unavailable, clear applied in memory only", "key", key, "err", err)
	}
	return nil
}

func (m *fallbackMiddleware) List(ctx context.Context) ([]string, error) {
	mirrored, _ := m.mirror.List(ctx)
	primary, err := m.next.List(ctx)
	if err != nil {
		m.logger.Warn("primary store unavailable, listing memory", "err", err)
		return mirrored, nil
	}

	seen := make(map[string]bool, len(primary))
	for _, k := range primary {
		seen[k] = true
	}
	for _, k := range mirrored {
		if !seen[k] {
			primary = append(primary, k)
		}
	}
	sort.Strings(primary)
	return primary, nil
}
