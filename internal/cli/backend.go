package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/wayfinder/internal/config"
	"github.com/aretw0/wayfinder/pkg/adapters/file"
	"github.com/aretw0/wayfinder/pkg/adapters/memory"
	"github.com/aretw0/wayfinder/pkg/adapters/redis"
	"github.com/aretw0/wayfinder/pkg/adapters/sqlite"
	"github.com/aretw0/wayfinder/pkg/persistence/middleware"
	"github.com/aretw0/wayfinder/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Backend is the persistence stack selected by a store location.
type Backend struct {
	// Kind is memory, file, redis or sqlite.
	Kind string
	// Store is the decorated store handed to the engine.
	Store ports.KeyValueStore
	// Locker is set for backends shared between processes.
	Locker ports.DistributedLocker
	close  func() error
}

// Close releases the connection of the underlying store, if any.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// OpenBackend opens the store named by location and wraps it with the
// middleware enabled in sec. Accepted locations:
//
//	memory
//	file:<dir>          (file alone uses .wayfinder/state)
//	sqlite:<path>
//	redis://[:password@]host:port[/db]
func OpenBackend(ctx context.Context, location string, sec config.Security, logger *slog.Logger) (*Backend, error) {
	// 1. Primary store
	b, err := openPrimary(ctx, location)
	if err != nil {
		return nil, err
	}

	// 2. Middleware, outermost first: redact, encrypt, then fall back to memory.
	var mws []middleware.Middleware
	if len(sec.RedactPatterns) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(sec.RedactPatterns))
	}
	active, fallbacks, err := sec.Keys()
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	if active != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallbacks,
		}))
	}
	if sec.Fallback && b.Kind != "memory" {
		mws = append(mws, middleware.NewFallbackMiddleware(logger))
	}
	b.Store = middleware.Chain(b.Store, mws...)

	logger.Debug("store opened", "kind", b.Kind, "middleware", len(mws))
	return b, nil
}

func openPrimary(ctx context.Context, location string) (*Backend, error) {
	scheme, rest, _ := strings.Cut(location, ":")
	switch strings.ToLower(scheme) {
	case "", "memory":
		return &Backend{Kind: "memory", Store: memory.NewStore()}, nil

	case "file":
		return &Backend{Kind: "file", Store: file.New(strings.TrimPrefix(rest, "//"))}, nil

	case "sqlite":
		path := strings.TrimPrefix(rest, "//")
		if path == "" {
			return nil, errors.New("sqlite store needs a path, e.g. sqlite:wayfinder.db")
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return &Backend{Kind: "sqlite", Store: store, close: store.Close}, nil

	case "redis", "rediss":
		opts, err := backend.ParseURL(location)
		if err != nil {
			return nil, fmt.Errorf("invalid redis location: %w", err)
		}
		client := backend.NewClient(opts)
		store := redis.NewFromClient(client)
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return &Backend{
			Kind:   "redis",
			Store:  store,
			Locker: redis.NewLocker(client, redis.DefaultPrefix),
			close:  store.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown store %q (want memory, file:<dir>, sqlite:<path> or redis://host:port)", location)
}
