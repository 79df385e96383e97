package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/wayfinder/internal/logging"
	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/aretw0/wayfinder/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock outlives a crashed holder.
const DefaultLockTTL = 10 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes access to the keys of a store.
type Manager struct {
	store ports.KeyValueStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over store.
func NewManager(store ports.KeyValueStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(key) after unlocking.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// Load decodes the JSON value under key into v.
// A missing key returns an error matching domain.ErrNotFound.
func (m *Manager) Load(ctx context.Context, key string, v any) error {
	return m.WithLock(ctx, key, func(ctx context.Context) error {
		data, err := m.store.Load(ctx, key)
		if err != nil {
			return &domain.StorageError{Op: "load", Key: key, Err: err}
		}
		if err := json.Unmarshal(data, v); err != nil {
			return &domain.StorageError{Op: "decode", Key: key, Err: err}
		}
		return nil
	})
}

// Save encodes v as JSON under key.
func (m *Manager) Save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &domain.StorageError{Op: "encode", Key: key, Err: err}
	}
	return m.WithLock(ctx, key, func(ctx context.Context) error {
		if err := m.store.Save(ctx, key, data); err != nil {
			return &domain.StorageError{Op: "save", Key: key, Err: err}
		}
		return nil
	})
}

// Clear removes key.
func (m *Manager) Clear(ctx context.Context, key string) error {
	return m.WithLock(ctx, key, func(ctx context.Context) error {
		if err := m.store.Clear(ctx, key); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return &domain.StorageError{Op: "clear", Key: key, Err: err}
		}
		return nil
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	keys, err := m.store.List(ctx)
	if err != nil {
		return nil, &domain.StorageError{Op: "list", Err: err}
	}
	return keys, nil
}

// Store returns the underlying store.
func (m *Manager) Store() ports.KeyValueStore {
	return m.store
}

// WithLock executes fn while holding the lock for key.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	entry := m.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(key)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, key, m.lockTTL)
		if err != nil {
			return &domain.StorageError{Op: "lock", Key: key, Err: fmt.Errorf("failed to acquire distributed lock: %w", err)}
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"key", key,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
