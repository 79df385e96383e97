package ports

import "context"

// KeyValueStore is the persistence boundary of the engine.
// Values are opaque bytes; callers own the encoding.
type KeyValueStore interface {
	// Save persists value under key, replacing any previous value.
	Save(ctx context.Context, key string, value []byte) error

	// Load retrieves the value under key.
	// Returns domain.ErrNotFound if the key does not exist.
	Load(ctx context.Context, key string) ([]byte, error)

	// Clear removes key. Clearing an absent key is not an error.
	Clear(ctx context.Context, key string) error

	// List returns the stored keys.
	List(ctx context.Context) ([]string, error)
}
