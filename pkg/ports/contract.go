package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunKeyValueStoreContract runs a suite of tests to verify that a KeyValueStore
// implementation adheres to the interface contract.
func RunKeyValueStoreContract(t *testing.T, store KeyValueStore) {
	ctx := context.Background()
	key := "contract-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		value := []byte(`{"completedGuides":["intro"],"currentStep":-1}`)

		err := store.Save(ctx, key, value)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, value, loaded)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, []byte("first")))
		require.NoError(t, store.Save(ctx, key, []byte("second")))

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "second", string(loaded))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+key)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, []byte("value")))

		err := store.Clear(ctx, key)
		require.NoError(t, err, "Clear should not return error")

		_, err = store.Load(ctx, key)
		assert.ErrorIs(t, err, domain.ErrNotFound, "Load after Clear should return ErrNotFound")

		assert.NoError(t, store.Clear(ctx, key), "Clearing an absent key should succeed")
	})

	t.Run("List", func(t *testing.T) {
		k1 := key + "-1"
		k2 := key + "-2"
		require.NoError(t, store.Save(ctx, k1, []byte("a")))
		require.NoError(t, store.Save(ctx, k2, []byte("b")))
		defer func() {
			_ = store.Clear(ctx, k1)
			_ = store.Clear(ctx, k2)
		}()

		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, k1)
		assert.Contains(t, keys, k2)
	})
}
