package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/wayfinder/pkg/adapters/sqlite"
	"github.com/aretw0/wayfinder/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("sqlite.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_Contract(t *testing.T) {
	ports.RunKeyValueStoreContract(t, newTestStore(t))
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	store, err := sqlite.Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "onboarding_state", []byte(`{"isActive":true}`)))
	require.NoError(t, store.Close())

	reopened, err := sqlite.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	data, err := reopened.Load(ctx, "onboarding_state")
	require.NoError(t, err)
	assert.JSONEq(t, `{"isActive":true}`, string(data))
}
