package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/wayfinder/pkg/adapters/memory"
	"github.com/aretw0/wayfinder/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunKeyValueStoreContract(t, memory.NewStore())
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	value := []byte("abc")
	require.NoError(t, store.Save(ctx, "k", value))
	value[0] = 'X'

	loaded, err := store.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(loaded))

	loaded[1] = 'Y'
	again, _ := store.Load(ctx, "k")
	assert.Equal(t, "abc", string(again))
}
