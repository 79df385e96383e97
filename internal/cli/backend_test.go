package cli_test

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/wayfinder/internal/cli"
	"github.com/aretw0/wayfinder/internal/config"
	"github.com/aretw0/wayfinder/internal/logging"
	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T, location string, sec config.Security) *cli.Backend {
	t.Helper()
	b, err := cli.OpenBackend(context.Background(), location, sec, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func roundTrip(t *testing.T, b *cli.Backend) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, b.Store.Save(ctx, "onboarding_state", []byte(`{"currentGuide":"intro"}`)))
	got, err := b.Store.Load(ctx, "onboarding_state")
	require.NoError(t, err)
	assert.JSONEq(t, `{"currentGuide":"intro"}`, string(got))
}

func TestOpenBackend_Kinds(t *testing.T) {
	dir := t.TempDir()
	mr := miniredis.RunT(t)

	tests := []struct {
		location string
		kind     string
		locker   bool
	}{
		{"", "memory", false},
		{"memory", "memory", false},
		{"file:" + filepath.Join(dir, "state"), "file", false},
		{"sqlite:" + filepath.Join(dir, "state.db"), "sqlite", false},
		{"redis://" + mr.Addr() + "/0", "redis", true},
	}

	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.location, func(t *testing.T) {
			b := open(t, tt.location, config.Security{})
			assert.Equal(t, tt.kind, b.Kind)
			assert.Equal(t, tt.locker, b.Locker != nil)
			roundTrip(t, b)
		})
	}

	assert.True(t, mr.Exists("wayfinder:onboarding_state"))
}

func TestOpenBackend_Errors(t *testing.T) {
	tests := []struct {
		name     string
		location string
		want     string
	}{
		{"unknown scheme", "s3://bucket", "unknown store"},
		{"sqlite without path", "sqlite:", "needs a path"},
		{"bad redis url", "redis://host:port:extra/x", "invalid redis location"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cli.OpenBackend(context.Background(), tt.location, config.Security{}, logging.NewNop())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestOpenBackend_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := cli.OpenBackend(context.Background(), "redis://"+addr, config.Security{}, logging.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestOpenBackend_Encryption(t *testing.T) {
	dir := t.TempDir()
	key := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))

	b := open(t, "file:"+dir, config.Security{EncryptionKey: key})
	roundTrip(t, b)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	raw, err := os.ReadFile(filepath.Join(dir, files[0].Name()))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "intro", "state must be stored encrypted")

	// Without the key the envelope is returned as is.
	plain := open(t, "file:"+dir, config.Security{})
	got, err := plain.Store.Load(context.Background(), "onboarding_state")
	require.NoError(t, err)
	assert.NotContains(t, string(got), "intro")
}

func TestOpenBackend_Redaction(t *testing.T) {
	ctx := context.Background()
	b := open(t, "memory", config.Security{RedactPatterns: []string{"(?i)email"}})

	require.NoError(t, b.Store.Save(ctx, "onboarding_state", []byte(`{"data":{"Email":"a@b.c","plan":"pro"}}`)))
	got, err := b.Store.Load(ctx, "onboarding_state")
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"Email":"***","plan":"pro"}}`, string(got))
}

func TestOpenBackend_Fallback(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b := open(t, "file:"+filepath.Join(dir, "state"), config.Security{Fallback: true})
	roundTrip(t, b)

	_, err := b.Store.Load(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
