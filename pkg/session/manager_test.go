package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/wayfinder/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/wayfinder/pkg/adapters/redis"
	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/aretw0/wayfinder/pkg/ports"
	"github.com/aretw0/wayfinder/pkg/session"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency and counts overlapping saves.
type SlowStore struct {
	*memory.Store
	inFlight atomic.Int32
	overlap  atomic.Bool
}

func (s *SlowStore) Save(ctx context.Context, key string, value []byte) error {
	if s.inFlight.Add(1) > 1 {
		s.overlap.Store(true)
	}
	defer s.inFlight.Add(-1)
	time.Sleep(5 * time.Millisecond) // Simulate IO
	return s.Store.Save(ctx, key, value)
}

type brokenStore struct{ *memory.Store }

func (brokenStore) Save(context.Context, string, []byte) error { return errors.New("disk full") }

type failingLocker struct{}

func (failingLocker) Lock(context.Context, string, time.Duration) (ports.UnlockFunc, error) {
	return nil, errors.New("lock service down")
}

func TestManager_RoundTrip(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()

	in := domain.NewRunState()
	in.CompletedGuides.Add("intro")
	require.NoError(t, mgr.Save(ctx, "onboarding_state", in.Persisted()))

	var out domain.PersistedState
	require.NoError(t, mgr.Load(ctx, "onboarding_state", &out))
	assert.Equal(t, []string{"intro"}, out.CompletedGuides)

	keys, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"onboarding_state"}, keys)

	require.NoError(t, mgr.Clear(ctx, "onboarding_state"))
	err = mgr.Load(ctx, "onboarding_state", &out)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestManager_DecodeError(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.Save(context.Background(), "k", []byte("{not json")))

	var out map[string]any
	err := session.NewManager(store).Load(context.Background(), "k", &out)

	var serr *domain.StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "decode", serr.Op)
}

func TestManager_SaveError(t *testing.T) {
	err := session.NewManager(brokenStore{memory.NewStore()}).Save(context.Background(), "k", 1)
	var serr *domain.StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "save", serr.Op)
	assert.Equal(t, "k", serr.Key)
}

func TestManager_Locking(t *testing.T) {
	store := &SlowStore{Store: memory.NewStore()}
	mgr := session.NewManager(store)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(val int) {
			defer wg.Done()
			assert.NoError(t, mgr.Save(ctx, "shared", val))
		}(i)
	}
	wg.Wait()

	assert.False(t, store.overlap.Load(), "saves of one key must be serialized")
}

func TestManager_DistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mgr := session.NewManager(memory.NewStore(), session.WithLocker(redisAdapter.NewLocker(client, "wayfinder:")))
	ctx := context.Background()

	require.NoError(t, mgr.WithLock(ctx, "onboarding_state", func(context.Context) error {
		assert.True(t, mr.Exists("wayfinder:lock:onboarding_state"), "lock is held inside fn")
		return nil
	}))
	assert.False(t, mr.Exists("wayfinder:lock:onboarding_state"), "lock is released afterwards")
}

func TestManager_LockFailure(t *testing.T) {
	mgr := session.NewManager(memory.NewStore(), session.WithLocker(failingLocker{}))
	called := false
	err := mgr.WithLock(context.Background(), "k", func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.False(t, called)
}
