package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/coupler/pkg/adapters/redis"
	"github.com/aretw0/coupler/pkg/domain"
	"github.com/aretw0/coupler/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunResultStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.StepRecord{RunID: "run-ttl", Index: 0}))
	runs, err := store.Runs(ctx)
	require.NoError(t, err)
	assert.Contains(t, runs, "run-ttl")

	// Key expiration
	mr.FastForward(2 * time.Second)
	_, err = store.Load(ctx, "run-ttl", 0)
	assert.ErrorIs(t, err, domain.ErrRunNotFound)

	// The index is pruned against wall-clock time.
	time.Sleep(1200 * time.Millisecond)
	runs, err = store.Runs(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.StepRecord{RunID: "my-run", Index: 2}))
	assert.True(t, mr.Exists("custom:app:my-run"), "Expected run hash with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")
	fields, err := mr.HKeys("custom:app:my-run")
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, fields)
}
