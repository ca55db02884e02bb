package redisstorage

import (
	"context"
	"testing"
	"time"

	"github.com/lockburn/bridge-relayer/sequencer/types"
	"github.com/lockburn/bridge-relayer/utils/gerror"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memClient is an in-memory RedisClient without expiry
type memClient struct {
	kv map[string]string
}

func newMemClient() *memClient {
	return &memClient{kv: make(map[string]string)}
}

func (c *memClient) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (c *memClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if _, found := c.kv[key]; found {
		return redis.NewBoolResult(false, nil)
	}
	c.kv[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (c *memClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	c.kv[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (c *memClient) Get(ctx context.Context, key string) *redis.StringCmd {
	v, found := c.kv[key]
	if !found {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (c *memClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	if c.kv[keys[0]] == args[0].(string) {
		delete(c.kv, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestTaskLock(t *testing.T) {
	ctx := context.Background()
	s := newRedisStorage(newMemClient(), Config{})

	token, ok, err := s.TryLockTask(ctx, "lock:0x01", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = s.TryLockTask(ctx, "lock:0x01", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// a stale token must not release someone else's lock
	require.NoError(t, s.UnlockTask(ctx, "lock:0x01", "stale"))
	_, ok, err = s.TryLockTask(ctx, "lock:0x01", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.UnlockTask(ctx, "lock:0x01", token))
	_, ok, err = s.TryLockTask(ctx, "lock:0x01", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTaskStatus(t *testing.T) {
	ctx := context.Background()
	client := newMemClient()
	s := newRedisStorage(client, Config{KeyPrefix: "test"})

	_, err := s.GetTaskStatus(ctx, "burn:0x02")
	require.ErrorIs(t, err, gerror.ErrStorageNotFound)

	view := types.View{ID: "0x02", Direction: "burn", State: "Settled", Result: "settled", Proof: []string{"0xaa"}}
	require.NoError(t, s.SetTaskStatus(ctx, "burn:0x02", view))
	assert.Contains(t, client.kv, "test:task_status:burn:0x02")

	got, err := s.GetTaskStatus(ctx, "burn:0x02")
	require.NoError(t, err)
	assert.Equal(t, view, *got)
}
