package redisstorage

import (
	"context"
	"time"

	"github.com/lockburn/bridge-relayer/sequencer/types"
	"github.com/redis/go-redis/v9"
)

type RedisStorage interface {
	// TryLockTask takes the settlement lock of a task key, ok is false when another holder has it
	TryLockTask(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// UnlockTask releases the lock if it is still held with the token
	UnlockTask(ctx context.Context, key, token string) error
	SetTaskStatus(ctx context.Context, key string, view types.View) error
	GetTaskStatus(ctx context.Context, key string) (*types.View, error)
}

type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}
