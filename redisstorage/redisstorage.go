package redisstorage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/google/uuid"
	"github.com/lockburn/bridge-relayer/sequencer/types"
	"github.com/lockburn/bridge-relayer/utils/gerror"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "bridge_relayer"
	defaultStatusTTL = 24 * time.Hour

	lockKeyPrefix   = "task_lock:"
	statusKeyPrefix = "task_status:"
)

// unlockScript deletes the lock only when it still holds the caller's token
const unlockScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`

// redisStorageImpl implements RedisStorage interface
type redisStorageImpl struct {
	client    RedisClient
	keyPrefix string
	statusTTL time.Duration
}

func NewRedisStorage(cfg Config) (RedisStorage, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("redis address is empty")
	}
	var client redis.UniversalClient
	if cfg.IsClusterMode {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Addrs[0],
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}
	res, err := client.Ping(context.Background()).Result()
	if err != nil {
		return nil, errors.Wrap(err, "cannot connect to redis server")
	}
	log.Debugf("redis health check done, result: %v", res)
	return newRedisStorage(client, cfg), nil
}

func newRedisStorage(client RedisClient, cfg Config) *redisStorageImpl {
	s := &redisStorageImpl{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		statusTTL: cfg.StatusTTL.Duration,
	}
	if s.keyPrefix == "" {
		s.keyPrefix = defaultKeyPrefix
	}
	if s.statusTTL == 0 {
		s.statusTTL = defaultStatusTTL
	}
	return s
}

func (s *redisStorageImpl) key(prefix, key string) string {
	return s.keyPrefix + ":" + prefix + key
}

func (s *redisStorageImpl) TryLockTask(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, s.key(lockKeyPrefix, key), token, ttl).Result()
	if err != nil {
		return "", false, errors.Wrap(err, "TryLockTask redis SetNX error")
	}
	return token, ok, nil
}

func (s *redisStorageImpl) UnlockTask(ctx context.Context, key, token string) error {
	n, err := s.client.Eval(ctx, unlockScript, []string{s.key(lockKeyPrefix, key)}, token).Int()
	if err != nil {
		return errors.Wrap(err, "UnlockTask redis Eval error")
	}
	if n == 0 {
		log.Warnf("task lock %s expired before release", key)
	}
	return nil
}

func (s *redisStorageImpl) SetTaskStatus(ctx context.Context, key string, view types.View) error {
	val, err := json.Marshal(view)
	if err != nil {
		return errors.Wrap(err, "marshal task status error")
	}
	if err := s.client.Set(ctx, s.key(statusKeyPrefix, key), val, s.statusTTL).Err(); err != nil {
		return errors.Wrap(err, "SetTaskStatus redis Set error")
	}
	return nil
}

func (s *redisStorageImpl) GetTaskStatus(ctx context.Context, key string) (*types.View, error) {
	res, err := s.client.Get(ctx, s.key(statusKeyPrefix, key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, gerror.ErrStorageNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "GetTaskStatus redis Get error")
	}
	view := &types.View{}
	if err := json.Unmarshal([]byte(res), view); err != nil {
		return nil, errors.Wrap(err, "unmarshal task status error")
	}
	return view, nil
}
