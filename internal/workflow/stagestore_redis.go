package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStageStore keeps stage data in redis so attempts survive process
// restarts and the service can run with multiple replicas. Keys carry a TTL:
// an abandoned attempt simply ages out instead of lingering forever.
type redisStageStore struct {
	rdb *redis.Client
	ttl time.Duration
}

const redisKeyPrefix = "peerinst:stage:"

// DefaultStageTTL matches a generous session length.
const DefaultStageTTL = 24 * time.Hour

func NewRedisStageStore(rdb *redis.Client, ttl time.Duration) StageStore {
	if ttl <= 0 {
		ttl = DefaultStageTTL
	}
	return &redisStageStore{rdb: rdb, ttl: ttl}
}

func (r *redisStageStore) Get(ctx context.Context, key string) (*StageData, error) {
	buf, err := r.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sd StageData
	if err := json.Unmarshal(buf, &sd); err != nil {
		return nil, err
	}
	return &sd, nil
}

func (r *redisStageStore) Put(ctx context.Context, key string, data *StageData) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, redisKeyPrefix+key, buf, r.ttl).Err()
}

func (r *redisStageStore) Clear(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, redisKeyPrefix+key).Err()
}
