package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	errx "github.com/smartselect/shortlist/internal/core/error"
	logx "github.com/smartselect/shortlist/pkg/logger"
)

// RedisStore keeps client state in redis under "<namespace>:state:<key>".
type RedisStore struct {
	rdb       redis.Cmdable
	namespace string
	closer    func() error
}

func NewRedisStore(rdb redis.Cmdable, namespace string) *RedisStore {
	if namespace == "" {
		namespace = "shortlist"
	}
	s := &RedisStore{rdb: rdb, namespace: namespace}
	if c, ok := rdb.(interface{ Close() error }); ok {
		s.closer = c.Close
	}
	return s
}

func (r *RedisStore) stateKey(key string) string {
	return fmt.Sprintf("%s:state:%s", r.namespace, key)
}

func (r *RedisStore) Get(ctx context.Context, key string, dst any) (bool, error) {
	k := r.stateKey(key)
	raw, err := r.rdb.Get(ctx, k).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		logx.Error().Err(err).Str("key", k).Msg("failed to read state from redis")
		return false, errx.WrapRedis(err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		logx.Warn().Err(err).Str("key", k).Msg("discarding undecodable state value")
		return false, nil
	}
	return true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	k := r.stateKey(key)
	if err := r.rdb.Set(ctx, k, b, 0).Err(); err != nil {
		logx.Error().Err(err).Str("key", k).Msg("failed to write state to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	k := r.stateKey(key)
	if err := r.rdb.Del(ctx, k).Err(); err != nil {
		logx.Error().Err(err).Str("key", k).Msg("failed to delete state from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

var _ Store = (*RedisStore)(nil)
