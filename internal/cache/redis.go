package cache

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound est renvoyée quand la clé n'existe pas (ou a expiré).
var ErrNotFound = errors.New("cache: key not found")

// KV est le contrat clé/valeur à expiration utilisé par les OTP et les jetons.
type KV interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Delete(ctx context.Context, keys ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	// ReplaceSet remplace atomiquement le contenu d'un set par un seul membre.
	ReplaceSet(ctx context.Context, key, member string, ttl time.Duration) error
}

// RedisKV implémente KV sur go-redis.
type RedisKV struct {
	rdb redis.UniversalClient
}

var _ KV = (*RedisKV)(nil)

func NewRedisKV(rdb redis.UniversalClient) *RedisKV {
	return &RedisKV{rdb: rdb}
}

func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return errors.Wrapf(r.rdb.Set(ctx, key, value, ttl).Err(), "set %s", key)
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "get %s", key)
	}
	return v, nil
}

func (r *RedisKV) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, errors.Wrapf(err, "exists %s", key)
	}
	return n > 0, nil
}

// TTL renvoie 0 pour une clé absente ou sans expiration.
func (r *RedisKV) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := r.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "ttl %s", key)
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (r *RedisKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return errors.Wrap(r.rdb.Del(ctx, keys...).Err(), "del")
}

func (r *RedisKV) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := r.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "smembers %s", key)
	}
	return members, nil
}

func (r *RedisKV) ReplaceSet(ctx context.Context, key, member string, ttl time.Duration) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.SAdd(ctx, key, member)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return errors.Wrapf(err, "replace set %s", key)
}
