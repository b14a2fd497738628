package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const noRole = "-"

// RedisResolver caches resolved role names in Redis so several app instances
// share one view of who holds which role. Profiles are rebuilt from roles.
// Redis failures fall through to the inner resolver.
type RedisResolver[U comparable] struct {
	inner   ProfileResolver[U]
	client  *redis.Client
	roles   RoleTable
	ttl     time.Duration
	prefix  string
	OnError func(op string, err error)
}

// NewRedisResolver wraps inner with a Redis-backed cache.
func NewRedisResolver[U comparable](inner ProfileResolver[U], client *redis.Client, roles RoleTable, ttl time.Duration) *RedisResolver[U] {
	return &RedisResolver[U]{
		inner:  inner,
		client: client,
		roles:  roles,
		ttl:    ttl,
		prefix: "role:",
	}
}

func (r *RedisResolver[U]) key(user U) string {
	return r.prefix + fmt.Sprint(user)
}

func (r *RedisResolver[U]) report(op string, err error) {
	if r.OnError != nil {
		r.OnError(op, err)
	}
}

// Resolve reads the cached role name, falling back to inner on a miss or error.
func (r *RedisResolver[U]) Resolve(ctx context.Context, user U) (Profile, error) {
	name, err := r.client.Get(ctx, r.key(user)).Result()
	switch {
	case err == nil:
		if name == noRole {
			return nil, nil
		}
		if p, lerr := r.roles.Lookup(name); lerr == nil {
			return p, nil
		}
	case !errors.Is(err, redis.Nil):
		r.report("get", err)
	}

	profile, err := r.inner.Resolve(ctx, user)
	if err != nil {
		return nil, err
	}
	value := noRole
	if profile != nil {
		value = profile.Name()
	}
	if err := r.client.Set(ctx, r.key(user), value, r.ttl).Err(); err != nil {
		r.report("set", err)
	}
	return profile, nil
}

// Invalidate drops the cached role for user.
func (r *RedisResolver[U]) Invalidate(user U) {
	if err := r.client.Del(context.Background(), r.key(user)).Err(); err != nil {
		r.report("del", err)
	}
}
