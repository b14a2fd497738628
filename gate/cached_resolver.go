package gate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// CachedResolver keeps resolved roles in process for ttl. Concurrent misses
// for one user share a single lookup, so the page burst after a login
// reaches the users table (or Redis) once.
//
// An Invalidate that races with an in-flight lookup wins: the lookup's
// result is returned to its callers but not stored.
type CachedResolver[U comparable] struct {
	inner ProfileResolver[U]
	ttl   time.Duration
	now   func() time.Time

	mu      sync.RWMutex
	entries map[U]roleEntry
	epoch   uint64
	flight  singleflight.Group
}

type roleEntry struct {
	profile Profile
	expires time.Time
}

func NewCachedResolver[U comparable](inner ProfileResolver[U], ttl time.Duration) *CachedResolver[U] {
	return &CachedResolver[U]{
		inner:   inner,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[U]roleEntry),
	}
}

func (r *CachedResolver[U]) Resolve(ctx context.Context, user U) (Profile, error) {
	r.mu.RLock()
	e, ok := r.entries[user]
	epoch := r.epoch
	r.mu.RUnlock()
	if ok && r.now().Before(e.expires) {
		return e.profile, nil
	}

	v, err, _ := r.flight.Do(fmt.Sprint(user), func() (any, error) {
		p, err := r.inner.Resolve(ctx, user)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		if r.epoch == epoch {
			r.entries[user] = roleEntry{profile: p, expires: r.now().Add(r.ttl)}
		}
		r.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	p, _ := v.(Profile)
	return p, nil
}

// Invalidate drops user here and in the inner resolver when it caches too.
// Role and password edits in settings reach it through AuthGate.InvalidateUser.
func (r *CachedResolver[U]) Invalidate(user U) {
	r.mu.Lock()
	delete(r.entries, user)
	r.epoch++
	r.mu.Unlock()
	r.flight.Forget(fmt.Sprint(user))
	if inv, ok := r.inner.(interface{ Invalidate(U) }); ok {
		inv.Invalidate(user)
	}
}

// InvalidateAll empties the in-process cache. Redis entries expire on their own.
func (r *CachedResolver[U]) InvalidateAll() {
	r.mu.Lock()
	r.entries = make(map[U]roleEntry)
	r.epoch++
	r.mu.Unlock()
}
