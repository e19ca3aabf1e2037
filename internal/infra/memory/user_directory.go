package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// UserLoader fetches user records from a backing store (e.g., the auth DB).
type UserLoader interface {
	LoadUser(ctx context.Context, userID string) (domain.User, error)
}

// UserDirectory caches user lookups with TTL to avoid hitting the backing
// store on every join and broadcast.
type UserDirectory struct {
	loader UserLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedUser
}

type cachedUser struct {
	user      domain.User
	expiresAt time.Time
}

func NewUserDirectory(loader UserLoader, ttl time.Duration) *UserDirectory {
	return &UserDirectory{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedUser),
	}
}

func (d *UserDirectory) GetUser(ctx context.Context, userID string) (domain.User, error) {
	now := d.clock()

	d.mu.RLock()
	if entry, ok := d.cache[userID]; ok && entry.expiresAt.After(now) {
		d.mu.RUnlock()
		return entry.user, nil
	}
	d.mu.RUnlock()

	result, err, _ := d.sf.Do(userID, func() (interface{}, error) {
		now := d.clock()
		d.mu.RLock()
		if entry, ok := d.cache[userID]; ok && entry.expiresAt.After(now) {
			d.mu.RUnlock()
			return entry.user, nil
		}
		d.mu.RUnlock()

		user, err := d.loader.LoadUser(ctx, userID)
		if err != nil {
			return domain.User{}, err
		}

		d.mu.Lock()
		d.cache[userID] = cachedUser{
			user:      user,
			expiresAt: now.Add(d.ttlWithJitter()),
		}
		d.mu.Unlock()
		return user, nil
	})
	if err != nil {
		return domain.User{}, err
	}
	return result.(domain.User), nil
}

func (d *UserDirectory) ttlWithJitter() time.Duration {
	if d.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(d.ttl) / 10
	return d.ttl + time.Duration(d.rnd.Int63n(jitterMax+1))
}

// StaticUserLoader serves users from an in-memory map (tests/demo mode).
type StaticUserLoader struct {
	users map[string]domain.User
}

func NewStaticUserLoader(users map[string]domain.User) *StaticUserLoader {
	return &StaticUserLoader{users: users}
}

func (l *StaticUserLoader) LoadUser(_ context.Context, userID string) (domain.User, error) {
	if user, ok := l.users[userID]; ok {
		return user, nil
	}
	return domain.User{}, domain.NotFoundf("user %s not found", userID)
}
