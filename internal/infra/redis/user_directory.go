package redis

import (
	"context"
	"math/rand"
	"time"

	"live-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// UserLoader fetches user records from a backing store (e.g., the auth DB).
type UserLoader interface {
	LoadUser(ctx context.Context, userID string) (domain.User, error)
}

// UserDirectory caches user records in Redis (hash per user) and falls back
// to a loader on cache miss.
// Records are stored as: HSET user:{userID} username {name} picture {url} admin {0|1}
type UserDirectory struct {
	client *redis.Client
	loader UserLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewUserDirectory(client *redis.Client, loader UserLoader, ttl time.Duration) *UserDirectory {
	return &UserDirectory{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (d *UserDirectory) GetUser(ctx context.Context, userID string) (domain.User, error) {
	key := d.key(userID)

	fields, err := d.client.HGetAll(ctx, key).Result()
	if err == nil && len(fields) > 0 {
		return userFromCache(userID, fields), nil
	}

	result, err, _ := d.sf.Do(userID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		fields, err := d.client.HGetAll(ctx, key).Result()
		if err == nil && len(fields) > 0 {
			return userFromCache(userID, fields), nil
		}

		user, err := d.loader.LoadUser(ctx, userID)
		if err != nil {
			return domain.User{}, err
		}

		admin := "0"
		if user.IsAdmin {
			admin = "1"
		}
		pipe := d.client.Pipeline()
		pipe.HSet(ctx, key, "username", user.Username, "picture", user.ProfilePicture, "admin", admin)
		if ttl := d.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return user, nil
	})
	if err != nil {
		return domain.User{}, err
	}
	return result.(domain.User), nil
}

func (d *UserDirectory) key(userID string) string {
	return "user:" + userID
}

func userFromCache(userID string, fields map[string]string) domain.User {
	return domain.User{
		ID:             userID,
		Username:       fields["username"],
		ProfilePicture: fields["picture"],
		IsAdmin:        fields["admin"] == "1",
	}
}

func (d *UserDirectory) ttlWithJitter() time.Duration {
	if d.ttl <= 0 {
		return 0
	}
	jitterMax := int64(d.ttl) / 10
	return d.ttl + time.Duration(d.rnd.Int63n(jitterMax+1))
}
