// Package redisstore keeps live interview session state in Redis between
// HTTP requests, with a per-session lock serializing access. One
// interview is strictly sequential; concurrent requests for the same
// session contend on the lock rather than interleaving mutations.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-interviewer/internal/domain"
)

const (
	sessionKeyPrefix = "interview:session:"
	lockKeyPrefix    = "interview:lock:"
	lockPollInterval = 50 * time.Millisecond
)

// unlockScript releases a lock only if the caller still owns it.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Store implements domain.SessionStore on Redis.
type Store struct {
	rdb     redis.UniversalClient
	ttl     time.Duration
	lockTTL time.Duration
}

// New constructs a Store. ttl bounds idle session lifetime; lockTTL
// bounds one request's exclusive hold.
func New(rdb redis.UniversalClient, ttl, lockTTL time.Duration) *Store {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &Store{rdb: rdb, ttl: ttl, lockTTL: lockTTL}
}

// Save stores the session as JSON, refreshing its TTL.
func (s *Store) Save(ctx domain.Context, sess *domain.Session) error {
	tracer := otel.Tracer("repo.redis")
	ctx, span := tracer.Start(ctx, "session_store.Save")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "redis"))

	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("op=session_store.save: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKeyPrefix+sess.ID, b, s.ttl).Err(); err != nil {
		return fmt.Errorf("op=session_store.save: %w", err)
	}
	return nil
}

// Load fetches a session or returns domain.ErrNotFound.
func (s *Store) Load(ctx domain.Context, id string) (*domain.Session, error) {
	tracer := otel.Tracer("repo.redis")
	ctx, span := tracer.Start(ctx, "session_store.Load")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "redis"))

	b, err := s.rdb.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("op=session_store.load: %w", err)
	}
	var sess domain.Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, fmt.Errorf("op=session_store.load: %w", err)
	}
	return &sess, nil
}

// Delete removes a session. Deleting an absent session is not an error.
func (s *Store) Delete(ctx domain.Context, id string) error {
	if err := s.rdb.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("op=session_store.delete: %w", err)
	}
	return nil
}

// Lock acquires the per-session lock, polling until the context expires.
// The returned unlock releases only the caller's own hold.
func (s *Store) Lock(ctx domain.Context, id string) (func(), error) {
	key := lockKeyPrefix + id
	token := uuid.New().String()

	for {
		ok, err := s.rdb.SetNX(ctx, key, token, s.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("op=session_store.lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: session %s is busy", domain.ErrConflict, id)
		case <-time.After(lockPollInterval):
		}
	}

	unlock := func() {
		// Detached from the request context so unlock still runs when
		// the request is cancelled. An expired lock is already released.
		bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = unlockScript.Run(bg, s.rdb, []string{key}, token).Err()
	}
	return unlock, nil
}
