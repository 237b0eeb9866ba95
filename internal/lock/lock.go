// Package lock is the distributed serialization optimization in front of
// the document store's version gate: acquiring it first means a losing
// writer finds out it lost before doing any OT work, instead of after. The
// version gate in internal/store remains the actual correctness backstop
// if the lock is ever unavailable or its TTL expires mid-edit.
//
// Grounded in the teacher pack's only SETNX-style compare-and-mutate
// pattern, social-contact-service/backend/internal/cache/redis_interaction.go,
// which uses an Eval'd Lua script to make a check-then-act sequence atomic.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld means TryAcquire found the lock already held by someone else.
var ErrNotHeld = errors.New("lock: not held")

// Service acquires and releases a fenced, TTL-bounded lock on a document
// ID. The returned token must be presented back to Release so a holder
// whose TTL already expired can never release the next holder's lock.
type Service struct {
	rdb *redis.Client
}

func NewService(rdb *redis.Client) *Service {
	return &Service{rdb: rdb}
}

func keyFor(docID string) string {
	return "lock:doc:" + docID
}

// TryAcquire attempts to take the lock for docID, returning a fencing
// token on success. It does not block or retry; callers that want a
// bounded wait should loop with their own backoff.
func (s *Service) TryAcquire(ctx context.Context, docID string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := s.rdb.SetNX(ctx, keyFor(docID), token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotHeld
	}
	return token, nil
}

// releaseScript deletes the key only if it still holds the caller's token,
// so a holder that outlived its own TTL can never delete the next
// holder's lock out from under it.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// Release frees the lock if and only if token still matches the current
// holder. A mismatch (already expired and re-acquired by someone else) is
// not an error: the caller no longer holds anything to free.
func (s *Service) Release(ctx context.Context, docID, token string) error {
	_, err := redis.NewScript(releaseScript).Run(ctx, s.rdb, []string{keyFor(docID)}, token).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	return nil
}

// Extend refreshes the TTL on a held lock, again only if token still
// matches, so a slow op in progress doesn't lose the lock out from under
// it before it can commit.
const extendScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`

func (s *Service) Extend(ctx context.Context, docID, token string, ttl time.Duration) error {
	ms := ttl.Milliseconds()
	res, err := redis.NewScript(extendScript).Run(ctx, s.rdb, []string{keyFor(docID)}, token, ms).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	if n, ok := res.(int64); ok && n == 0 {
		return ErrNotHeld
	}
	return nil
}
