// Package joblock implements cluster-wide, TTL-bounded mutual exclusion
// keyed by job id on top of Redis.
package joblock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "lock:"

// releaseScript deletes the lock key only if it still holds the token we
// set, so a worker can never release a lock it no longer owns (e.g. after
// TTL expiry handed it to another acquirer).
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// Lock brackets a job's run with an atomic set-if-absent acquire and a
// compare-and-delete release.
type Lock struct {
	client *redis.Client
	ttl    time.Duration
}

// New builds a Lock over an existing Redis client with the given TTL.
func New(client *redis.Client, ttl time.Duration) *Lock {
	return &Lock{client: client, ttl: ttl}
}

// Token is the opaque value returned by Acquire and required by Release.
type Token string

// ErrLocked is returned by Acquire when another worker already owns jobID.
var ErrLocked = errors.New("joblock: locked by another worker")

// Acquire performs an atomic SET NX EX against lock:<jobID>. It returns
// ErrLocked (not a hard error) when another acquirer holds the key; the
// caller is expected to short-circuit the job with a "locked" status.
func (l *Lock) Acquire(ctx context.Context, jobID string) (Token, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, keyPrefix+jobID, token, l.ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrLocked
	}
	return Token(token), nil
}

// Release deletes the lock only if it still carries token; with any other
// value in the key it is a no-op and returns no error. A lost race (TTL
// expiry followed by another acquirer taking the key) is therefore
// tolerated without removing the new owner's lock.
func (l *Lock) Release(ctx context.Context, jobID string, token Token) error {
	return releaseScript.Run(ctx, l.client, []string{keyPrefix + jobID}, string(token)).Err()
}
