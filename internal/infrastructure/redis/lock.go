package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Only the holder's token may delete the claim key, so a claim that
// expired and was re-acquired by another consumer is never clobbered.
var releaseClaimScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// ClaimLock is a single-holder lease backed by SET NX. The dispatcher takes
// one per effect message so that overlapping consumers in the same group
// never execute the same effect twice.
type ClaimLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
	held   bool
}

func NewClaimLock(client *redis.Client, key string, ttl time.Duration) *ClaimLock {
	return &ClaimLock{
		client: client,
		key:    "claim:" + key,
		token:  uuid.New().String(),
		ttl:    ttl,
	}
}

// Acquire takes the lease if nobody holds it. A false return with nil error
// means another consumer holds the claim.
func (l *ClaimLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire claim %s: %w", l.key, err)
	}
	l.held = ok
	return ok, nil
}

// Release drops the lease if this instance still holds it.
func (l *ClaimLock) Release(ctx context.Context) error {
	if !l.held {
		return nil
	}

	res, err := releaseClaimScript.Run(ctx, l.client, []string{l.key}, l.token).Result()
	if err != nil {
		return fmt.Errorf("release claim %s: %w", l.key, err)
	}
	if n, ok := res.(int64); !ok || n == 0 {
		return errors.New("claim expired or taken by another holder")
	}

	l.held = false
	return nil
}
