package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// ErrLockHeld means another instance is running the batch.
var ErrLockHeld = errors.New("scheduler run lock held by another instance")

// RunLock keeps two instances from running the same batch at once.
type RunLock interface {
	// Acquire returns a release function, or ErrLockHeld when the lock is taken.
	Acquire(ctx context.Context) (release func(), err error)
}

type NoopRunLock struct{}

func (NoopRunLock) Acquire(ctx context.Context) (func(), error) {
	return func() {}, nil
}

const defaultLockKey = "smartspend:scheduler:run"

// releaseScript deletes the key only if it still holds our token, so an expired lock that was
// taken over by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisRunLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisRunLock(client *redis.Client, ttl time.Duration) *RedisRunLock {
	return &RedisRunLock{client: client, key: defaultLockKey, ttl: ttl}
}

func (l *RedisRunLock) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("could not acquire run lock %s: %w", l.key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return func() {
		// released on a fresh context, the caller's may already be done
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{l.key}, token).Err(); err != nil {
			log.Warnf("could not release run lock %s: %v", l.key, err)
		}
	}, nil
}
