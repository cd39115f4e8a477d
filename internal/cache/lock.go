package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another process holds the merge lock.
var ErrLocked = errors.New("merge already in progress")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a held single-writer lock. It expires after its TTL if the holder
// dies without releasing it.
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// AcquireLock takes key with SET NX, failing with ErrLocked if it is held.
func AcquireLock(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	ok, err := client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	return &Lock{client: client, key: key, token: token}, nil
}

// Release deletes the lock only if this holder still owns it.
func (l *Lock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}

// Cooldown rate-limits manual triggers: at most one per Period.
type Cooldown struct {
	Client *redis.Client
	Key    string
	Period time.Duration
}

// Allow reports whether a trigger may run now. When it may not, wait is the
// time left until the next allowed trigger.
func (c *Cooldown) Allow(ctx context.Context) (ok bool, wait time.Duration, err error) {
	if c.Period <= 0 {
		return true, 0, nil
	}
	key := c.Key
	if key == "" {
		key = TriggerKey
	}

	ok, err = c.Client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), c.Period).Result()
	if err != nil || ok {
		return ok, 0, err
	}

	wait, err = c.Client.PTTL(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if wait < 0 {
		wait = 0
	}
	return false, wait, nil
}

// Locker hands out the merge lock stored at Key.
type Locker struct {
	Client *redis.Client
	Key    string
	TTL    time.Duration
}

// Acquire takes the lock and returns its release function.
func (l *Locker) Acquire(ctx context.Context) (func(context.Context) error, error) {
	key := l.Key
	if key == "" {
		key = LockKey
	}
	lock, err := AcquireLock(ctx, l.Client, key, l.TTL)
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}
