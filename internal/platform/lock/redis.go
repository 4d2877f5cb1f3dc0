package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-taken by another replica is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a SET NX PX lock. The TTL bounds how long a crashed holder can
// block others; callers must finish well within it.
type Redis struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	retry  time.Duration
	wait   time.Duration
}

func NewRedis(client redis.Cmdable, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Redis{
		client: client,
		prefix: "medilink:lock:",
		ttl:    ttl,
		retry:  25 * time.Millisecond,
		wait:   ttl,
	}
}

func (r *Redis) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	name := r.prefix + key
	token := uuid.NewString()

	if err := r.obtain(ctx, name, token); err != nil {
		return err
	}
	defer func() {
		_ = releaseScript.Run(context.WithoutCancel(ctx), r.client, []string{name}, token).Err()
	}()

	return fn(ctx)
}

func (r *Redis) obtain(ctx context.Context, name, token string) error {
	deadline := time.Now().Add(r.wait)
	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, name, token, r.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire %s: %w", name, err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("acquire %s: %w", name, ErrNotAcquired)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("acquire %s: %w", name, ErrNotAcquired)
		case <-ticker.C:
		}
	}
}
