package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	dErrors "qochi/pkg/domain-errors"
)

const (
	defaultLockTTL   = 10 * time.Second
	defaultLockRetry = 20 * time.Millisecond
)

// unlockScript deletes the key only if this holder still owns it, so an
// expired lock re-acquired by someone else is never released by us.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a distributed lock over SET NX PX. Keys are namespaced by
// prefix so several registries can share one Redis.
type Locker struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	retry  time.Duration
	logger *slog.Logger
}

type LockerOption func(*Locker)

// WithLockTTL bounds how long a crashed holder can block others.
func WithLockTTL(ttl time.Duration) LockerOption {
	return func(l *Locker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

func WithLockRetry(d time.Duration) LockerOption {
	return func(l *Locker) {
		if d > 0 {
			l.retry = d
		}
	}
}

func WithLockLogger(logger *slog.Logger) LockerOption {
	return func(l *Locker) {
		l.logger = logger
	}
}

func NewLocker(client redis.Cmdable, prefix string, opts ...LockerOption) *Locker {
	l := &Locker{
		client: client,
		prefix: "qochi:lock:" + prefix + ":",
		ttl:    defaultLockTTL,
		retry:  defaultLockRetry,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock blocks until key is acquired or ctx ends.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		switch {
		case err == nil && ok:
			return l.unlocker(fullKey, token), nil
		case err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "lock aborted: context cancelled")
		case err != nil:
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "lock store unavailable")
		}

		select {
		case <-ctx.Done():
			return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "lock aborted: context cancelled")
		case <-ticker.C:
		}
	}
}

func (l *Locker) unlocker(key, token string) func() {
	return func() {
		// Release even if the caller's context is already done.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := unlockScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("failed to release lock; it will expire", "key", key, "error", err)
		}
	}
}
