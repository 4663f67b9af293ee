package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Neskrux/CrmInvest-sub003/internal/config"
)

var (
	// ErrHeld is returned when another holder owns the key.
	ErrHeld = errors.New("lock is held")
	// ErrLost is returned by Extend when the key expired or changed hands.
	ErrLost = errors.New("lock is no longer held")
)

// Lease is a held lock.
type Lease interface {
	// Extend resets the expiry to ttl from now while the lock is still ours.
	Extend(ctx context.Context, ttl time.Duration) error
	// Release gives the lock back. It is safe to call more than once.
	Release(ctx context.Context) error
}

// Locker hands out short-lived exclusive locks keyed by name.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// Key builds the run lock name for one notification kind on one day.
func Key(kind string, day time.Time) string {
	return fmt.Sprintf("boleto-notify:%s:%s", kind, day.Format(time.DateOnly))
}

// New returns a Redis-backed locker when Redis is configured and a no-op
// locker otherwise.
func New(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (Locker, error) {
	if !cfg.Redis.Enabled() {
		log.Info("redis not configured, run lock disabled")
		return Noop{}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	log.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			log.Info("closing Redis connection")
			return rdb.Close()
		},
	})
	return NewRedisLocker(rdb), nil
}

type redisStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// releaseScript deletes the key only if it still holds our token.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// extendScript moves the expiry only if the key still holds our token.
const extendScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`

type RedisLocker struct {
	rdb redisStore
}

func NewRedisLocker(rdb redisStore) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return &redisLease{rdb: l.rdb, key: key, token: token}, nil
}

type redisLease struct {
	rdb      redisStore
	key      string
	token    string
	released bool
}

func (l *redisLease) Extend(ctx context.Context, ttl time.Duration) error {
	if l.released {
		return ErrLost
	}
	n, err := l.rdb.Eval(ctx, extendScript, []string{l.key}, l.token, ttl.Milliseconds()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("extend %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrLost
	}
	return nil
}

func (l *redisLease) Release(ctx context.Context) error {
	if l.released {
		return nil
	}
	l.released = true
	if err := l.rdb.Eval(ctx, releaseScript, []string{l.key}, l.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}

// Noop always grants the lock.
type Noop struct{}

func (Noop) Acquire(context.Context, string, time.Duration) (Lease, error) {
	return noopLease{}, nil
}

type noopLease struct{}

func (noopLease) Extend(context.Context, time.Duration) error { return nil }
func (noopLease) Release(context.Context) error               { return nil }
