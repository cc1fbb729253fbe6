package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/frahmantamala/leave-management/internal"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker keeps a job to one running execution across the whole deployment.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// MemoryLocker is enough when a single process runs the scheduler.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]time.Time), now: time.Now}
}

// WithClock replaces the time source used to expire locks.
func (l *MemoryLocker) WithClock(now func() time.Time) *MemoryLocker {
	l.now = now
	return l
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expires, ok := l.held[key]; ok && now.Before(expires) {
		return false, nil
	}
	l.held[key] = now.Add(ttl)
	return true, nil
}

func (l *MemoryLocker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.held, key)
	l.mu.Unlock()
	return nil
}

// releaseScript deletes the key only while this owner still holds it, so an
// expired lock taken over by another replica is left alone.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// RedisLocker stores the lock as a key with a TTL; a crashed holder frees it
// once the TTL passes.
type RedisLocker struct {
	client redis.Cmdable
	owner  string
}

func NewRedisLocker(client redis.Cmdable, owner string) *RedisLocker {
	return &RedisLocker{client: client, owner: owner}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	return ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, key string) error {
	if err := l.client.Eval(ctx, releaseScript, []string{key}, l.owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}

// NewLocker builds the configured backend. The returned close function
// releases the redis connection, if any.
func NewLocker(cfg internal.SchedulerConfig, logger *slog.Logger) (Locker, func() error, error) {
	if cfg.LockBackend != "redis" {
		return NewMemoryLocker(), func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}

	owner := cfg.InstanceID
	if owner == "" {
		host, _ := os.Hostname()
		owner = host + "-" + uuid.NewString()
	}
	logger.Info("scheduler lock backed by redis", "addr", cfg.RedisAddr, "owner", owner)
	return NewRedisLocker(client, owner), client.Close, nil
}
