package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Locker serializes uploads. TryLock never waits: a held lock yields ErrBusy.
type Locker interface {
	TryLock(ctx context.Context) (unlock func(), err error)
}

// MemoryLocker guards a single process.
type MemoryLocker struct {
	mu sync.Mutex
}

func (l *MemoryLocker) TryLock(ctx context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, ErrBusy
	}
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, nil
}

// RedisLocker guards every instance sharing a Redis. The key expires after
// TTL so a crashed holder cannot wedge uploads.
type RedisLocker struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLocker{rdb: rdb, key: "cekpohon:lock:upload", ttl: ttl}
}

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func (l *RedisLocker) TryLock(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBusy
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Err()
		})
	}, nil
}
