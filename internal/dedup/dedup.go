// Package dedup remembers which verified callbacks were already processed so
// gateway retries are acknowledged without being handled twice.
package dedup

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper tracks processed callback keys.
type Deduper interface {
	// Seen marks key as processed and reports whether it already was.
	Seen(ctx context.Context, key string) (bool, error)
	// Forget releases key so the next delivery is processed again.
	Forget(ctx context.Context, key string) error
}

type redisDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (d *redisDeduper) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+":"+key, "1", d.ttl).Result()
	if err != nil {
		return false, err
	}
	// false => already exists => duplicate
	return !ok, nil
}

func (d *redisDeduper) Forget(ctx context.Context, key string) error {
	return d.client.Del(ctx, d.prefix+":"+key).Err()
}

type memoryDeduper struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	ttl    time.Duration
	nextGC time.Time
	now    func() time.Time
}

// NewMemory returns a process-local deduper.
func NewMemory(ttl time.Duration) Deduper {
	return newMemoryDeduper(ttl, time.Now)
}

func newMemoryDeduper(ttl time.Duration, now func() time.Time) *memoryDeduper {
	return &memoryDeduper{
		seen:   make(map[string]time.Time),
		ttl:    ttl,
		nextGC: now().Add(ttl),
		now:    now,
	}
}

func (d *memoryDeduper) Seen(_ context.Context, key string) (bool, error) {
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if exp, ok := d.seen[key]; ok && exp.After(now) {
		return true, nil
	}

	d.seen[key] = now.Add(d.ttl)
	if now.After(d.nextGC) {
		for k, exp := range d.seen {
			if exp.Before(now) {
				delete(d.seen, k)
			}
		}
		d.nextGC = now.Add(d.ttl)
	}

	return false, nil
}

func (d *memoryDeduper) Forget(_ context.Context, key string) error {
	d.mu.Lock()
	delete(d.seen, key)
	d.mu.Unlock()
	return nil
}

// New builds a Redis deduper and falls back to in-memory on failure.
func New(addr, pass string, db int, ttl time.Duration) (Deduper, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if addr == "" {
		return NewMemory(ttl), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return NewMemory(ttl), err
	}

	return &redisDeduper{
		client: client,
		prefix: "ipg:callback",
		ttl:    ttl,
	}, nil
}

// Key identifies one gateway delivery: the same order, outcome and digest
// arriving again is a retry.
func Key(variant, orderID, gatewayStatus, suppliedHash string) string {
	return strings.Join([]string{variant, orderID, gatewayStatus, suppliedHash}, "|")
}
