package dedup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeduper_Seen(t *testing.T) {
	ctx := context.Background()
	d := NewMemory(time.Minute)

	dup, err := d.Seen(ctx, "a")
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = d.Seen(ctx, "a")
	require.NoError(t, err)
	assert.True(t, dup)

	dup, err = d.Seen(ctx, "b")
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestMemoryDeduper_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := newMemoryDeduper(time.Minute, func() time.Time { return now })

	dup, _ := d.Seen(ctx, "a")
	assert.False(t, dup)

	now = now.Add(2 * time.Minute)
	dup, _ = d.Seen(ctx, "a")
	assert.False(t, dup, "entry should have expired")

	// Expired entries are collected once the GC horizon passes.
	_, _ = d.Seen(ctx, "b")
	now = now.Add(5 * time.Minute)
	_, _ = d.Seen(ctx, "c")
	d.mu.Lock()
	_, hasB := d.seen["b"]
	d.mu.Unlock()
	assert.False(t, hasB)
}

func TestMemoryDeduper_Concurrent(t *testing.T) {
	ctx := context.Background()
	d := NewMemory(time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	firsts := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dup, err := d.Seen(ctx, "same")
			if err == nil && !dup {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, firsts)
}

func TestNew_EmptyAddrUsesMemory(t *testing.T) {
	d, err := New("", "", 0, 0)
	require.NoError(t, err)
	_, ok := d.(*memoryDeduper)
	assert.True(t, ok)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "notification|ORD-1|APPROVED|abc", Key("notification", "ORD-1", "APPROVED", "abc"))
	assert.NotEqual(t, Key("notification", "ORD-1", "WAITING", "abc"), Key("notification", "ORD-1", "APPROVED", "abc"))
}

func TestMemoryDeduper_Forget(t *testing.T) {
	ctx := context.Background()
	d := NewMemory(time.Minute)

	dup, err := d.Seen(ctx, "a")
	require.NoError(t, err)
	assert.False(t, dup)

	require.NoError(t, d.Forget(ctx, "a"))
	require.NoError(t, d.Forget(ctx, "never-seen"))

	dup, err = d.Seen(ctx, "a")
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = d.Seen(ctx, "a")
	require.NoError(t, err)
	assert.True(t, dup)
}
