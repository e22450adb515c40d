package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreIncrement(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()

	count, reset := store.Increment("client-a")
	assert.Equal(t, 1, count)
	assert.WithinDuration(t, time.Now().Add(time.Minute), reset, time.Second)

	count, _ = store.Increment("client-a")
	assert.Equal(t, 2, count)

	// Independent keys have independent counters.
	count, _ = store.Increment("client-b")
	assert.Equal(t, 1, count)
}

func TestMemoryStoreWindowReset(t *testing.T) {
	store := NewMemoryStore(50 * time.Millisecond)
	defer store.Close()

	for i := 0; i < 5; i++ {
		store.Increment("client-a")
	}
	count, _ := store.Peek("client-a")
	require.Equal(t, 5, count)

	time.Sleep(80 * time.Millisecond)

	count, _ = store.Increment("client-a")
	assert.Equal(t, 1, count, "a new window starts from zero")
}

func TestMemoryStorePeekDoesNotCount(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()

	count, _ := store.Peek("client-a")
	assert.Equal(t, 0, count)

	store.Increment("client-a")
	for i := 0; i < 10; i++ {
		count, _ = store.Peek("client-a")
		assert.Equal(t, 1, count)
	}
}

func TestMemoryStoreConcurrentIncrements(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()

	const goroutines = 50
	const perGoroutine = 20

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				store.Increment("shared")
			}
		}()
	}
	wg.Wait()

	count, _ := store.Peek("shared")
	assert.Equal(t, goroutines*perGoroutine, count, "no increments may be lost under contention")
}

func TestMemoryStoreRemoveExpired(t *testing.T) {
	store := NewMemoryStore(10 * time.Millisecond)
	defer store.Close()

	for i := 0; i < 10; i++ {
		store.Increment(fmt.Sprintf("client-%d", i))
	}
	time.Sleep(30 * time.Millisecond)

	store.removeExpired()

	store.mu.Lock()
	remaining := len(store.entries)
	store.mu.Unlock()
	assert.Zero(t, remaining)
}

func TestMemoryStoreCloseIdempotent(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	store.Close()
	store.Close()
}
