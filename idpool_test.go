package agentz

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestIDPoolReturnsUUIDs(t *testing.T) {
	pool := newIDPool(10)
	defer pool.Close()

	for i := 0; i < 50; i++ {
		id := pool.Get()
		if _, err := uuid.Parse(id); err != nil {
			t.Fatalf("Expected UUID, got %q: %v", id, err)
		}
	}
}

func TestIDPoolUniqueness(t *testing.T) {
	pool := newIDPool(16)
	defer pool.Close()

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := pool.Get()
				mu.Lock()
				if seen[id] {
					t.Errorf("Duplicate ID %s", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}

func TestIDPoolDefaultCapacity(t *testing.T) {
	pool := newIDPool(0)
	defer pool.Close()

	if cap(pool.ids) == 0 {
		t.Error("Expected non-zero default capacity")
	}
}

func TestIDPoolCloseIdempotent(t *testing.T) {
	pool := newIDPool(1)
	pool.Close()
	pool.Close()

	// Still usable after close.
	if pool.Get() == "" {
		t.Error("Expected ID after close")
	}
}
