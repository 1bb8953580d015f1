package agentz

import (
	"runtime"
	"sync"

	"github.com/google/uuid"
)

// idPool keeps a buffer of pre-generated transaction IDs so random ID
// generation stays off the transaction start path.
type idPool struct {
	ids    chan string
	stopCh chan struct{}
	mu     sync.Mutex
	closed bool
}

// newIDPool creates a pool holding up to capacity IDs.
// A non-positive capacity sizes the pool by CPU count.
func newIDPool(capacity int) *idPool {
	if capacity <= 0 {
		capacity = runtime.NumCPU() * 100
	}
	pool := &idPool{
		ids:    make(chan string, capacity),
		stopCh: make(chan struct{}),
	}
	go pool.refill()
	return pool
}

// Get retrieves an ID from the pool or generates one if the pool is empty.
func (p *idPool) Get() string {
	select {
	case id := <-p.ids:
		return id
	default:
		return uuid.NewString()
	}
}

// refill tops the pool up in the background until Close.
func (p *idPool) refill() {
	for {
		select {
		case <-p.stopCh:
			return
		case p.ids <- uuid.NewString():
		}
	}
}

// Close stops the refill goroutine. Safe to call multiple times.
func (p *idPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		close(p.stopCh)
		p.closed = true
	}
}
