package agentz

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector buffers finished transactions until the next harvest.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field alignment optimized for readability over memory efficiency
type Collector struct {
	txns         []*Transaction
	txnCh        chan *Transaction
	stopCh       chan struct{}
	done         chan struct{}
	droppedCount atomic.Int64
	name         string
	mu           sync.Mutex
	closeOnce    sync.Once
	closed       atomic.Bool
	syncMode     atomic.Bool
}

// NewCollector creates a collector with the given name and queue size.
func NewCollector(name string, bufferSize int) *Collector {
	c := &Collector{
		name:   name,
		txns:   make([]*Transaction, 0, 8),
		txnCh:  make(chan *Transaction, bufferSize),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.start()
	return c
}

// Name returns the collector's name.
func (c *Collector) Name() string { return c.name }

// start runs the collector's main loop, receiving transactions from the queue.
func (c *Collector) start() {
	defer close(c.done)

	for {
		select {
		case <-c.stopCh:
			// Drain what is already queued before shutdown.
			for {
				select {
				case txn := <-c.txnCh:
					c.buffer(txn)
				default:
					return
				}
			}
		case txn := <-c.txnCh:
			c.buffer(txn)
		}
	}
}

// Close stops the collector's goroutine after draining the queue.
// Safe to call multiple times.
func (c *Collector) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.stopCh)
		select {
		case <-c.done:
		case <-time.After(100 * time.Millisecond):
		}
	})
}

// Collect queues a finished transaction for harvest.
// If the queue is full, or the collector is closed, the transaction is
// dropped and the drop counter is incremented.
func (c *Collector) Collect(txn *Transaction) {
	if txn == nil || c.closed.Load() {
		c.droppedCount.Add(1)
		return
	}

	if c.syncMode.Load() {
		c.buffer(txn)
		return
	}

	select {
	case c.txnCh <- txn:
	default:
		c.droppedCount.Add(1)
	}
}

func (c *Collector) buffer(txn *Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txns = append(c.txns, txn)
}

// Export returns every buffered transaction and clears the buffer.
func (c *Collector) Export() []*Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.txns) == 0 {
		return nil
	}

	result := make([]*Transaction, len(c.txns))
	copy(result, c.txns)

	// Shrink only when the buffer is very oversized to avoid allocation churn.
	if cap(c.txns) > 256 && len(c.txns) < cap(c.txns)/8 {
		newCap := cap(c.txns) / 4
		if newCap < 32 {
			newCap = 32
		}
		c.txns = make([]*Transaction, 0, newCap)
	} else {
		clear(c.txns)
		c.txns = c.txns[:0]
	}

	return result
}

// Count returns the number of buffered transactions.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.txns)
}

// DroppedCount returns the number of transactions dropped due to backpressure.
func (c *Collector) DroppedCount() int64 {
	return c.droppedCount.Load()
}

// SetSyncMode makes Collect buffer directly instead of queueing.
// Used by tests that need deterministic collection.
func (c *Collector) SetSyncMode(sync bool) {
	c.syncMode.Store(sync)
}

// Reset clears buffered transactions and the drop counter.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.txns)
	c.txns = c.txns[:0]
	c.droppedCount.Store(0)
}
