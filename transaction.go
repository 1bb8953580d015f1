package agentz

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/agentz/attributes"
)

// Attribute scopes.
const (
	TransactionScope = "transaction"
	SegmentScope     = "segment"
)

// Transaction is the root container for one logical unit of work.
// Safe for concurrent use: segments may be created and ended from any goroutine.
//
//nolint:govet // Field order groups identity, tree and state
type Transaction struct {
	agent    *Agent
	id       string
	root     *Segment
	attrs    *attributes.Attributes
	name     string
	segments []*Segment
	mu       sync.RWMutex
	finished atomic.Bool
	ignored  atomic.Bool
}

func newTransaction(agent *Agent, name string) *Transaction {
	t := &Transaction{
		agent: agent,
		id:    agent.generateID(),
		name:  name,
		attrs: agent.newAttributes(TransactionScope),
	}
	t.root = t.newSegment(name)
	return t
}

// newSegment creates a started segment and registers it in the arena.
func (t *Transaction) newSegment(name string) *Segment {
	s := &Segment{
		txn:   t,
		timer: NewTimer(t.agent.clock),
		attrs: t.agent.newAttributes(SegmentScope),
		name:  name,
	}

	t.mu.Lock()
	t.segments = append(t.segments, s)
	s.handle = Handle(len(t.segments))
	t.mu.Unlock()

	s.timer.Start()
	return s
}

// ID returns the transaction's unique identifier.
func (t *Transaction) ID() string { return t.id }

// Name returns the current transaction name.
func (t *Transaction) Name() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.name
}

// SetName renames the transaction. The root segment keeps its original name.
func (t *Transaction) SetName(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.name = name
}

// Root returns the root segment.
func (t *Transaction) Root() *Segment { return t.root }

// Attributes returns the transaction-scoped attribute store.
func (t *Transaction) Attributes() *attributes.Attributes { return t.attrs }

// Segment returns the segment registered under h, or nil.
func (t *Transaction) Segment(h Handle) *Segment {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if h == 0 || int(h) > len(t.segments) {
		return nil
	}
	return t.segments[h-1]
}

// StartSegment adds a child named name under the segment identified by parent.
// Returns the zero Handle if parent is unknown.
func (t *Transaction) StartSegment(parent Handle, name string) Handle {
	p := t.Segment(parent)
	if p == nil {
		return 0
	}
	return p.AddChild(name).Handle()
}

// EndSegment ends the segment identified by h. Reports false if h is unknown.
func (t *Transaction) EndSegment(h Handle) bool {
	s := t.Segment(h)
	if s == nil {
		return false
	}
	s.End()
	return true
}

// SegmentCount returns the number of segments in the tree, root included.
func (t *Transaction) SegmentCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.segments)
}

// AddAttribute records value under key for the destinations the filter allows.
func (t *Transaction) AddAttribute(dest attributes.Destination, key string, value attributes.Value) {
	t.agent.addAttribute(t.attrs, dest, key, value)
}

// AddAttributes records each convertible value of attrs.
func (t *Transaction) AddAttributes(dest attributes.Destination, attrs map[string]any) {
	t.agent.addAttributes(t.attrs, dest, attrs)
}

// End ends the root segment and hands the transaction to harvest.
// Safe to call multiple times - subsequent calls are no-ops.
// Segments still running stay attached and may end later.
func (t *Transaction) End() {
	if !t.finished.CompareAndSwap(false, true) {
		return
	}
	t.root.End()
	t.agent.finishTransaction(t)
}

// IsFinished reports whether End has been called.
func (t *Transaction) IsFinished() bool { return t.finished.Load() }

// Ignored reports whether normalization marked the transaction to be dropped.
func (t *Transaction) Ignored() bool { return t.ignored.Load() }

// Duration returns the root segment's duration.
func (t *Transaction) Duration() time.Duration { return t.root.Duration() }

// TransactionTrace is a serializable snapshot of a transaction.
//
//nolint:govet // Field order follows the JSON layout
type TransactionTrace struct {
	ID         string                      `json:"id"`
	Name       string                      `json:"name"`
	Start      time.Time                   `json:"start"`
	Duration   time.Duration               `json:"duration"`
	Attributes map[string]attributes.Value `json:"attributes,omitempty"`
	Root       TraceNode                   `json:"root"`
}

// Trace snapshots the transaction with attributes visible to dest.
// Transaction attributes use dest; segment attributes use the segment
// destinations that dest names, falling back to TransSegment.
func (t *Transaction) Trace(dest attributes.Destination) TransactionTrace {
	attrs, _ := t.attrs.Get(dest)
	segDest := dest & attributes.SegmentScope
	if segDest == attributes.None {
		segDest = attributes.TransSegment
	}
	return TransactionTrace{
		ID:         t.id,
		Name:       t.Name(),
		Start:      t.root.StartTime(),
		Duration:   t.root.Duration(),
		Attributes: attrs,
		Root:       t.root.Trace(segDest),
	}
}
