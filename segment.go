package agentz

import (
	"sync"
	"time"

	"github.com/zoobzio/agentz/attributes"
)

// Handle identifies a segment within its transaction. The zero Handle is invalid.
type Handle uint64

// Segment is one timed node of a transaction's trace tree.
// Safe for concurrent use: children and attributes are guarded per instance,
// and any goroutine may end a segment it did not start.
// Methods on a nil Segment, as returned by Agent.StartSegment outside a
// transaction, are no-ops returning zero values.
type Segment struct {
	txn      *Transaction
	timer    *Timer
	attrs    *attributes.Attributes
	name     string
	children []*Segment
	handle   Handle
	mu       sync.Mutex
}

// AddChild creates a started child segment and appends it to the children
// immediately. Children may be added after this segment has ended.
// A nil Segment returns nil.
func (s *Segment) AddChild(name string) *Segment {
	if s == nil {
		return nil
	}
	child := s.txn.newSegment(name)

	s.mu.Lock()
	s.children = append(s.children, child)
	s.mu.Unlock()

	return child
}

// Start starts the segment's timer. AddChild already starts it, so this is
// normally a no-op.
func (s *Segment) Start() {
	if s != nil {
		s.timer.Start()
	}
}

// End stops the segment's timer. Safe to call multiple times.
// A nil Segment is ignored.
func (s *Segment) End() {
	if s == nil {
		return
	}
	s.timer.End()
}

// Touch is an alias for End.
func (s *Segment) Touch() { s.End() }

// Touched reports whether the segment has ended.
func (s *Segment) Touched() bool { return s != nil && s.timer.Touched() }

// Name returns the segment name.
func (s *Segment) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// Handle returns the segment's handle within its transaction.
func (s *Segment) Handle() Handle {
	if s == nil {
		return 0
	}
	return s.handle
}

// Transaction returns the owning transaction.
func (s *Segment) Transaction() *Transaction {
	if s == nil {
		return nil
	}
	return s.txn
}

// Timer returns the segment's timer.
func (s *Segment) Timer() *Timer {
	if s == nil {
		return nil
	}
	return s.timer
}

// StartTime returns when the segment started.
func (s *Segment) StartTime() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.timer.StartTime()
}

// Duration returns the segment's duration, provisional until it ends.
func (s *Segment) Duration() time.Duration {
	if s == nil {
		return 0
	}
	return s.timer.Duration()
}

// Children returns a copy of the children in creation order.
func (s *Segment) Children() []*Segment {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Segment, len(s.children))
	copy(out, s.children)
	return out
}

// Attributes returns the segment-scoped attribute store.
func (s *Segment) Attributes() *attributes.Attributes {
	if s == nil {
		return nil
	}
	return s.attrs
}

// AddAttribute records value under key for the destinations the filter allows.
func (s *Segment) AddAttribute(dest attributes.Destination, key string, value attributes.Value) {
	if s == nil {
		return
	}
	s.txn.agent.addAttribute(s.attrs, dest, key, value)
}

// AddAttributes records each convertible value of attrs.
func (s *Segment) AddAttributes(dest attributes.Destination, attrs map[string]any) {
	if s == nil {
		return
	}
	s.txn.agent.addAttributes(s.attrs, dest, attrs)
}

// TraceNode is a serializable snapshot of a segment and its descendants.
//
//nolint:govet // Field order follows the JSON layout
type TraceNode struct {
	Name       string                      `json:"name"`
	Start      time.Time                   `json:"start"`
	Duration   time.Duration               `json:"duration"`
	Touched    bool                        `json:"touched"`
	Attributes map[string]attributes.Value `json:"attributes,omitempty"`
	Children   []TraceNode                 `json:"children,omitempty"`
}

// Trace snapshots the subtree rooted at s with attributes visible to dest.
func (s *Segment) Trace(dest attributes.Destination) TraceNode {
	if s == nil {
		return TraceNode{}
	}
	attrs, _ := s.attrs.Get(dest)
	node := TraceNode{
		Name:     s.name,
		Start:    s.timer.StartTime(),
		Duration: s.timer.Duration(),
		Touched:  s.timer.Touched(),
	}
	if len(attrs) > 0 {
		node.Attributes = attrs
	}
	for _, child := range s.Children() {
		node.Children = append(node.Children, child.Trace(dest))
	}
	return node
}
