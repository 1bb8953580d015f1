// Package attributes stores typed key/value facts for one execution scope
// under count, key-length and value-length limits, and decides which outbound
// destinations each key may reach.
package attributes

import (
	"errors"
	"sort"
	"sync"
	"unicode/utf8"
)

// Default limits.
const (
	DefaultLimit         = 64
	DefaultMaxKeyBytes   = 255
	DefaultMaxValueBytes = 255
)

// Construction and misuse errors.
var (
	ErrNoScope       = errors.New("attributes: scope is required")
	ErrNilAttributes = errors.New("attributes: nil attributes instance")
)

// DropReason explains why an attribute write was discarded.
type DropReason string

// Drop reasons.
const (
	DropLimit        DropReason = "limit"
	DropKeyTooLong   DropReason = "key_too_long"
	DropInvalidValue DropReason = "invalid_value"
	DropFiltered     DropReason = "filtered"
)

// KeyValue is one entry for AddAttributeList.
type KeyValue struct {
	Key   string
	Value Value
}

type entry struct {
	value Value
	dest  Destination
}

// Attributes is a bounded key/value collection with a destination mask per key.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field order groups configuration before state
type Attributes struct {
	filter        *FilterRef
	onDrop        func(scope string, reason DropReason)
	scope         string
	limit         int
	maxKeyBytes   int
	maxValueBytes int
	mu            sync.RWMutex
	keys          []string
	store         map[string]entry
}

// Option configures an Attributes instance.
type Option func(*Attributes)

// WithLimit sets the maximum number of stored keys.
func WithLimit(n int) Option {
	return func(a *Attributes) { a.limit = n }
}

// WithMaxKeyBytes sets the maximum UTF-8 byte length of a key.
func WithMaxKeyBytes(n int) Option {
	return func(a *Attributes) { a.maxKeyBytes = n }
}

// WithMaxValueBytes sets the byte length string values are truncated to on read.
func WithMaxValueBytes(n int) Option {
	return func(a *Attributes) { a.maxValueBytes = n }
}

// WithFilter sets the filter consulted by HasValidDestination.
func WithFilter(ref *FilterRef) Option {
	return func(a *Attributes) { a.filter = ref }
}

// WithDropHook registers a callback invoked for every discarded write.
func WithDropHook(hook func(scope string, reason DropReason)) Option {
	return func(a *Attributes) { a.onDrop = hook }
}

// New creates an empty Attributes for scope.
func New(scope string, opts ...Option) (*Attributes, error) {
	if scope == "" {
		return nil, ErrNoScope
	}
	a := &Attributes{
		scope:         scope,
		limit:         DefaultLimit,
		maxKeyBytes:   DefaultMaxKeyBytes,
		maxValueBytes: DefaultMaxValueBytes,
		store:         make(map[string]entry),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Scope returns the scope name.
func (a *Attributes) Scope() string { return a.scope }

// Limit returns the maximum number of stored keys.
func (a *Attributes) Limit() int { return a.limit }

// Len returns the number of stored keys.
func (a *Attributes) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.keys)
}

// AddAttribute stores value under key for dest.
// The write is dropped when the key is new and the store is full, when the key
// is longer than the key limit, or when value is not a valid Value.
// Overwriting an existing key keeps its slot and replaces value and mask.
func (a *Attributes) AddAttribute(dest Destination, key string, value Value) {
	if a == nil {
		return
	}
	if !value.Valid() {
		a.drop(DropInvalidValue)
		return
	}
	if len(key) > a.maxKeyBytes {
		a.drop(DropKeyTooLong)
		return
	}

	a.mu.Lock()
	if _, exists := a.store[key]; !exists {
		if len(a.keys) >= a.limit {
			a.mu.Unlock()
			a.drop(DropLimit)
			return
		}
		a.keys = append(a.keys, key)
	}
	a.store[key] = entry{value: value, dest: dest}
	a.mu.Unlock()
}

// AddAttributes converts each value with ValueOf and adds it.
// Keys are applied in sorted order so limit enforcement is deterministic.
func (a *Attributes) AddAttributes(dest Destination, attrs map[string]any) {
	if a == nil {
		return
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, ok := ValueOf(attrs[k])
		if !ok {
			a.drop(DropInvalidValue)
			continue
		}
		a.AddAttribute(dest, k, v)
	}
}

// AddAttributeList adds entries in the given order.
func (a *Attributes) AddAttributeList(dest Destination, kvs []KeyValue) {
	for _, kv := range kvs {
		a.AddAttribute(dest, kv.Key, kv.Value)
	}
}

// Get returns a fresh map of every key whose mask shares a bit with dest.
// String values longer than the value limit are truncated on a rune boundary.
func (a *Attributes) Get(dest Destination) (map[string]Value, error) {
	if a == nil {
		return nil, ErrNilAttributes
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]Value, len(a.keys))
	for _, k := range a.keys {
		e := a.store[k]
		if e.dest&dest == 0 {
			continue
		}
		v := e.value
		if s, ok := v.AsString(); ok && len(s) > a.maxValueBytes {
			v = String(TruncateUTF8(s, a.maxValueBytes))
		}
		out[k] = v
	}
	return out, nil
}

// Keys returns the stored keys in insertion order.
func (a *Attributes) Keys() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	keys := make([]string, len(a.keys))
	copy(keys, a.keys)
	return keys
}

// HasValidDestination reports whether any bit of dest survives the filter for key.
func (a *Attributes) HasValidDestination(dest Destination, key string) bool {
	if a == nil {
		return false
	}
	return a.filter.Load().Apply(dest, key) != None
}

// Reset clears all entries. Scope and limits are unchanged.
func (a *Attributes) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = nil
	a.store = make(map[string]entry)
}

func (a *Attributes) drop(reason DropReason) {
	if a.onDrop != nil {
		a.onDrop(a.scope, reason)
	}
}

// Dropped reports a write discarded before it reached the store, such as one
// rejected by the filter.
func (a *Attributes) Dropped(reason DropReason) {
	if a != nil {
		a.drop(reason)
	}
}

// TruncateUTF8 returns the longest prefix of s at most limit bytes long that
// does not split a multi-byte rune.
func TruncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	if limit <= 0 {
		return ""
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
