package agentz

import "context"

// bundleKeyType is a private type for context keys to avoid collisions.
type bundleKeyType string

const (
	bundleKey bundleKeyType = "agentz"
)

// contextBundle holds the transaction and current segment in one context value.
type contextBundle struct {
	txn     *Transaction
	segment *Segment
}

// NewContext returns a context carrying txn with seg as the current segment.
// A nil seg means the transaction root.
func NewContext(parent context.Context, txn *Transaction, seg *Segment) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	if seg == nil && txn != nil {
		seg = txn.root
	}
	return context.WithValue(parent, bundleKey, &contextBundle{txn: txn, segment: seg})
}

// FromContext extracts the transaction from ctx. Returns nil if none is present.
func FromContext(ctx context.Context) *Transaction {
	if ctx == nil {
		return nil
	}
	if bundle, ok := ctx.Value(bundleKey).(*contextBundle); ok {
		return bundle.txn
	}
	return nil
}

// SegmentFromContext extracts the current segment from ctx. Returns nil if none is present.
func SegmentFromContext(ctx context.Context) *Segment {
	if ctx == nil {
		return nil
	}
	if bundle, ok := ctx.Value(bundleKey).(*contextBundle); ok {
		return bundle.segment
	}
	return nil
}
