package agentz

import (
	"context"
	"testing"

	"github.com/zoobzio/clockz"
)

func TestContextEmpty(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Error("Expected no transaction in empty context")
	}
	if SegmentFromContext(context.Background()) != nil {
		t.Error("Expected no segment in empty context")
	}
	//nolint:staticcheck // nil context handling is part of the contract
	if FromContext(nil) != nil {
		t.Error("Expected nil context to yield nil")
	}
}

func TestNewContextDefaultsToRoot(t *testing.T) {
	agent := newTestAgent(t, clockz.NewFakeClock())
	_, txn := agent.BeginTransaction(context.Background(), "txn")

	//nolint:staticcheck // nil parent handling is part of the contract
	ctx := NewContext(nil, txn, nil)
	if FromContext(ctx) != txn {
		t.Error("Expected transaction in context")
	}
	if SegmentFromContext(ctx) != txn.Root() {
		t.Error("Expected root as current segment")
	}
}

func TestContextCrossesGoroutines(t *testing.T) {
	agent := newTestAgent(t, clockz.NewFakeClock())
	ctx, txn := agent.BeginTransaction(context.Background(), "txn")

	done := make(chan *Segment)
	go func() {
		_, seg := agent.StartSegment(ctx, "background")
		seg.End()
		done <- seg
	}()
	seg := <-done

	if seg.Transaction() != txn {
		t.Error("Expected background segment to belong to the transaction")
	}
	if !seg.Touched() {
		t.Error("Expected background segment to be ended")
	}
}
