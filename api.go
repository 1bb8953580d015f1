// Package agentz is the in-process data model of an application performance
// agent: timed trace trees, bounded attribute stores and name normalization.
//
// Core Components:
//   - Agent: Creates transactions, owns the attribute filter and normalization rules.
//   - Transaction: Root of one logical unit of work and its segment tree.
//   - Segment: One timed node of the tree. Any goroutine may end it.
//   - Timer: Start/stop measurement on an injectable clock.
//   - Collector: Buffers finished transactions for harvest.
//
// Basic Usage:
//
//	agent, err := agentz.New(agentz.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer agent.Close()
//
//	ctx, txn := agent.BeginTransaction(ctx, "/users/1234")
//	defer txn.End()
//
//	txn.AddAttribute(attributes.TransCommon, "user.id", attributes.Int(1234))
//
//	_, seg := agent.StartSegment(ctx, "db.query")
//	defer seg.End()
//
// Thread Safety:
//
// Agent, Transaction, Segment, Timer and Collector are safe for concurrent
// use. A segment started on one goroutine may be ended on another, and its
// parent may end first; the child keeps running until it is ended.
//
// Attribute Filtering:
//
// Every attribute write is checked against the agent's current filter
// snapshot. UpdateAttributeFilter swaps the snapshot atomically; writes
// already stored keep the destinations they were granted.
//
// Name Normalization:
//
// Transaction names pass through the normalization rules when the
// transaction ends. A matching ignore rule marks the transaction as ignored
// and it is not delivered to handlers or collectors.
//
// Resource Cleanup:
//
// Call agent.Close() to stop background goroutines and flush the logger.
package agentz
