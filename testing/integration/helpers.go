package integration

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/zoobzio/agentz"
	"github.com/zoobzio/agentz/attributes"
)

// MockCollector wraps a real collector with test utilities.
// Provides synchronous collection and verification helpers.
//
//nolint:govet // Field alignment optimized for test helper readability
type MockCollector struct {
	exported []*agentz.Transaction
	*agentz.Collector
	t  *testing.T
	mu sync.Mutex
}

// NewMockCollector creates a collector for testing.
func NewMockCollector(t *testing.T, name string, bufferSize int) *MockCollector {
	collector := agentz.NewCollector(name, bufferSize)
	collector.SetSyncMode(true) // Enable synchronous collection for testing.
	t.Cleanup(collector.Close)
	return &MockCollector{
		Collector: collector,
		t:         t,
	}
}

// Export returns collected transactions and clears the buffer.
func (m *MockCollector) Export() []*agentz.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	txns := m.Collector.Export()
	m.exported = append(m.exported, txns...)
	return txns
}

// WaitForTransactions waits for the expected number of transactions with timeout.
func (m *MockCollector) WaitForTransactions(expected int, timeout time.Duration) []*agentz.Transaction {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	var got []*agentz.Transaction
	for time.Now().Before(deadline) {
		got = append(got, m.Export()...)
		if len(got) >= expected {
			return got
		}
		<-ticker.C
	}

	m.t.Errorf("Timeout waiting for transactions: expected %d, got %d", expected, len(got))
	return got
}

// AssertTransactionNamed returns the exported transaction with the given name.
func (m *MockCollector) AssertTransactionNamed(name string) *agentz.Transaction {
	m.Export()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, txn := range m.exported {
		if txn.Name() == name {
			return txn
		}
	}
	m.t.Errorf("Transaction named '%s' not found", name)
	return nil
}

// NewTestAgent creates an agent on clock with a synchronous collector attached.
func NewTestAgent(t *testing.T, clock clockz.Clock) (*agentz.Agent, *MockCollector) {
	t.Helper()
	agent, err := agentz.New(agentz.DefaultConfig(), agentz.WithClock(clock))
	if err != nil {
		t.Fatalf("Failed to create agent: %v", err)
	}
	t.Cleanup(agent.Close)

	collector := NewMockCollector(t, "integration", 1000)
	agent.AddCollector(collector.Collector)
	return agent, collector
}

// FindNode returns the first node in the trace with the given name, depth first.
func FindNode(node agentz.TraceNode, name string) (agentz.TraceNode, bool) {
	if node.Name == name {
		return node, true
	}
	for _, child := range node.Children {
		if found, ok := FindNode(child, name); ok {
			return found, true
		}
	}
	return agentz.TraceNode{}, false
}

// PrintTrace formats a trace tree for debugging.
func PrintTrace(trace agentz.TransactionTrace) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s]\n", trace.Name, trace.ID)
	printTraceNode(&sb, trace.Root, 1)
	return sb.String()
}

func printTraceNode(sb *strings.Builder, node agentz.TraceNode, depth int) {
	indent := strings.Repeat("  ", depth)
	state := "done"
	if !node.Touched {
		state = "running"
	}
	fmt.Fprintf(sb, "%s%s (%.2fms, %s)\n",
		indent, node.Name, node.Duration.Seconds()*1000, state)
	for _, child := range node.Children {
		printTraceNode(sb, child, depth+1)
	}
}

// AssertAttribute checks a stored attribute is visible to dest with the given value.
func AssertAttribute(t *testing.T, attrs *attributes.Attributes, dest attributes.Destination, key, want string) {
	t.Helper()
	got, err := attrs.Get(dest)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	v, ok := got[key]
	if !ok {
		t.Errorf("Attribute %q not visible to %s", key, dest)
		return
	}
	if v.String() != want {
		t.Errorf("Attribute %q: expected %q, got %q", key, want, v.String())
	}
}
