package normalizer

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNormalizeWithoutRules(t *testing.T) {
	n := New()
	assert.Equal(t, Result{Name: "/users/42"}, n.Normalize("/users/42"))
	assert.Empty(t, n.Rules())
}

func TestNormalizeTerminalRuleStopsChain(t *testing.T) {
	n := New()
	n.Load([]RuleSpec{
		{EvalOrder: 1, MatchExpression: "[0-9]+", ReplaceAll: true, Replacement: "*"},
		{EvalOrder: 0, MatchExpression: "^/static/.*", Replacement: "/static/*", TerminateChain: true},
	})

	// The precedence 0 terminal rule matches and halts before the digits rule.
	assert.Equal(t, Result{Name: "/static/*"}, n.Normalize("/static/app.123.js"))
	// Without a terminal match both rules run in ascending order.
	assert.Equal(t, Result{Name: "/users/*/orders/*"}, n.Normalize("/users/42/orders/7"))
}

func TestNormalizeTerminalAfterTransform(t *testing.T) {
	n := New()
	n.Load([]RuleSpec{
		{EvalOrder: 0, MatchExpression: "^/v[0-9]+", Replacement: "/api"},
		{EvalOrder: 1, MatchExpression: "^/api/users/.*$", Replacement: "/api/users/*", TerminateChain: true},
		{EvalOrder: 2, MatchExpression: "users", Replacement: "never"},
	})

	assert.Equal(t, Result{Name: "/api/users/*"}, n.Normalize("/v2/users/abc"))
}

func TestNormalizeAscendingOrder(t *testing.T) {
	n := New()
	n.Load([]RuleSpec{
		{EvalOrder: 2, MatchExpression: "b", Replacement: "c"},
		{EvalOrder: 1, MatchExpression: "a", Replacement: "b"},
	})

	// a -> b at precedence 1, then b -> c at precedence 2.
	assert.Equal(t, "c", n.Normalize("a").Name)

	rules := n.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, 1, rules[0].Precedence())
	assert.Equal(t, 2, rules[1].Precedence())
}

func TestNormalizeTiesKeepInsertionOrder(t *testing.T) {
	n := New()
	n.Load([]RuleSpec{
		{EvalOrder: 5, MatchExpression: "^x$", Replacement: "first", TerminateChain: true},
		{EvalOrder: 5, MatchExpression: "^x$", Replacement: "second", TerminateChain: true},
	})

	assert.Equal(t, "first", n.Normalize("x").Name)
}

func TestNormalizeIgnore(t *testing.T) {
	n := New()
	n.Load([]RuleSpec{
		{EvalOrder: 0, MatchExpression: "^/v1", Replacement: "/api"},
		{EvalOrder: 1, MatchExpression: "^/api/health", Ignore: true},
		{EvalOrder: 2, MatchExpression: ".*", Replacement: "never"},
	})

	res := n.Normalize("/v1/health")
	assert.True(t, res.Ignored)
	assert.Equal(t, "/api/health", res.Name)

	res = n.Normalize("/v1/users")
	assert.False(t, res.Ignored)
	assert.Equal(t, "never", res.Name)
}

func TestNormalizeNonMatchingRulesAreSkipped(t *testing.T) {
	n := New()
	n.Load([]RuleSpec{
		{MatchExpression: "^nomatch$", Replacement: "x", TerminateChain: true},
	})

	assert.Equal(t, Result{Name: "/users"}, n.Normalize("/users"))
}

func TestLoadLogsMalformedRules(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	n := New(WithLogger(zap.New(core)))

	n.Load([]RuleSpec{{MatchExpression: "$[ad^", Replacement: "bad"}})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "$[ad^", entry.ContextMap()["match_expression"])

	// The fallback rule matches every name.
	assert.Equal(t, "bad", n.Normalize("/anything").Name)
}

func TestSetRulesDoesNotMutateInput(t *testing.T) {
	a := NewRule(RuleSpec{EvalOrder: 3})
	b := NewRule(RuleSpec{EvalOrder: 1})
	in := []*Rule{a, b}

	n := New()
	n.SetRules(in)

	assert.Same(t, a, in[0])
	assert.Same(t, b, n.Rules()[0])
}

func TestRuleSwapIsAtomic(t *testing.T) {
	setA := []RuleSpec{
		{EvalOrder: 0, MatchExpression: "^(.*)$", Replacement: `A-\1`},
		{EvalOrder: 1, MatchExpression: "^A-(.*)$", Replacement: `A-\1-A`},
	}
	setB := []RuleSpec{
		{EvalOrder: 0, MatchExpression: "^(.*)$", Replacement: `B-\1`},
		{EvalOrder: 1, MatchExpression: "^B-(.*)$", Replacement: `B-\1-B`},
	}

	n := New()
	n.Load(setA)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				n.Load(setB)
			} else {
				n.Load(setA)
			}
		}
	}()

	for i := 0; i < 500; i++ {
		name := n.Normalize("x").Name
		// A mixed snapshot would produce A-x-B style names or a single prefix.
		if name != "A-x-A" && name != "B-x-B" {
			t.Fatalf("observed partially replaced rule set: %q", name)
		}
	}
	close(stop)
	wg.Wait()
}

func TestParseRules(t *testing.T) {
	data := []byte(`[
		{"each_segment": false, "eval_order": 0, "terminate_chain": true,
		 "match_expression": "^(test_match_nothing)$", "replace_all": false,
		 "ignore": false, "replacement": "\\1"},
		{"match_expression": "^/ignored", "ignore": true, "eval_order": 7}
	]`)

	specs, err := ParseRules(data)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, `\1`, specs[0].Replacement)
	assert.True(t, specs[0].TerminateChain)
	assert.True(t, specs[1].Ignore)
	assert.Equal(t, 7, specs[1].EvalOrder)

	_, err = ParseRules([]byte(`{not json`))
	assert.Error(t, err)
}

func BenchmarkNormalize(b *testing.B) {
	n := New()
	n.Load([]RuleSpec{
		{EvalOrder: 0, EachSegment: true, MatchExpression: "^[0-9][0-9a-f_,.-]*$", Replacement: "*"},
		{EvalOrder: 1, MatchExpression: "^/static/.*", Replacement: "/static/*", TerminateChain: true},
	})

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = n.Normalize(fmt.Sprintf("/users/%d/orders", i))
	}
}
