// Package normalizer rewrites raw operation names and URLs into
// low-cardinality metric names with an ordered chain of regex rules.
package normalizer

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"
)

// Result is the outcome of normalizing one name.
type Result struct {
	Name    string
	Ignored bool
}

// Normalizer applies a rule set to names.
// Safe for concurrent use; rule swaps are atomic with respect to Normalize.
type Normalizer struct {
	rules  atomic.Pointer[[]*Rule]
	logger *zap.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLogger sets the logger used to report rules that failed to compile.
func WithLogger(logger *zap.Logger) Option {
	return func(n *Normalizer) { n.logger = logger }
}

// New creates a Normalizer with no rules.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(n)
	}
	empty := []*Rule{}
	n.rules.Store(&empty)
	return n
}

// Load compiles specs and installs them as the new rule set.
func (n *Normalizer) Load(specs []RuleSpec) {
	rules := make([]*Rule, 0, len(specs))
	for _, spec := range specs {
		rule := NewRule(spec)
		if err := rule.Err(); err != nil {
			n.logger.Warn("normalization rule failed to compile, matching everything",
				zap.String("match_expression", rule.Expression()),
				zap.Int("eval_order", rule.Precedence()),
				zap.Error(err))
		}
		rules = append(rules, rule)
	}
	n.SetRules(rules)
}

// SetRules installs rules, ordered by ascending precedence with ties kept in
// the given order. The caller's slice is not modified.
func (n *Normalizer) SetRules(rules []*Rule) {
	sorted := make([]*Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Precedence() < sorted[j].Precedence()
	})
	n.rules.Store(&sorted)
	n.logger.Debug("normalization rules installed", zap.Int("count", len(sorted)))
}

// Rules returns the current ordered rule set.
func (n *Normalizer) Rules() []*Rule {
	rules := *n.rules.Load()
	out := make([]*Rule, len(rules))
	copy(out, rules)
	return out
}

// Normalize runs name through the rule chain of a single snapshot.
func (n *Normalizer) Normalize(name string) Result {
	rules := *n.rules.Load()
	current := name
	for _, rule := range rules {
		if !rule.Matches(current) {
			continue
		}
		if rule.Ignore() {
			return Result{Name: current, Ignored: true}
		}
		current = rule.Apply(current)
		if rule.IsTerminal() {
			break
		}
	}
	return Result{Name: current}
}

// ParseRules decodes a JSON array of rule specifications.
func ParseRules(data []byte) ([]RuleSpec, error) {
	var specs []RuleSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("failed to parse normalization rules: %w", err)
	}
	return specs, nil
}
