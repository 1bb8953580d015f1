package normalizer

import (
	"regexp"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// DefaultMatchTimeout bounds a single pattern evaluation.
const DefaultMatchTimeout = 50 * time.Millisecond

const (
	emptyExpr    = "^$"
	matchAllExpr = `^[\s\S]*$`
	wholeMatch   = "$0"
)

// backref finds \N group references in collector-supplied replacements.
var backref = regexp.MustCompile(`\\(\d+)`)

// Flags are the matching modes of a Pattern.
type Flags uint8

// Pattern flags. Global enables replace-all; it is only honored when the rule asks for it.
const (
	FlagIgnoreCase Flags = 1 << iota
	FlagMultiline
	FlagGlobal
)

// Pattern is an already-built expression with its own flags.
type Pattern struct {
	Expr  string
	Flags Flags
}

// RuleSpec describes a rule as delivered by the collector or configuration.
// Every field is optional.
type RuleSpec struct {
	Pattern         *Pattern `json:"-"`
	MatchExpression string   `json:"match_expression,omitempty"`
	Replacement     string   `json:"replacement,omitempty"`
	EvalOrder       int      `json:"eval_order"`
	EachSegment     bool     `json:"each_segment"`
	TerminateChain  bool     `json:"terminate_chain"`
	ReplaceAll      bool     `json:"replace_all"`
	Ignore          bool     `json:"ignore"`
}

// Rule is one compiled normalization rule. Immutable after NewRule.
//
//nolint:govet // Field order mirrors RuleSpec
type Rule struct {
	re          *regexp2.Regexp
	err         error
	expr        string
	replacement string
	flags       Flags
	precedence  int
	isTerminal  bool
	eachSegment bool
	replaceAll  bool
	ignore      bool
}

// NewRule compiles spec. It never fails: an expression that does not compile
// yields a rule matching every input, and the error is kept on Err.
func NewRule(spec RuleSpec) *Rule {
	r := &Rule{
		precedence:  spec.EvalOrder,
		isTerminal:  spec.TerminateChain,
		eachSegment: spec.EachSegment,
		replaceAll:  spec.ReplaceAll,
		ignore:      spec.Ignore,
		replacement: wholeMatch,
	}
	if spec.Replacement != "" {
		r.replacement = backref.ReplaceAllString(spec.Replacement, "$$${1}")
	}

	r.expr = emptyExpr
	r.flags = FlagIgnoreCase
	switch {
	case spec.Pattern != nil:
		r.expr = spec.Pattern.Expr
		r.flags |= spec.Pattern.Flags & (FlagIgnoreCase | FlagMultiline)
	case spec.MatchExpression != "":
		r.expr = spec.MatchExpression
	}
	if r.replaceAll {
		r.flags |= FlagGlobal
	}

	re, err := compile(r.expr, r.flags)
	if err != nil {
		r.err = err
		re = regexp2.MustCompile(matchAllExpr, regexp2.IgnoreCase)
		re.MatchTimeout = DefaultMatchTimeout
	}
	r.re = re
	return r
}

func compile(expr string, flags Flags) (*regexp2.Regexp, error) {
	opts := regexp2.None
	if flags&FlagIgnoreCase != 0 {
		opts |= regexp2.IgnoreCase
	}
	if flags&FlagMultiline != 0 {
		opts |= regexp2.Multiline
	}
	re, err := regexp2.Compile(expr, opts)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = DefaultMatchTimeout
	return re, nil
}

// Err returns the compilation error that made this rule match everything, if any.
func (r *Rule) Err() error { return r.err }

// Expression returns the source expression.
func (r *Rule) Expression() string { return r.expr }

// Flags returns the effective matching flags.
func (r *Rule) Flags() Flags { return r.flags }

// Replacement returns the replacement template in $N form.
func (r *Rule) Replacement() string { return r.replacement }

// Precedence returns the evaluation order; lower runs first.
func (r *Rule) Precedence() int { return r.precedence }

// IsTerminal reports whether a match stops the chain.
func (r *Rule) IsTerminal() bool { return r.isTerminal }

// EachSegment reports whether the rule applies per "/" segment.
func (r *Rule) EachSegment() bool { return r.eachSegment }

// ReplaceAll reports whether every match is replaced.
func (r *Rule) ReplaceAll() bool { return r.replaceAll }

// Ignore reports whether a match drops the name.
func (r *Rule) Ignore() bool { return r.ignore }

// Matches reports whether the pattern matches name, or any of its segments
// for per-segment rules. Evaluation errors count as no match.
func (r *Rule) Matches(name string) bool {
	if !r.eachSegment {
		return r.test(name)
	}
	for _, seg := range strings.Split(name, "/") {
		if r.test(seg) {
			return true
		}
	}
	return false
}

func (r *Rule) test(s string) bool {
	ok, err := r.re.MatchString(s)
	return err == nil && ok
}

// Apply rewrites name. Per-segment rules rewrite each non-empty "/" segment
// and keep empty ones in place. Ignore rules and non-matching names come back unchanged.
func (r *Rule) Apply(name string) string {
	if r.ignore {
		return name
	}
	if !r.eachSegment {
		return r.replace(name)
	}
	segments := strings.Split(name, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		segments[i] = r.replace(seg)
	}
	return strings.Join(segments, "/")
}

func (r *Rule) replace(s string) string {
	count := 1
	if r.replaceAll {
		count = -1
	}
	out, err := r.re.Replace(s, r.replacement, -1, count)
	if err != nil {
		return s
	}
	return out
}
