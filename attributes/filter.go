package attributes

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gobwas/glob"
	"github.com/golang/groupcache/lru"
)

// DefaultFilterCacheSize bounds the number of per-key decisions a Filter remembers.
const DefaultFilterCacheSize = 1000

// globMeta lists the characters that make a pattern a wildcard rather than an exact key.
const globMeta = `*?[]{}\`

// ErrInvalidPattern is returned by NewFilter when an include or exclude pattern cannot be compiled.
var ErrInvalidPattern = errors.New("invalid attribute filter pattern")

// DestinationConfig holds the rules of one destination class.
type DestinationConfig struct {
	Include []string
	Exclude []string
	Enabled bool
}

// FilterConfig is the include/exclude configuration for every destination class.
// Include and Exclude apply to all destinations; Destinations adds per-class rules.
// A destination missing from Destinations is enabled and has no rules of its own.
type FilterConfig struct {
	Destinations map[Destination]DestinationConfig
	Include      []string
	Exclude      []string
	CacheSize    int
	Enabled      bool
}

// DefaultFilterConfig enables every destination except browser events.
func DefaultFilterConfig() FilterConfig {
	cfg := FilterConfig{
		Enabled:      true,
		CacheSize:    DefaultFilterCacheSize,
		Destinations: make(map[Destination]DestinationConfig, len(destinationNames)),
	}
	All.Each(func(d Destination) {
		cfg.Destinations[d] = DestinationConfig{Enabled: d != BrowserEvent}
	})
	return cfg
}

type filterRule struct {
	match   glob.Glob
	pattern string
	dests   Destination
	literal int
	exact   bool
	include bool
	local   bool
}

// moreSpecific reports whether r outranks other: exact beats wildcard,
// a longer literal prefix beats a shorter one, destination rules beat global ones.
func (r *filterRule) moreSpecific(other *filterRule) bool {
	if r.exact != other.exact {
		return r.exact
	}
	if r.literal != other.literal {
		return r.literal > other.literal
	}
	return r.local && !other.local
}

func (r *filterRule) matches(key string) bool {
	if r.exact {
		return key == r.pattern
	}
	return r.match.Match(key)
}

// Filter is an immutable snapshot of compiled include/exclude rules.
// Safe for concurrent use; the decision cache is guarded internally.
type Filter struct {
	cache   *lru.Cache
	rules   []filterRule
	enabled Destination
	mu      sync.Mutex
}

// NewFilter compiles cfg into a Filter.
// Every invalid pattern is reported; no Filter is returned in that case.
func NewFilter(cfg FilterConfig) (*Filter, error) {
	f := &Filter{}
	if cfg.Enabled {
		f.enabled = All
		for d, dc := range cfg.Destinations {
			if !dc.Enabled {
				f.enabled &^= d
			}
		}
	}

	var errs []error
	add := func(patterns []string, dests Destination, include, local bool) {
		for _, p := range patterns {
			r, err := compileFilterRule(p, dests, include, local)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			f.rules = append(f.rules, r)
		}
	}
	add(cfg.Include, All, true, false)
	add(cfg.Exclude, All, false, false)
	for d, dc := range cfg.Destinations {
		add(dc.Include, d, true, true)
		add(dc.Exclude, d, false, true)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultFilterCacheSize
	}
	f.cache = lru.New(size)
	return f, nil
}

func compileFilterRule(pattern string, dests Destination, include, local bool) (filterRule, error) {
	r := filterRule{pattern: pattern, dests: dests, include: include, local: local}
	idx := strings.IndexAny(pattern, globMeta)
	if idx < 0 {
		r.exact = true
		r.literal = len(pattern)
		return r, nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return r, fmt.Errorf("%w %q: %v", ErrInvalidPattern, pattern, err)
	}
	r.match = g
	r.literal = idx
	return r, nil
}

// Apply returns the subset of dest for which key survives the rules.
// A nil Filter lets every destination through.
func (f *Filter) Apply(dest Destination, key string) Destination {
	if f == nil {
		return dest
	}
	return dest & f.allowed(key)
}

// Enabled returns the destinations that are switched on.
func (f *Filter) Enabled() Destination {
	if f == nil {
		return All
	}
	return f.enabled
}

func (f *Filter) allowed(key string) Destination {
	f.mu.Lock()
	if v, ok := f.cache.Get(key); ok {
		f.mu.Unlock()
		return v.(Destination)
	}
	f.mu.Unlock()

	result := f.evaluate(key)

	f.mu.Lock()
	f.cache.Add(key, result)
	f.mu.Unlock()
	return result
}

func (f *Filter) evaluate(key string) Destination {
	var result Destination
	f.enabled.Each(func(d Destination) {
		var include, exclude *filterRule
		for i := range f.rules {
			r := &f.rules[i]
			if r.dests&d == 0 || !r.matches(key) {
				continue
			}
			if r.include {
				if include == nil || r.moreSpecific(include) {
					include = r
				}
			} else if exclude == nil || r.moreSpecific(exclude) {
				exclude = r
			}
		}
		// An include at least as specific as the winning exclude keeps the key.
		if exclude == nil || (include != nil && !exclude.moreSpecific(include)) {
			result |= d
		}
	})
	return result
}

// FilterRef holds the current Filter snapshot. Readers Load one snapshot per
// operation; writers Store a new one without touching the old.
type FilterRef struct {
	p atomic.Pointer[Filter]
}

// NewFilterRef returns a reference holding f.
func NewFilterRef(f *Filter) *FilterRef {
	r := &FilterRef{}
	r.p.Store(f)
	return r
}

// Load returns the current snapshot. A nil FilterRef yields a nil Filter.
func (r *FilterRef) Load() *Filter {
	if r == nil {
		return nil
	}
	return r.p.Load()
}

// Store installs f as the current snapshot.
func (r *FilterRef) Store(f *Filter) {
	r.p.Store(f)
}
