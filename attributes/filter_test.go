package attributes

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFilter(t *testing.T, cfg FilterConfig) *Filter {
	t.Helper()
	f, err := NewFilter(cfg)
	require.NoError(t, err)
	return f
}

func withDestination(cfg FilterConfig, d Destination, include, exclude []string) FilterConfig {
	dc := cfg.Destinations[d]
	dc.Include = include
	dc.Exclude = exclude
	cfg.Destinations[d] = dc
	return cfg
}

func TestDefaultFilter(t *testing.T) {
	f := mustFilter(t, DefaultFilterConfig())

	assert.Equal(t, All&^BrowserEvent, f.Enabled())
	assert.Equal(t, TransCommon, f.Apply(TransCommon, "request.uri"))
	assert.Equal(t, None, f.Apply(BrowserEvent, "request.uri"))
}

func TestFilterDisabledGlobally(t *testing.T) {
	cfg := DefaultFilterConfig()
	cfg.Enabled = false
	f := mustFilter(t, cfg)

	assert.Equal(t, None, f.Apply(All, "anything"))
}

func TestNilFilterAllowsEverything(t *testing.T) {
	var f *Filter
	assert.Equal(t, All, f.Apply(All, "anything"))
	assert.Equal(t, All, f.Enabled())
}

func TestFilterPrecedence(t *testing.T) {
	tests := []struct {
		name string
		cfg  func() FilterConfig
		key  string
		dest Destination
		want Destination
	}{
		{
			name: "global exclude applies to all",
			cfg: func() FilterConfig {
				cfg := DefaultFilterConfig()
				cfg.Exclude = []string{"secret"}
				return cfg
			},
			key:  "secret",
			dest: TransCommon,
			want: None,
		},
		{
			name: "destination exclude only hits its destination",
			cfg: func() FilterConfig {
				return withDestination(DefaultFilterConfig(), TransEvent, nil, []string{"secret"})
			},
			key:  "secret",
			dest: TransEvent | TransTrace,
			want: TransTrace,
		},
		{
			name: "wildcard exclude",
			cfg: func() FilterConfig {
				cfg := DefaultFilterConfig()
				cfg.Exclude = []string{"request.headers.*"}
				return cfg
			},
			key:  "request.headers.cookie",
			dest: TransTrace,
			want: None,
		},
		{
			name: "exact include beats wildcard exclude",
			cfg: func() FilterConfig {
				cfg := DefaultFilterConfig()
				cfg.Include = []string{"request.headers.accept"}
				cfg.Exclude = []string{"request.headers.*"}
				return cfg
			},
			key:  "request.headers.accept",
			dest: TransTrace,
			want: TransTrace,
		},
		{
			name: "longer wildcard include beats shorter wildcard exclude",
			cfg: func() FilterConfig {
				cfg := DefaultFilterConfig()
				cfg.Include = []string{"request.headers.x-*"}
				cfg.Exclude = []string{"request.*"}
				return cfg
			},
			key:  "request.headers.x-trace",
			dest: TransEvent,
			want: TransEvent,
		},
		{
			name: "longer wildcard exclude beats shorter wildcard include",
			cfg: func() FilterConfig {
				cfg := DefaultFilterConfig()
				cfg.Include = []string{"request.*"}
				cfg.Exclude = []string{"request.headers.*"}
				return cfg
			},
			key:  "request.headers.cookie",
			dest: TransEvent,
			want: None,
		},
		{
			name: "include overrides exclude of equal specificity",
			cfg: func() FilterConfig {
				return withDestination(DefaultFilterConfig(), ErrorEvent, []string{"user"}, []string{"user"})
			},
			key:  "user",
			dest: ErrorEvent,
			want: ErrorEvent,
		},
		{
			name: "destination include overrides global exclude",
			cfg: func() FilterConfig {
				cfg := withDestination(DefaultFilterConfig(), TransTrace, []string{"secret"}, nil)
				cfg.Exclude = []string{"secret"}
				return cfg
			},
			key:  "secret",
			dest: TransEvent | TransTrace,
			want: TransTrace,
		},
		{
			name: "disabled destination never survives include",
			cfg: func() FilterConfig {
				return withDestination(DefaultFilterConfig(), BrowserEvent, []string{"*"}, nil)
			},
			key:  "anything",
			dest: BrowserEvent,
			want: None,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mustFilter(t, tt.cfg())
			assert.Equal(t, tt.want, f.Apply(tt.dest, tt.key))
			// Second call is served from the cache.
			assert.Equal(t, tt.want, f.Apply(tt.dest, tt.key))
		})
	}
}

func TestNewFilterInvalidPattern(t *testing.T) {
	cfg := DefaultFilterConfig()
	cfg.Exclude = []string{"bad[*"}

	f, err := NewFilter(cfg)
	assert.Nil(t, f)
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestFilterRefSwap(t *testing.T) {
	open := mustFilter(t, DefaultFilterConfig())
	closedCfg := DefaultFilterConfig()
	closedCfg.Exclude = []string{"*"}
	closed := mustFilter(t, closedCfg)

	ref := NewFilterRef(open)
	assert.Equal(t, TransEvent, ref.Load().Apply(TransEvent, "k"))

	ref.Store(closed)
	assert.Equal(t, None, ref.Load().Apply(TransEvent, "k"))

	var nilRef *FilterRef
	assert.Nil(t, nilRef.Load())
}

func TestFilterConcurrentApply(t *testing.T) {
	cfg := DefaultFilterConfig()
	cfg.CacheSize = 4
	cfg.Exclude = []string{"drop.*"}
	f := mustFilter(t, cfg)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				assert.Equal(t, None, f.Apply(TransEvent, "drop.me"))
			} else {
				assert.Equal(t, TransEvent, f.Apply(TransEvent, "keep.me"))
			}
		}(i)
	}
	wg.Wait()
}

func TestDestinationString(t *testing.T) {
	assert.Equal(t, "none", None.String())
	assert.Equal(t, "transaction_events|transaction_tracer", (TransEvent | TransTrace).String())
}
