package filter

import (
	"maps"
	"slices"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/plsync/internal/domain/track"
)

// Config enables a filter and carries its settings.
type Config struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings"`
}

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// NewChainFromConfig builds a chain of the enabled filters in name order.
// Unknown filter names and invalid settings are errors.
func NewChainFromConfig(configs map[string]Config) (*Chain, error) {
	c := NewChain()
	for _, name := range slices.Sorted(maps.Keys(configs)) {
		fc := configs[name]
		if !fc.Enabled {
			continue
		}
		factory, ok := registry[name]
		if !ok {
			return nil, errors.Newf("unknown filter: %s", name)
		}
		f := factory()
		settings := fc.Settings
		if settings == nil {
			settings = map[string]any{}
		}
		if err := f.ValidateConfig(settings); err != nil {
			return nil, errors.Wrapf(err, "invalid settings for filter %s", name)
		}
		c.Add(f)
		zlog.Info().Msgf("export filter enabled: %s", name)
	}
	return c, nil
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Check runs all filters against t and returns the first rejection.
func (c *Chain) Check(t track.Track, accepted []track.Track) Result {
	for _, f := range c.filters {
		if result := f.Check(t, accepted); !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Apply returns the tracks every filter accepts, in input order, and the
// number of rejections per code.
func (c *Chain) Apply(tracks []track.Track) ([]track.Track, map[string]int) {
	accepted := make([]track.Track, 0, len(tracks))
	rejected := make(map[string]int)
	for _, t := range tracks {
		result := c.Check(t, accepted)
		if !result.Accepted {
			rejected[result.Code]++
			continue
		}
		accepted = append(accepted, t)
	}
	return accepted, rejected
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}

// Len returns the number of filters in the chain.
func (c *Chain) Len() int {
	return len(c.filters)
}
