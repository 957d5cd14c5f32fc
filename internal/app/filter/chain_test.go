package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/plsync/internal/domain/track"
)

func TestChain_Apply(t *testing.T) {
	duration := NewDurationLimitFilter()
	require.NoError(t, duration.ValidateConfig(map[string]any{"max_minutes": 10}))

	c := NewChain()
	c.Add(NewDuplicateTrackFilter())
	c.Add(duration)

	tracks := []track.Track{
		{ID: "a", Name: "Song", Artists: []string{"X"}, Duration: 3 * time.Minute},
		{ID: "b", Name: "Song - 2011 Remaster", Artists: []string{"X"}, Duration: 3 * time.Minute},
		{ID: "c", Name: "Long Mix", Artists: []string{"Y"}, Duration: 20 * time.Minute},
		{ID: "a", Name: "Song", Artists: []string{"X"}, Duration: 3 * time.Minute},
		{ID: "d", Name: "Song", Artists: []string{"Z"}, Duration: 4 * time.Minute},
	}

	accepted, rejected := c.Apply(tracks)

	ids := make([]string, len(accepted))
	for i, tr := range accepted {
		ids[i] = tr.ID
	}
	assert.Equal(t, []string{"a", "d"}, ids)
	assert.Equal(t, map[string]int{"duplicate_track": 2, "duration_limit_exceeded": 1}, rejected)
}

func TestChain_EmptyAcceptsAll(t *testing.T) {
	tracks := []track.Track{{ID: "a"}, {ID: "a"}}

	accepted, rejected := NewChain().Apply(tracks)

	assert.Equal(t, tracks, accepted)
	assert.Empty(t, rejected)
}

func TestNewChainFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		configs map[string]Config
		want    []string
		wantErr bool
	}{
		{
			name:    "nil config",
			configs: nil,
			want:    []string{},
		},
		{
			name: "enabled filters in name order",
			configs: map[string]Config{
				"duration_limit_filter":  {Enabled: true, Settings: map[string]any{"min_minutes": 1}},
				"duplicate_track_filter": {Enabled: true},
			},
			want: []string{"duplicate_track_filter", "duration_limit_filter"},
		},
		{
			name: "disabled filter skipped",
			configs: map[string]Config{
				"duplicate_track_filter": {Enabled: false},
			},
			want: []string{},
		},
		{
			name: "unknown filter",
			configs: map[string]Config{
				"market_filter": {Enabled: true},
			},
			wantErr: true,
		},
		{
			name: "invalid settings",
			configs: map[string]Config{
				"duration_limit_filter": {Enabled: true, Settings: map[string]any{"min_minutes": -1}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewChainFromConfig(tt.configs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			names := make([]string, 0, c.Len())
			for _, f := range c.Filters() {
				names = append(names, f.Name())
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestGetRegistered(t *testing.T) {
	registered := GetRegistered()

	for _, name := range []string{"duplicate_track_filter", "duration_limit_filter"} {
		factory, ok := registered[name]
		require.True(t, ok, name)
		assert.Equal(t, name, factory().Name())
	}
}
