package spotify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"
)

func TestExtractPlaylistID(t *testing.T) {
	const id = "37i9dQZF1DXcBWIGoYBM5M"
	tests := []struct {
		input    string
		expected string
	}{
		{"spotify:playlist:" + id, id},
		{"spotify:user:alice:playlist:" + id, id},
		{"spotify:user:alice:playlist:0000000000000000000000", "0000000000000000000000"},
		{"https://open.spotify.com/playlist/" + id, id},
		{"https://open.spotify.com/playlist/" + id + "?si=abc123", id},
		{"http://open.spotify.com/playlist/abc123?si=xyz&utm_source=copy", "abc123"},
		{id, id},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractPlaylistID(tt.input))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"rate limit status text", errors.New("Error 429: rate limit exceeded"), true},
		{"rate limit text", errors.New("rate limit exceeded"), true},
		{"server error text", errors.New("503 Service Unavailable"), true},
		{"gateway timeout text", errors.New("504 Gateway Timeout"), true},
		{"typed rate limit", fmt.Errorf("list: %w", spotify.Error{Message: "slow down", Status: 429}), true},
		{"typed server error", spotify.Error{Message: "bad gateway", Status: 502}, true},
		{"typed not found", spotify.Error{Message: "Not found.", Status: 404}, false},
		{"client error text", errors.New("400 Bad Request"), false},
		{"generic", errors.New("something went wrong"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetryable(tt.err))
		})
	}
}

func TestClient_Retry(t *testing.T) {
	c := &Client{maxRetries: 3, retryDelay: time.Millisecond}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := c.retry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return spotify.Error{Status: 503}
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on permanent failure", func(t *testing.T) {
		calls := 0
		err := c.retry(context.Background(), func() error {
			calls++
			return spotify.Error{Status: 401}
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := c.retry(context.Background(), func() error {
			calls++
			return spotify.Error{Status: 429}
		})
		assert.ErrorContains(t, err, "max retries exceeded")
		assert.Equal(t, 3, calls)
	})

	t.Run("aborts when context is done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		slow := &Client{maxRetries: 3, retryDelay: time.Hour}
		err := slow.retry(ctx, func() error { return spotify.Error{Status: 500} })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestClient_ConvertTrack(t *testing.T) {
	c := &Client{}
	ft := &spotify.FullTrack{
		SimpleTrack: spotify.SimpleTrack{
			ID:       "4uLU6hMCjMI75M1A2tKUQC",
			Name:     "Never Gonna Give You Up",
			Artists:  []spotify.SimpleArtist{{Name: "Rick Astley"}},
			Duration: 213573,
		},
		Album: spotify.SimpleAlbum{Name: "Whenever You Need Somebody"},
	}

	got := c.convertTrack(ft)

	assert.Equal(t, "spotify:track:4uLU6hMCjMI75M1A2tKUQC", got.URI, "missing uri falls back to the id")
	assert.Equal(t, "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", got.URL)
	assert.Equal(t, []string{"Rick Astley"}, got.Artists)
	assert.Equal(t, "Whenever You Need Somebody", got.Album)
	assert.Equal(t, 213573*time.Millisecond, got.Duration)
}

func TestPlaylistSummary_Link(t *testing.T) {
	s := PlaylistSummary{ID: "37i9dQZF1DXcBWIGoYBM5M", Owner: "spotify"}
	assert.Equal(t, "spotify:user:spotify:playlist:37i9dQZF1DXcBWIGoYBM5M", s.Link())
	assert.Equal(t, s.ID, extractPlaylistID(s.Link()))
}
