// Package spotify provides a client for the Spotify API and a session that
// mirrors the user's playlists into handle-based objects.
package spotify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/plsync/internal/domain/track"
)

// Scopes required by the client.
var Scopes = []string{
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
	spotifyauth.ScopeUserLibraryRead,
}

const (
	playlistPageLimit = 50
	itemPageLimit     = 100
	savedPageLimit    = 50
)

// Client is a Spotify API client.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Market       string
}

// PlaylistSummary is a playlist as listed in the user's library.
type PlaylistSummary struct {
	ID         string
	Owner      string
	Name       string
	SnapshotID string
	TrackCount int
}

// Link returns the canonical link of the playlist.
func (p PlaylistSummary) Link() string {
	return PlaylistLink(p.Owner, p.ID)
}

// PlaylistLink builds the user-scoped playlist link used as the playlist id.
func PlaylistLink(owner, id string) string {
	return "spotify:user:" + owner + ":playlist:" + id
}

// New creates a new Spotify client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("spotify credentials are required")
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithScopes(Scopes...),
	)

	// Create token from refresh token
	token := &oauth2.Token{
		RefreshToken: cfg.RefreshToken,
	}

	// Get HTTP client with auto-refresh capability
	httpClient := auth.Client(ctx, token)

	market := cfg.Market
	if market == "" {
		market = "JP"
	}

	return &Client{
		client:     spotify.New(httpClient, spotify.WithRetry(false)),
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// CurrentUserID returns the id of the authenticated user.
func (c *Client) CurrentUserID(ctx context.Context) (string, error) {
	var id string
	err := c.retry(ctx, func() error {
		u, err := c.client.CurrentUser(ctx)
		if err != nil {
			return err
		}
		id = u.ID
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to get current user")
	}
	return id, nil
}

// ListPlaylists returns the playlists in the user's library, in library order.
func (c *Client) ListPlaylists(ctx context.Context) ([]PlaylistSummary, error) {
	var result []PlaylistSummary
	offset := 0

	for {
		var page *spotify.SimplePlaylistPage
		err := c.retry(ctx, func() error {
			p, err := c.client.CurrentUsersPlaylists(ctx,
				spotify.Limit(playlistPageLimit),
				spotify.Offset(offset),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to list playlists")
		}

		for _, p := range page.Playlists {
			result = append(result, PlaylistSummary{
				ID:         string(p.ID),
				Owner:      p.Owner.ID,
				Name:       p.Name,
				SnapshotID: p.SnapshotID,
				TrackCount: int(p.Tracks.Total),
			})
		}

		if len(page.Playlists) < playlistPageLimit {
			break
		}
		offset += playlistPageLimit
	}

	return result, nil
}

// GetPlaylistTracks retrieves all tracks from a playlist.
// Episodes and local files without an id are skipped.
func (c *Client) GetPlaylistTracks(ctx context.Context, playlistURL string) ([]track.Track, error) {
	playlistID := extractPlaylistID(playlistURL)
	if playlistID == "" {
		return nil, errors.New("invalid playlist URL")
	}

	tracks := make([]track.Track, 0)
	offset := 0

	for {
		var page *spotify.PlaylistItemPage
		err := c.retry(ctx, func() error {
			p, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
				spotify.Limit(itemPageLimit),
				spotify.Offset(offset),
				spotify.Market(c.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get playlist items")
		}

		for _, item := range page.Items {
			if item.Track.Track != nil && item.Track.Track.ID != "" {
				tracks = append(tracks, *c.convertTrack(item.Track.Track))
			}
		}

		if len(page.Items) < itemPageLimit {
			break
		}
		offset += itemPageLimit
	}

	return tracks, nil
}

// GetSavedTracks retrieves the user's saved ("liked") tracks, newest first.
func (c *Client) GetSavedTracks(ctx context.Context) ([]track.Track, error) {
	tracks := make([]track.Track, 0)
	offset := 0

	for {
		var page *spotify.SavedTrackPage
		err := c.retry(ctx, func() error {
			p, err := c.client.CurrentUsersTracks(ctx,
				spotify.Limit(savedPageLimit),
				spotify.Offset(offset),
				spotify.Market(c.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get saved tracks")
		}

		for i := range page.Tracks {
			t := &page.Tracks[i].FullTrack
			if t.ID != "" {
				tracks = append(tracks, *c.convertTrack(t))
			}
		}

		if len(page.Tracks) < savedPageLimit {
			break
		}
		offset += savedPageLimit
	}

	return tracks, nil
}

// GetTrackURL returns the Spotify URL for a track.
func (c *Client) GetTrackURL(trackID string) string {
	return fmt.Sprintf("https://open.spotify.com/track/%s", trackID)
}

// convertTrack converts a Spotify FullTrack to domain Track.
func (c *Client) convertTrack(t *spotify.FullTrack) *track.Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	uri := string(t.URI)
	if uri == "" {
		uri = "spotify:track:" + string(t.ID)
	}

	return &track.Track{
		ID:       string(t.ID),
		URI:      uri,
		Name:     t.Name,
		Artists:  artists,
		Album:    t.Album.Name,
		Duration: time.Duration(t.Duration) * time.Millisecond,
		URL:      c.GetTrackURL(string(t.ID)),
	}
}

// retry retries an operation with a linear backoff.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "retry aborted")
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se spotify.Error
	if errors.As(err, &se) {
		return se.Status == 429 || se.Status >= 500
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// extractPlaylistID extracts the playlist ID from a Spotify playlist URL,
// URI or user-scoped link.
func extractPlaylistID(input string) string {
	input = strings.TrimSpace(input)
	// Handle spotify:playlist:ID and spotify:user:OWNER:playlist:ID
	if strings.HasPrefix(input, "spotify:") {
		if i := strings.LastIndex(input, ":playlist:"); i >= 0 {
			return input[i+len(":playlist:"):]
		}
	}

	// Handle URL format: https://open.spotify.com/playlist/PLAYLIST_ID or https://open.spotify.com/intl-XX/playlist/PLAYLIST_ID
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/playlist/") {
		parts := strings.Split(input, "/playlist/")
		if len(parts) >= 2 {
			// Remove query parameters and trailing slashes
			id := strings.Split(parts[len(parts)-1], "?")[0]
			id = strings.TrimRight(id, "/")
			return id
		}
	}

	// Assume it's already a playlist ID
	return input
}
