package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrack_Title(t *testing.T) {
	tests := []struct {
		name     string
		track    Track
		expected string
	}{
		{
			name:     "no artists",
			track:    Track{Name: "Intro"},
			expected: "Intro",
		},
		{
			name:     "single artist",
			track:    Track{Name: "Bohemian Rhapsody", Artists: []string{"Queen"}},
			expected: "Queen - Bohemian Rhapsody",
		},
		{
			name:     "multiple artists",
			track:    Track{Name: "Under Pressure", Artists: []string{"Queen", "David Bowie"}},
			expected: "Queen, David Bowie - Under Pressure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.track.Title())
		})
	}
}

func TestTrack_ArtistLine(t *testing.T) {
	tr := Track{Artists: []string{"A", "B", "C"}}
	assert.Equal(t, "A, B, C", tr.ArtistLine())

	empty := Track{}
	assert.Equal(t, "", empty.ArtistLine())
}
