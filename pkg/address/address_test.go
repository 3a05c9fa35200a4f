package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemotePath(t *testing.T) {
	tests := []struct {
		name    string
		slug    string
		season  int32
		episode int32
		want    string
	}{
		{name: "single digits", slug: "x", season: 1, episode: 3, want: "x/season-1/episode-3.mp4"},
		{name: "no padding", slug: "one-piece", season: 2, episode: 110, want: "one-piece/season-2/episode-110.mp4"},
		{name: "double digit season", slug: "gintama", season: 10, episode: 1, want: "gintama/season-10/episode-1.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RemotePath(tt.slug, tt.season, tt.episode))
		})
	}
}

func TestAddresser(t *testing.T) {
	t.Run("episode url", func(t *testing.T) {
		a := New("cdn.example.com")
		assert.Equal(t, "https://cdn.example.com/x/season-1/episode-3.mp4", a.EpisodeURL("x", 1, 3))
	})

	t.Run("host normalization", func(t *testing.T) {
		for _, host := range []string{"cdn.example.com", "https://cdn.example.com", "http://cdn.example.com/", "cdn.example.com//"} {
			a := New(host)
			assert.Equal(t, "cdn.example.com", a.Host())
			assert.Equal(t, "https://cdn.example.com/a/season-1/episode-1.mp4", a.CanonicalURL("/a/season-1/episode-1.mp4"))
		}
	})

	t.Run("same input same output", func(t *testing.T) {
		a := New("cdn.example.com")
		assert.Equal(t, a.EpisodeURL("frieren", 1, 28), a.EpisodeURL("frieren", 1, 28))
		assert.NotEqual(t, a.EpisodeURL("frieren", 1, 2), a.EpisodeURL("frieren", 2, 1))
	})
}
