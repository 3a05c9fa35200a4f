package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver("https://videos.example.com/", "")

	t.Run("fallback first season", func(t *testing.T) {
		assert.Equal(t, "https://videos.example.com/frieren/episode-4", r.Resolve("frieren", 1, 4, ""))
	})

	t.Run("fallback later season", func(t *testing.T) {
		assert.Equal(t, "https://videos.example.com/frieren-season-2/episode-1", r.Resolve("frieren", 2, 1, ""))
	})

	t.Run("per anime template", func(t *testing.T) {
		got := r.Resolve("frieren", 2, 7, "https://other.example.com/watch/{slug}/{season}/{episode}")
		assert.Equal(t, "https://other.example.com/watch/frieren/2/7", got)
	})

	t.Run("template without season", func(t *testing.T) {
		got := r.Resolve("frieren", 3, 7, "https://other.example.com/{slug}-ep-{episode}")
		assert.Equal(t, "https://other.example.com/frieren-ep-7", got)
	})

	t.Run("template missing required placeholder falls back", func(t *testing.T) {
		got := r.Resolve("frieren", 1, 7, "https://other.example.com/{slug}")
		assert.Equal(t, "https://videos.example.com/frieren/episode-7", got)
	})
}

func TestResolver_Precedence(t *testing.T) {
	r := NewResolver("https://videos.example.com", "https://default.example.com/{slug}/{episode}")

	assert.Equal(t, "https://default.example.com/x/2", r.Resolve("x", 1, 2, ""))
	assert.Equal(t, "https://anime.example.com/x?ep=2", r.Resolve("x", 1, 2, "https://anime.example.com/{slug}?ep={episode}"))
	assert.Equal(t, "https://default.example.com/x/2", r.Resolve("x", 1, 2, "https://broken.example.com/{episode}"))
}

func TestValidateTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		wantErr  bool
	}{
		{name: "empty", template: ""},
		{name: "no placeholders", template: "https://example.com/watch"},
		{name: "all placeholders", template: "https://example.com/{slug}/{season}/{episode}"},
		{name: "unknown placeholder", template: "https://example.com/{slug}/{ep}", wantErr: true},
		{name: "unclosed brace", template: "https://example.com/{slug", wantErr: true},
		{name: "stray close brace", template: "https://example.com/slug}/{episode}", wantErr: true},
		{name: "nested brace", template: "https://example.com/{sl{ug}", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTemplate(tt.template)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTemplate)
				return
			}
			assert.NoError(t, err)
		})
	}
}
