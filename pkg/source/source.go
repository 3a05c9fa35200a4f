// Package source resolves the third-party page an episode is fetched from.
package source

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	PlaceholderSlug    = "{slug}"
	PlaceholderSeason  = "{season}"
	PlaceholderEpisode = "{episode}"
)

var (
	ErrInvalidTemplate = errors.New("invalid source template")

	knownPlaceholders = map[string]struct{}{
		PlaceholderSlug:    {},
		PlaceholderSeason:  {},
		PlaceholderEpisode: {},
	}
)

type Resolver struct {
	baseURL         string
	defaultTemplate string
}

// NewResolver returns a Resolver that falls back to baseURL when no usable template applies
func NewResolver(baseURL, defaultTemplate string) Resolver {
	return Resolver{
		baseURL:         strings.TrimRight(baseURL, "/"),
		defaultTemplate: defaultTemplate,
	}
}

// Resolve returns the source page for an episode. template is the per-anime override and may be empty.
// A per-anime template wins over the configured default, which wins over the built in layout.
func (r Resolver) Resolve(slug string, seasonNumber, episodeNumber int32, template string) string {
	for _, t := range []string{template, r.defaultTemplate} {
		if usable(t) {
			return substitute(t, slug, seasonNumber, episodeNumber)
		}
	}

	return r.fallback(slug, seasonNumber, episodeNumber)
}

func (r Resolver) fallback(slug string, seasonNumber, episodeNumber int32) string {
	if seasonNumber <= 1 {
		return fmt.Sprintf("%s/%s/episode-%d", r.baseURL, slug, episodeNumber)
	}
	return fmt.Sprintf("%s/%s-season-%d/episode-%d", r.baseURL, slug, seasonNumber, episodeNumber)
}

// usable reports whether a template has the placeholders needed to address a single episode
func usable(template string) bool {
	return strings.Contains(template, PlaceholderSlug) && strings.Contains(template, PlaceholderEpisode)
}

func substitute(template, slug string, seasonNumber, episodeNumber int32) string {
	return strings.NewReplacer(
		PlaceholderSlug, slug,
		PlaceholderSeason, strconv.Itoa(int(seasonNumber)),
		PlaceholderEpisode, strconv.Itoa(int(episodeNumber)),
	).Replace(template)
}

// ValidateTemplate rejects templates with unknown placeholders or unbalanced braces.
// Templates that are missing placeholders are valid and fall back when resolving.
func ValidateTemplate(template string) error {
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		end := strings.IndexByte(rest, '}')

		switch {
		case open == -1 && end == -1:
			return nil
		case open == -1 || (end != -1 && end < open):
			return fmt.Errorf("%w: unexpected '}' in %q", ErrInvalidTemplate, template)
		case end == -1:
			return fmt.Errorf("%w: unclosed '{' in %q", ErrInvalidTemplate, template)
		}

		placeholder := rest[open : end+1]
		if strings.ContainsRune(placeholder[1:], '{') {
			return fmt.Errorf("%w: nested '{' in %q", ErrInvalidTemplate, template)
		}
		if _, ok := knownPlaceholders[placeholder]; !ok {
			return fmt.Errorf("%w: unknown placeholder %s", ErrInvalidTemplate, placeholder)
		}

		rest = rest[end+1:]
	}
}
