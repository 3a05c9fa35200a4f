// Package address builds the object storage paths and public URLs episodes are served from.
package address

import (
	"fmt"
	"strings"
)

// Version identifies the current path layout. Any change to padding or extension bumps it.
const Version = 1

const extension = ".mp4"

// RemotePath returns the object key for an episode, e.g. "frieren/season-1/episode-3.mp4".
// Numbers are never zero padded.
func RemotePath(slug string, seasonNumber, episodeNumber int32) string {
	return fmt.Sprintf("%s/season-%d/episode-%d%s", slug, seasonNumber, episodeNumber, extension)
}

type Addresser struct {
	cdnHost string
}

// New returns an Addresser for the given CDN host. A scheme or trailing slash on the host is ignored.
func New(cdnHost string) Addresser {
	host := strings.TrimPrefix(cdnHost, "https://")
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimRight(host, "/")
	return Addresser{cdnHost: host}
}

func (a Addresser) Host() string {
	return a.cdnHost
}

// CanonicalURL returns the public URL for an object key
func (a Addresser) CanonicalURL(remotePath string) string {
	return "https://" + a.cdnHost + "/" + strings.TrimLeft(remotePath, "/")
}

func (a Addresser) EpisodeURL(slug string, seasonNumber, episodeNumber int32) string {
	return a.CanonicalURL(RemotePath(slug, seasonNumber, episodeNumber))
}
