package manager

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kasuboski/animez/pkg/storage"
)

// ProgressSnapshot is an immutable view of a run. A new snapshot is published after every transition.
type ProgressSnapshot struct {
	Total          int       `json:"total"`
	Completed      int       `json:"completed"`
	Downloading    int       `json:"downloading"`
	Uploading      int       `json:"uploading"`
	Ready          int       `json:"ready"`
	Failed         int       `json:"failed"`
	CurrentEpisode string    `json:"currentEpisode"`
	Message        string    `json:"message"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Progress has many writers and lock free readers
type Progress struct {
	mu       sync.Mutex
	snapshot atomic.Pointer[ProgressSnapshot]
}

func NewProgress() *Progress {
	p := &Progress{}
	p.snapshot.Store(&ProgressSnapshot{UpdatedAt: time.Now()})
	return p
}

// Snapshot returns the latest published state without blocking writers
func (p *Progress) Snapshot() ProgressSnapshot {
	return *p.snapshot.Load()
}

func (p *Progress) update(fn func(s *ProgressSnapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := *p.snapshot.Load()
	fn(&next)
	next.UpdatedAt = time.Now()
	p.snapshot.Store(&next)
}

func (p *Progress) start(total int, message string) {
	p.update(func(s *ProgressSnapshot) {
		s.Total = total
		s.Message = message
	})
}

func (p *Progress) message(message string) {
	p.update(func(s *ProgressSnapshot) {
		s.Message = message
	})
}

// transition moves one episode between the in flight buckets
func (p *Progress) transition(item WorkItem, from, to storage.EpisodeStatus) {
	p.update(func(s *ProgressSnapshot) {
		switch from {
		case storage.EpisodeStatusDownloading:
			s.Downloading--
		case storage.EpisodeStatusUploading:
			s.Uploading--
		}

		switch to {
		case storage.EpisodeStatusDownloading:
			s.Downloading++
		case storage.EpisodeStatusUploading:
			s.Uploading++
		}

		s.CurrentEpisode = item.String()
		s.Message = fmt.Sprintf("%s %s", item, to)
	})
}

// finish records an item's final outcome
func (p *Progress) finish(item WorkItem, result WorkResult) {
	p.update(func(s *ProgressSnapshot) {
		s.Completed++
		switch {
		case result.Status == storage.EpisodeStatusReady:
			s.Ready++
		case result.Status == storage.EpisodeStatusError, result.Status == storage.EpisodeStatusSourceMissing:
			s.Failed++
		}

		s.CurrentEpisode = item.String()
		s.Message = fmt.Sprintf("%s finished as %s", item, result.Status)
	})
}
