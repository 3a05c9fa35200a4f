package manager

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/kasuboski/animez/pkg/storage"
	"github.com/kasuboski/animez/pkg/storage/sqlite/schema/gen/model"
)

// SeasonPlan is where one season ends up after reconciliation
type SeasonPlan struct {
	// SeasonID is nil when the season row has to be created
	SeasonID *int32 `json:"seasonID"`
	// OriginalNumber is the number the season or its episodes carried before, nil for unnumbered rows
	OriginalNumber *int32 `json:"originalNumber"`
	FinalNumber    int32  `json:"finalNumber"`
	// Synthetic seasons are built from episodes that had no usable season number
	Synthetic bool         `json:"synthetic"`
	Episodes  []EpisodeRef `json:"episodes"`
}

type EpisodeRef struct {
	ID            int32 `json:"id"`
	EpisodeNumber int32 `json:"episodeNumber"`
}

// SeasonLayout is the full target structure for one anime
type SeasonLayout struct {
	Seasons []SeasonPlan `json:"seasons"`
	// Delete lists season ids left without episodes
	Delete []int32 `json:"delete"`
}

// PlanSeasonLayout works out the season structure for an anime without touching storage.
// Episodes with a positive season number keep their grouping. The rest are sorted by episode number
// and bucketed into synthetic seasons of seasonSize, only breaking a full bucket at a numbering gap.
// Final numbers run 1..K ordered by original number with synthetic seasons last.
func PlanSeasonLayout(seasons []*model.Season, episodes []*storage.Episode, seasonSize int) SeasonLayout {
	if seasonSize <= 0 {
		seasonSize = DefaultSeasonSize
	}

	grouped := make(map[int32][]*storage.Episode)
	var ungrouped []*storage.Episode
	for _, e := range episodes {
		if e.SeasonNumber != nil && *e.SeasonNumber > 0 {
			grouped[*e.SeasonNumber] = append(grouped[*e.SeasonNumber], e)
			continue
		}
		ungrouped = append(ungrouped, e)
	}

	numbered := make(map[int32]*model.Season)
	var spare []*model.Season
	for _, s := range seasons {
		if s.SeasonNumber != nil && *s.SeasonNumber > 0 {
			numbered[*s.SeasonNumber] = s
			continue
		}
		spare = append(spare, s)
	}
	slices.SortFunc(spare, func(a, b *model.Season) int {
		return cmp.Compare(a.ID, b.ID)
	})

	numbers := make([]int32, 0, len(grouped))
	for n := range grouped {
		numbers = append(numbers, n)
	}
	slices.Sort(numbers)

	var layout SeasonLayout
	used := make(map[int32]bool)
	final := int32(0)

	for _, n := range numbers {
		final++
		plan := SeasonPlan{
			OriginalNumber: ptr(n),
			FinalNumber:    final,
			Episodes:       episodeRefs(grouped[n]),
		}
		if s, ok := numbered[n]; ok {
			plan.SeasonID = ptr(s.ID)
			used[s.ID] = true
		}
		layout.Seasons = append(layout.Seasons, plan)
	}

	for i, bucket := range bucketEpisodes(ungrouped, seasonSize) {
		final++
		plan := SeasonPlan{
			FinalNumber: final,
			Synthetic:   true,
			Episodes:    episodeRefs(bucket),
		}
		if i < len(spare) {
			plan.SeasonID = ptr(spare[i].ID)
			plan.OriginalNumber = spare[i].SeasonNumber
			used[spare[i].ID] = true
		}
		layout.Seasons = append(layout.Seasons, plan)
	}

	for _, s := range seasons {
		if !used[s.ID] {
			layout.Delete = append(layout.Delete, s.ID)
		}
	}
	slices.Sort(layout.Delete)

	return layout
}

func bucketEpisodes(episodes []*storage.Episode, size int) [][]*storage.Episode {
	sorted := slices.Clone(episodes)
	slices.SortFunc(sorted, func(a, b *storage.Episode) int {
		return cmp.Or(
			cmp.Compare(a.EpisodeNumber, b.EpisodeNumber),
			cmp.Compare(a.ID, b.ID),
		)
	})

	var buckets [][]*storage.Episode
	var current []*storage.Episode
	for _, e := range sorted {
		if len(current) >= size {
			prev := current[len(current)-1].EpisodeNumber
			if e.EpisodeNumber > prev+1 {
				buckets = append(buckets, current)
				current = nil
			}
		}
		current = append(current, e)
	}
	if len(current) > 0 {
		buckets = append(buckets, current)
	}

	return buckets
}

func episodeRefs(episodes []*storage.Episode) []EpisodeRef {
	refs := make([]EpisodeRef, len(episodes))
	for i, e := range episodes {
		refs[i] = EpisodeRef{ID: e.ID, EpisodeNumber: e.EpisodeNumber}
	}
	slices.SortFunc(refs, func(a, b EpisodeRef) int {
		return cmp.Or(cmp.Compare(a.EpisodeNumber, b.EpisodeNumber), cmp.Compare(a.ID, b.ID))
	})
	return refs
}

// FinalNumbers maps every planned episode id to its final season number
func (l SeasonLayout) FinalNumbers() map[int32]int32 {
	numbers := make(map[int32]int32)
	for _, plan := range l.Seasons {
		for _, e := range plan.Episodes {
			numbers[e.ID] = plan.FinalNumber
		}
	}
	return numbers
}

// String renders the layout one season per line, e.g. "season 1 (was 3, id 7): episodes 1-12"
func (l SeasonLayout) String() string {
	var b strings.Builder
	for _, plan := range l.Seasons {
		fmt.Fprintf(&b, "season %d (was %s, id %s", plan.FinalNumber, formatNumber(plan.OriginalNumber), formatNumber(plan.SeasonID))
		if plan.Synthetic {
			b.WriteString(", synthetic")
		}
		fmt.Fprintf(&b, "): episodes %s\n", episodeRanges(plan.Episodes))
	}
	for _, id := range l.Delete {
		fmt.Fprintf(&b, "delete season id %d\n", id)
	}
	return b.String()
}

func formatNumber(n *int32) string {
	if n == nil {
		return "none"
	}
	return fmt.Sprint(*n)
}

// episodeRanges collapses sorted episode numbers into "1-3,5"
func episodeRanges(refs []EpisodeRef) string {
	if len(refs) == 0 {
		return "none"
	}

	var parts []string
	start, prev := refs[0].EpisodeNumber, refs[0].EpisodeNumber
	flush := func() {
		if start == prev {
			parts = append(parts, fmt.Sprint(start))
			return
		}
		parts = append(parts, fmt.Sprintf("%d-%d", start, prev))
	}
	for _, r := range refs[1:] {
		if r.EpisodeNumber == prev+1 {
			prev = r.EpisodeNumber
			continue
		}
		flush()
		start, prev = r.EpisodeNumber, r.EpisodeNumber
	}
	flush()

	return strings.Join(parts, ",")
}

func ptr[T any](v T) *T {
	return &v
}
