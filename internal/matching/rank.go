// Package matching filters and ranks candidate profiles for the swipe feed.
package matching

import (
	"sort"

	"rallymatch/backend/internal/models"
)

// RankOptions tune the compatibility filter.
type RankOptions struct {
	// Mutual additionally requires the candidate to accept the viewer's level.
	Mutual bool
}

// Rank drops the viewer itself and every candidate whose level the viewer does
// not accept, then orders the rest by availability overlap, highest first.
// Ties keep their input order, so ranking unchanged input is deterministic.
func Rank(self models.Profile, candidates []models.Profile) []models.RankedCandidate {
	return RankWith(self, candidates, RankOptions{})
}

// RankWith is Rank with explicit options.
func RankWith(self models.Profile, candidates []models.Profile, opts RankOptions) []models.RankedCandidate {
	selfDays := daySet(self.AvailableDays)

	out := make([]models.RankedCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == self.ID {
			continue
		}
		if !self.Accepts(c.Level) {
			continue
		}
		if opts.Mutual && !c.Accepts(self.Level) {
			continue
		}
		out = append(out, models.RankedCandidate{
			Profile:             c,
			AvailabilityOverlap: overlap(selfDays, c.AvailableDays),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AvailabilityOverlap > out[j].AvailabilityOverlap
	})
	return out
}

// Overlap counts the distinct weekdays present in both a and b.
func Overlap(a, b []string) int {
	return overlap(daySet(a), b)
}

func daySet(days []string) map[string]struct{} {
	set := make(map[string]struct{}, len(days))
	for _, d := range models.NormalizeDays(days) {
		set[d] = struct{}{}
	}
	return set
}

func overlap(set map[string]struct{}, days []string) int {
	n := 0
	for _, d := range models.NormalizeDays(days) {
		if _, ok := set[d]; ok {
			n++
		}
	}
	return n
}
