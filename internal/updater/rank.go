package updater

import (
	"sort"
	"strings"
	"time"

	"mangawatch/pkg/models"
)

// Strategy names the order a run processes titles in. The string values are
// stable identifiers: they are persisted as a user preference.
type Strategy string

const (
	// RankLexicographic orders ascending by title name.
	RankLexicographic Strategy = "lexicographic"
	// RankLatestFirst orders descending by lastUpdate.
	RankLatestFirst Strategy = "latest_first"
	// RankNextFirst orders by how close the estimated next release is to
	// now, past-due or upcoming alike.
	RankNextFirst Strategy = "next_first"
)

// ParseStrategy maps a persisted preference string to a Strategy, falling
// back to lexicographic for anything unknown.
func ParseStrategy(value string) Strategy {
	switch Strategy(strings.ToLower(strings.TrimSpace(value))) {
	case RankLatestFirst:
		return RankLatestFirst
	case RankNextFirst:
		return RankNextFirst
	default:
		return RankLexicographic
	}
}

// Sort orders titles in place. Every strategy tie-breaks on id so distinct
// titles never compare equal and the queue order is deterministic.
func (s Strategy) Sort(titles []models.Title, now time.Time) {
	less := s.less(now)
	sort.Slice(titles, func(i, j int) bool {
		return less(titles[i], titles[j])
	})
}

func (s Strategy) less(now time.Time) func(a, b models.Title) bool {
	switch s {
	case RankLatestFirst:
		return func(a, b models.Title) bool {
			if a.LastUpdate != b.LastUpdate {
				return a.LastUpdate > b.LastUpdate
			}
			return a.ID < b.ID
		}
	case RankNextFirst:
		nowMillis := now.UnixMilli()
		return func(a, b models.Title) bool {
			da, db := abs64(nowMillis-a.NextUpdate), abs64(nowMillis-b.NextUpdate)
			if da != db {
				return da < db
			}
			return a.ID < b.ID
		}
	default:
		return func(a, b models.Title) bool {
			if a.Name != b.Name {
				return a.Name < b.Name
			}
			return a.ID < b.ID
		}
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
