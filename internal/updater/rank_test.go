package updater_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mangawatch/internal/updater"
	"mangawatch/pkg/models"
)

func TestParseStrategy(t *testing.T) {
	cases := []struct {
		in   string
		want updater.Strategy
	}{
		{"lexicographic", updater.RankLexicographic},
		{"latest_first", updater.RankLatestFirst},
		{"next_first", updater.RankNextFirst},
		{" Latest_First ", updater.RankLatestFirst},
		{"", updater.RankLexicographic},
		{"bogus", updater.RankLexicographic},
	}
	for _, tc := range cases {
		if got := updater.ParseStrategy(tc.in); got != tc.want {
			t.Errorf("ParseStrategy(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStrategySort(t *testing.T) {
	now := time.UnixMilli(1000)
	titles := []models.Title{
		{ID: 1, Name: "Berserk", LastUpdate: 500, NextUpdate: 900},
		{ID: 2, Name: "Akira", LastUpdate: 800, NextUpdate: 2000},
		{ID: 3, Name: "Chainsaw", LastUpdate: 300, NextUpdate: 1050},
	}

	cases := []struct {
		strategy updater.Strategy
		want     []int64
	}{
		{updater.RankLexicographic, []int64{2, 1, 3}},
		{updater.RankLatestFirst, []int64{2, 1, 3}},
		// distances from now=1000: |100|=100, |1000|=1000, |50|=50
		{updater.RankNextFirst, []int64{3, 1, 2}},
	}

	for _, tc := range cases {
		t.Run(string(tc.strategy), func(t *testing.T) {
			in := make([]models.Title, len(titles))
			copy(in, titles)
			tc.strategy.Sort(in, now)

			got := make([]int64, len(in))
			for i, title := range in {
				got[i] = title.ID
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStrategySortTotalOrder(t *testing.T) {
	// identical fields except id must still order deterministically
	titles := []models.Title{
		{ID: 2, Name: "Same", LastUpdate: 100, NextUpdate: 100},
		{ID: 1, Name: "Same", LastUpdate: 100, NextUpdate: 100},
	}
	for _, s := range []updater.Strategy{updater.RankLexicographic, updater.RankLatestFirst, updater.RankNextFirst} {
		in := make([]models.Title, len(titles))
		copy(in, titles)
		s.Sort(in, time.UnixMilli(0))
		if in[0].ID != 1 || in[1].ID != 2 {
			t.Errorf("%s: expected id tie-break ordering, got %d, %d", s, in[0].ID, in[1].ID)
		}
	}
}
