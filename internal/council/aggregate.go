package council

import (
	"math"
	"sort"
)

// AggregateRankings collapses per-judge rankings into one consensus list.
// A member's score is the mean of its 1-based positions across every
// judgment that ranked it, rounded to 2 decimals; members never ranked by
// anyone are absent. The result is sorted ascending by average rank with a
// stable tie-break on first appearance across judgments.
//
// Labels not present in labelToModel are skipped. A label appearing twice
// in one judgment contributes both positions; garbage in, garbage counted.
func AggregateRankings(judgments []RankingJudgment, labelToModel map[string]string) []AggregateEntry {
	positions := make(map[string][]int)
	order := make([]string, 0, len(labelToModel))

	for _, j := range judgments {
		for i, label := range j.ParsedRanking {
			model, ok := labelToModel[label]
			if !ok {
				continue
			}
			if _, seen := positions[model]; !seen {
				order = append(order, model)
			}
			positions[model] = append(positions[model], i+1)
		}
	}

	entries := make([]AggregateEntry, 0, len(order))
	for _, model := range order {
		ranks := positions[model]
		sum := 0
		for _, r := range ranks {
			sum += r
		}
		avg := float64(sum) / float64(len(ranks))
		entries = append(entries, AggregateEntry{
			Model:         model,
			AverageRank:   math.Round(avg*100) / 100,
			RankingsCount: len(ranks),
		})
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].AverageRank < entries[b].AverageRank
	})
	return entries
}
