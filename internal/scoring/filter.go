package scoring

import (
	"sort"

	"github.com/jonathan/logishift/internal/types"
)

// FilterAndSort returns the articles scoring at least threshold, highest
// first. Articles with equal scores keep their input order. The input slice
// is not modified.
func FilterAndSort(articles []types.ScoredArticle, threshold int) []types.ScoredArticle {
	selected := make([]types.ScoredArticle, 0, len(articles))
	for _, a := range articles {
		if a.Score >= threshold {
			selected = append(selected, a)
		}
	}
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Score > selected[j].Score
	})
	return selected
}

// BuildReport assembles the score command's output document.
func BuildReport(articles []types.ScoredArticle, threshold int) types.ScoreReport {
	if articles == nil {
		articles = []types.ScoredArticle{}
	}
	high := FilterAndSort(articles, threshold)
	return types.ScoreReport{
		Threshold:         threshold,
		Total:             len(articles),
		HighScoreCount:    len(high),
		Articles:          articles,
		HighScoreArticles: high,
	}
}
