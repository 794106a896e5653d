//nolint:revive // types is a standard Go package name pattern
package types

// LinkCandidate is an already published post that may be linked from a new article.
type LinkCandidate struct {
	ID             int    `json:"id"`
	Title          string `json:"title"`
	URL            string `json:"url"`
	SummaryContext string `json:"summary_context"`
	Excerpt        string `json:"excerpt"`
	IsPopular      bool   `json:"is_popular"`

	// Set by relevance scoring
	RelevanceScore  int    `json:"relevance_score,omitempty"`
	RelevanceReason string `json:"relevance_reason,omitempty"`
}

// RelevanceResult is one entry of the model's relevance answer.
type RelevanceResult struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}
