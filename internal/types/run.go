package types

import "time"

// ItemStatus is the outcome of processing one high-scoring candidate.
type ItemStatus string

const (
	StatusPublished ItemStatus = "published"
	StatusDryRun    ItemStatus = "dry_run"
	StatusDuplicate ItemStatus = "duplicate"
	StatusFailed    ItemStatus = "failed"
)

// ItemOutcome records what happened to one candidate during generation.
type ItemOutcome struct {
	Title  string      `json:"title"`
	URL    string      `json:"url"`
	Score  int         `json:"score"`
	Type   ArticleType `json:"type,omitempty"`
	Status ItemStatus  `json:"status"`
	Reason string      `json:"reason,omitempty"`

	GeneratedTitle string `json:"generated_title,omitempty"`
	PostID         int    `json:"post_id,omitempty"`
	Link           string `json:"link,omitempty"`
}

// RunReport summarizes one pipeline run.
type RunReport struct {
	RunID          string        `json:"run_id"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
	DryRun         bool          `json:"dry_run"`
	Threshold      int           `json:"threshold"`
	Collected      int           `json:"collected"`
	Scored         int           `json:"scored"`
	AboveThreshold int           `json:"above_threshold"`
	Outcomes       []ItemOutcome `json:"outcomes"`
}

// Generated counts the candidates that produced an article, published or not.
func (r *RunReport) Generated() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusPublished || o.Status == StatusDryRun {
			n++
		}
	}
	return n
}

// Count returns the number of outcomes with the given status.
func (r *RunReport) Count(status ItemStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}
