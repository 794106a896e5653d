// Package types provides the data model shared by the LogiShift content pipeline.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// CandidateArticle is a raw news item produced by the collector.
type CandidateArticle struct {
	Title   string `json:"title" validate:"required"`
	URL     string `json:"url" validate:"required,url"`
	Source  string `json:"source"`
	Summary string `json:"summary"`
}

// Validate validates the CandidateArticle using the validator.
func (a *CandidateArticle) Validate() error {
	validate := validator.New()
	return validate.Struct(a)
}

// Relevance is the coarse editorial assessment returned alongside a score.
type Relevance string

const (
	RelevanceHigh   Relevance = "high"
	RelevanceMedium Relevance = "medium"
	RelevanceLow    Relevance = "low"
	// RelevanceError marks a record produced because scoring itself failed.
	RelevanceError Relevance = "error"
)

// ParseRelevance normalizes a model-provided relevance label.
// Anything unrecognised, including an empty value, is treated as low. A model
// cannot produce RelevanceError; it is set only when scoring itself fails.
func ParseRelevance(s string) Relevance {
	switch r := Relevance(strings.ToLower(strings.TrimSpace(s))); r {
	case RelevanceHigh, RelevanceMedium, RelevanceLow:
		return r
	default:
		return RelevanceLow
	}
}

// ScoredArticle is a CandidateArticle plus its editorial score.
// It marshals flat, with the candidate fields at the top level.
type ScoredArticle struct {
	CandidateArticle
	Score     int       `json:"score"`
	Reasoning string    `json:"reasoning"`
	Relevance Relevance `json:"relevance"`
}

// ScoreReport is the document written by the score command.
type ScoreReport struct {
	Threshold         int             `json:"threshold"`
	Total             int             `json:"total"`
	HighScoreCount    int             `json:"high_score_count"`
	Articles          []ScoredArticle `json:"articles"`
	HighScoreArticles []ScoredArticle `json:"high_score_articles"`
}
