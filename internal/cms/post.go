package cms

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Post statuses accepted by WordPress.
const (
	StatusPublish = "publish"
	StatusDraft   = "draft"
)

// SummaryMetaKey is the post meta field holding a post's structured summary.
const SummaryMetaKey = "ai_structured_summary"

// Rendered is a WordPress field exposed as {"rendered": "..."}.
type Rendered struct {
	Rendered string `json:"rendered"`
}

// Post is a post as returned by the REST API or the popular-posts endpoint.
type Post struct {
	ID      int                        `json:"id"`
	Date    string                     `json:"date"`
	Link    string                     `json:"link"`
	Status  string                     `json:"status,omitempty"`
	Title   Rendered                   `json:"title"`
	Excerpt Rendered                   `json:"excerpt"`
	Meta    map[string]json.RawMessage `json:"meta,omitempty"`
	// Views is only present on popular-posts results.
	Views *int `json:"views,omitempty"`
}

// IsPopular reports whether the post came from the popular-posts endpoint.
func (p Post) IsPopular() bool {
	return p.Views != nil
}

// StructuredSummary is the machine-written summary stored in post meta.
type StructuredSummary struct {
	Summary   string   `json:"summary"`
	KeyTopics []string `json:"key_topics"`
	Entities  []string `json:"entities"`
}

// StructuredSummary decodes the summary meta field. The field is stored as a
// JSON string but some endpoints return it already decoded.
func (p Post) StructuredSummary() (*StructuredSummary, bool) {
	raw, ok := p.Meta[SummaryMetaKey]
	if !ok || len(raw) == 0 {
		return nil, false
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		if strings.TrimSpace(encoded) == "" {
			return nil, false
		}
		raw = json.RawMessage(encoded)
	}

	var s StructuredSummary
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false
	}
	return &s, true
}

// NewPost is the body of a create-post request.
type NewPost struct {
	Title      string            `json:"title" validate:"required"`
	Content    string            `json:"content" validate:"required"`
	Status     string            `json:"status" validate:"required,oneof=publish draft pending private future"`
	Excerpt    string            `json:"excerpt,omitempty"`
	Categories []int             `json:"categories,omitempty"`
	Tags       []int             `json:"tags,omitempty"`
	Meta       map[string]string `json:"meta,omitempty"`
}

// Validate validates the NewPost using the validator.
func (p *NewPost) Validate() error {
	validate := validator.New()
	return validate.Struct(p)
}
