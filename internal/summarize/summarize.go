// Package summarize condenses a source article into the structured context
// used for context-based generation.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/logishift/internal/llm"
	"github.com/jonathan/logishift/internal/prompts"
	"github.com/jonathan/logishift/internal/types"
)

// Error represents a failed summarization
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("summarize: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("summarize: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Summarizer produces ArticleContext values.
type Summarizer struct {
	client llm.Client
	tier   llm.ModelTier
}

// New creates a Summarizer.
func New(client llm.Client) *Summarizer {
	return &Summarizer{client: client, tier: llm.TierStandard}
}

// Summarize returns the summary, key facts and editorial angle of an article.
func (s *Summarizer) Summarize(ctx context.Context, content, title string) (*types.ArticleContext, error) {
	if strings.TrimSpace(content) == "" {
		return nil, &Error{Message: "no content to summarize"}
	}

	prompt, err := prompts.Render("summarize.json", "article", map[string]string{
		"Title":   title,
		"Content": content,
	})
	if err != nil {
		return nil, &Error{Message: "prompt unavailable", Cause: err}
	}

	resp, err := s.client.GenerateJSON(ctx, prompt, s.tier)
	if err != nil {
		return nil, &Error{Message: "model call failed", Cause: err}
	}

	var result types.ArticleContext
	if err := json.Unmarshal([]byte(llm.CleanJSONBlock(resp)), &result); err != nil {
		return nil, &Error{Message: "invalid response", Cause: err}
	}
	if strings.TrimSpace(result.Summary) == "" {
		return nil, &Error{Message: "response has no summary"}
	}
	if result.KeyFacts == nil {
		result.KeyFacts = []string{}
	}
	return &result, nil
}
