// Package dedup decides whether a candidate article covers the same event as
// content that is already published or was generated earlier in the run.
package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jonathan/logishift/internal/llm"
	"github.com/jonathan/logishift/internal/prompts"
)

// MaxSummaryRunes bounds the candidate summary sent with a check.
const MaxSummaryRunes = 500

// FailurePolicy is the answer IsDuplicate gives when a check fails.
type FailurePolicy int

const (
	// AssumeUnique reports "not a duplicate" on failure so a transient error
	// never drops a legitimate candidate.
	AssumeUnique FailurePolicy = iota
	// AssumeDuplicate reports "duplicate" on failure.
	AssumeDuplicate
)

// Verdict is the outcome of one duplicate check.
type Verdict struct {
	IsDuplicate  bool   `json:"is_duplicate"`
	MatchedTitle string `json:"matched_title"`
	Reason       string `json:"reason"`
}

// Checker runs duplicate checks against a list of existing titles.
type Checker struct {
	client llm.Client
	tier   llm.ModelTier
	policy FailurePolicy
	logger zerolog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithPolicy overrides the failure policy.
func WithPolicy(p FailurePolicy) Option {
	return func(c *Checker) { c.policy = p }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Checker) { c.logger = logger }
}

// New creates a Checker. The default failure policy is AssumeUnique.
func New(client llm.Client, opts ...Option) *Checker {
	c := &Checker{
		client: client,
		tier:   llm.TierLite,
		policy: AssumeUnique,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check asks whether the candidate overlaps any existing title. An empty
// existing list, or an exact title match, is decided without a model call.
func (c *Checker) Check(ctx context.Context, title, summary string, existing []string) (*Verdict, error) {
	if len(existing) == 0 {
		return &Verdict{IsDuplicate: false, Reason: "nothing to compare against"}, nil
	}

	normalized := normalizeTitle(title)
	for _, e := range existing {
		if normalizeTitle(e) == normalized {
			return &Verdict{IsDuplicate: true, MatchedTitle: e, Reason: "identical title"}, nil
		}
	}

	var list strings.Builder
	for _, e := range existing {
		fmt.Fprintf(&list, "- %s\n", e)
	}

	prompt, err := prompts.Render("dedup.json", "check", map[string]string{
		"Title":    title,
		"Summary":  truncateRunes(summary, MaxSummaryRunes),
		"Existing": list.String(),
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.client.GenerateJSON(ctx, prompt, c.tier)
	if err != nil {
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}

	return parseVerdict(resp)
}

// IsDuplicate runs Check and applies the failure policy to any error.
func (c *Checker) IsDuplicate(ctx context.Context, title, summary string, existing []string) bool {
	verdict, err := c.Check(ctx, title, summary, existing)
	if err != nil {
		fallback := c.policy == AssumeDuplicate
		c.logger.Warn().Err(err).
			Str("title", title).
			Bool("assumed_duplicate", fallback).
			Msg("duplicate check failed, applying failure policy")
		return fallback
	}
	if verdict.IsDuplicate {
		c.logger.Info().
			Str("title", title).
			Str("matched_title", verdict.MatchedTitle).
			Str("reason", verdict.Reason).
			Msg("duplicate detected")
	}
	return verdict.IsDuplicate
}

type rawVerdict struct {
	IsDuplicate  json.RawMessage `json:"is_duplicate"`
	MatchedTitle string          `json:"matched_title"`
	Reason       string          `json:"reason"`
}

func parseVerdict(resp string) (*Verdict, error) {
	var raw rawVerdict
	if err := json.Unmarshal([]byte(llm.CleanJSONBlock(resp)), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse duplicate verdict: %w", err)
	}

	dup, ok := llm.LooseBool(raw.IsDuplicate)
	if !ok {
		return nil, fmt.Errorf("duplicate verdict has no usable is_duplicate field")
	}
	return &Verdict{
		IsDuplicate:  dup,
		MatchedTitle: strings.TrimSpace(raw.MatchedTitle),
		Reason:       strings.TrimSpace(raw.Reason),
	}, nil
}

func normalizeTitle(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
