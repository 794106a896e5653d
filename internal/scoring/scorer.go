// Package scoring rates candidate articles for editorial relevance, batching
// several articles into one model call and falling back to per-article calls
// when the batch answer cannot be matched back to its articles.
package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jonathan/logishift/internal/llm"
	"github.com/jonathan/logishift/internal/prompts"
	"github.com/jonathan/logishift/internal/types"
)

// DefaultBatchSize is the number of articles scored per model call.
const DefaultBatchSize = 10

const promptFile = "scoring.json"

// Scorer scores candidate articles. Every Score* method returns exactly one
// record per input article, in input order.
type Scorer struct {
	client    llm.Client
	tier      llm.ModelTier
	batchSize int
	logger    zerolog.Logger
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithBatchSize sets how many articles ScoreAll sends per call.
func WithBatchSize(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithTier selects the model tier used for scoring.
func WithTier(tier llm.ModelTier) Option {
	return func(s *Scorer) { s.tier = tier }
}

// WithLogger sets the logger for per-batch and per-article outcomes.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scorer) { s.logger = logger }
}

// New creates a Scorer backed by client.
func New(client llm.Client, opts ...Option) *Scorer {
	s := &Scorer{
		client:    client,
		tier:      llm.TierStandard,
		batchSize: DefaultBatchSize,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BatchSize returns the configured window size.
func (s *Scorer) BatchSize() int {
	return s.batchSize
}

// ScoreAll scores articles in consecutive windows of the batch size. Each
// window is independent: a failed window still yields records for its own
// articles and does not affect the others.
func (s *Scorer) ScoreAll(ctx context.Context, articles []types.CandidateArticle) []types.ScoredArticle {
	scored := make([]types.ScoredArticle, 0, len(articles))
	for start := 0; start < len(articles); start += s.batchSize {
		end := min(start+s.batchSize, len(articles))
		s.logger.Info().
			Int("from", start+1).
			Int("to", end).
			Int("total", len(articles)).
			Msg("scoring batch")
		scored = append(scored, s.ScoreBatch(ctx, articles[start:end], start)...)
	}
	return scored
}

// ScoreBatch scores articles in one model call. Article i is given the local
// id startID+i. Articles the answer does not cover are scored individually;
// if the call or its decoding fails, every article is scored individually.
func (s *Scorer) ScoreBatch(ctx context.Context, articles []types.CandidateArticle, startID int) []types.ScoredArticle {
	if len(articles) == 0 {
		return []types.ScoredArticle{}
	}

	rec, err := s.requestBatch(ctx, articles, startID)
	if err != nil {
		s.logger.Warn().Err(err).
			Int("start_id", startID).
			Int("size", len(articles)).
			Msg("batch scoring failed, falling back to individual scoring")
	} else if rec.Kind == Positional {
		s.logger.Debug().Int("start_id", startID).Msg("batch ids unreliable, mapping results by position")
	}

	out := make([]types.ScoredArticle, len(articles))
	for i, article := range articles {
		if rec.Kind != Unrecoverable && rec.Results[i] != nil {
			out[i] = toScored(article, *rec.Results[i])
			continue
		}
		if rec.Kind != Unrecoverable {
			s.logger.Warn().
				Int("id", startID+i).
				Str("title", article.Title).
				Msg("article missing from batch response, scoring individually")
		}
		out[i] = s.ScoreOne(ctx, article)
	}
	return out
}

func (s *Scorer) requestBatch(ctx context.Context, articles []types.CandidateArticle, startID int) (Reconciliation, error) {
	prompt, err := prompts.Render(promptFile, "batch", map[string]string{
		"Articles": formatArticles(articles, startID),
	})
	if err != nil {
		return Reconciliation{Kind: Unrecoverable}, err
	}

	resp, err := s.client.GenerateJSON(ctx, prompt, s.tier)
	if err != nil {
		return Reconciliation{Kind: Unrecoverable}, &APICallError{Message: "batch request", Cause: err}
	}

	results, err := ParseResults(resp)
	if err != nil {
		return Reconciliation{Kind: Unrecoverable}, err
	}

	rec := Reconcile(results, startID, len(articles))
	if rec.Kind == Unrecoverable {
		return rec, &ParseError{Message: fmt.Sprintf("%d entries could not be matched to %d articles", len(results), len(articles))}
	}
	return rec, nil
}

// ScoreOne scores a single article. It never fails: any error becomes a
// record with score 0 and relevance "error".
func (s *Scorer) ScoreOne(ctx context.Context, article types.CandidateArticle) types.ScoredArticle {
	scored, err := s.scoreOne(ctx, article)
	if err != nil {
		s.logger.Error().Err(err).Str("title", article.Title).Msg("error scoring individual article")
		return types.ScoredArticle{
			CandidateArticle: article,
			Score:            0,
			Reasoning:        "Error: " + err.Error(),
			Relevance:        types.RelevanceError,
		}
	}
	return scored
}

func (s *Scorer) scoreOne(ctx context.Context, article types.CandidateArticle) (types.ScoredArticle, error) {
	prompt, err := prompts.Render(promptFile, "single", map[string]string{
		"Title":   article.Title,
		"Summary": article.Summary,
		"Source":  article.Source,
	})
	if err != nil {
		return types.ScoredArticle{}, err
	}

	resp, err := s.client.GenerateJSON(ctx, prompt, s.tier)
	if err != nil {
		return types.ScoredArticle{}, &APICallError{Message: "single request", Cause: err}
	}

	results, err := ParseResults(resp)
	if err != nil {
		return types.ScoredArticle{}, err
	}
	if len(results) == 0 {
		return types.ScoredArticle{}, &ParseError{Message: "no result in response"}
	}
	return toScored(article, results[0]), nil
}

func toScored(article types.CandidateArticle, res Result) types.ScoredArticle {
	return types.ScoredArticle{
		CandidateArticle: article,
		Score:            res.Score,
		Reasoning:        res.Reasoning,
		Relevance:        types.ParseRelevance(res.Relevance),
	}
}

func formatArticles(articles []types.CandidateArticle, startID int) string {
	var sb strings.Builder
	for i, a := range articles {
		fmt.Fprintf(&sb, "Article ID: %d\n", startID+i)
		fmt.Fprintf(&sb, "Title: %s\n", valueOr(a.Title, "Unknown"))
		fmt.Fprintf(&sb, "Source: %s\n", valueOr(a.Source, "Unknown"))
		fmt.Fprintf(&sb, "Summary: %s\n\n", a.Summary)
	}
	return sb.String()
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
