package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/logishift/internal/cms"
	"github.com/jonathan/logishift/internal/collector"
	"github.com/jonathan/logishift/internal/fetch"
	"github.com/jonathan/logishift/internal/llm"
	"github.com/jonathan/logishift/internal/types"
)

type MockLLMClient struct {
	GenerateContentFunc func(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
	GenerateJSONFunc    func(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
}

func (m *MockLLMClient) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	if m.GenerateContentFunc != nil {
		return m.GenerateContentFunc(ctx, prompt, tier)
	}
	return "", nil
}

func (m *MockLLMClient) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	if m.GenerateJSONFunc != nil {
		return m.GenerateJSONFunc(ctx, prompt, tier)
	}
	return "[]", nil
}

func (m *MockLLMClient) GetModel(_ llm.ModelTier) string { return "mock-model" }

func (m *MockLLMClient) Close() error { return nil }

type fakeCollector struct {
	articles []types.CandidateArticle
	window   collector.Window
}

func (f *fakeCollector) Collect(_ context.Context, _ []collector.Source, window collector.Window) []types.CandidateArticle {
	f.window = window
	return f.articles
}

// fakeScorer scores by title, defaulting to 0.
type fakeScorer struct {
	scores map[string]int
	inputs int
}

func (f *fakeScorer) ScoreAll(_ context.Context, articles []types.CandidateArticle) []types.ScoredArticle {
	f.inputs = len(articles)
	out := make([]types.ScoredArticle, len(articles))
	for i, a := range articles {
		out[i] = types.ScoredArticle{CandidateArticle: a, Score: f.scores[a.Title], Relevance: types.RelevanceHigh}
	}
	return out
}

type fakeClassifier struct {
	types map[string]types.ArticleType
}

func (f *fakeClassifier) ClassifyType(_ context.Context, title, _, _ string) types.ArticleType {
	if t, ok := f.types[title]; ok {
		return t
	}
	return types.ArticleTypeNews
}

type fakeExtractor struct {
	err   error
	calls int
}

func (f *fakeExtractor) ExtractArticle(_ context.Context, url, _ string) (*fetch.Article, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &fetch.Article{Title: "page", Content: "full text of " + url, URL: url}, nil
}

type fakeSummarizer struct {
	err error
}

func (f *fakeSummarizer) Summarize(_ context.Context, _, title string) (*types.ArticleContext, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &types.ArticleContext{Summary: "summary of " + title, KeyFacts: []string{"fact"}}, nil
}

type dedupCall struct {
	title    string
	summary  string
	existing []string
}

type fakeDedup struct {
	duplicates map[string]bool
	calls      []dedupCall
}

func (f *fakeDedup) IsDuplicate(_ context.Context, title, summary string, existing []string) bool {
	f.calls = append(f.calls, dedupCall{title: title, summary: summary, existing: append([]string(nil), existing...)})
	return f.duplicates[title]
}

type fakeGenerator struct {
	fail map[string]bool
	jobs []types.GenerationJob
}

func (f *fakeGenerator) Generate(_ context.Context, job types.GenerationJob) (*types.GeneratedArticle, error) {
	f.jobs = append(f.jobs, job)
	if f.fail[job.Keyword] {
		return nil, errors.New("model refused")
	}
	return &types.GeneratedArticle{Title: "Article: " + job.Keyword, Content: "body", Type: job.Type, Keyword: job.Keyword}, nil
}

type fakePublisher struct {
	err       error
	published []*types.GeneratedArticle
	dryRuns   []bool
}

func (f *fakePublisher) Publish(_ context.Context, article *types.GeneratedArticle, dryRun bool) (*cms.PublishResult, error) {
	f.dryRuns = append(f.dryRuns, dryRun)
	if f.err != nil {
		return nil, f.err
	}
	f.published = append(f.published, article)
	if dryRun {
		return &cms.PublishResult{DryRun: true}, nil
	}
	return &cms.PublishResult{PostID: 100 + len(f.published), Link: "https://logishift.example/p"}, nil
}

type fakePosts struct {
	titles []string
	err    error
	limit  int
}

func (f *fakePosts) ListPosts(_ context.Context, limit int, _ string) ([]cms.Post, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	posts := make([]cms.Post, len(f.titles))
	for i, t := range f.titles {
		posts[i] = cms.Post{ID: i + 1, Title: cms.Rendered{Rendered: t}}
	}
	return posts, nil
}

type fakeLedger struct {
	mu          sync.Mutex
	createErr   error
	created     []uuid.UUID
	completed   string
	artifacts   []string
	outcomes    []types.ItemOutcome
	titles      []string
	titlesSince time.Time
}

func (f *fakeLedger) CreateRun(_ context.Context, runID uuid.UUID, _ bool, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, runID)
	return nil
}

func (f *fakeLedger) CompleteRun(_ context.Context, _ uuid.UUID, _ *types.RunReport, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = status
	return nil
}

func (f *fakeLedger) SaveArtifact(_ context.Context, _ uuid.UUID, step string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artifacts = append(f.artifacts, step)
	return nil
}

func (f *fakeLedger) RecordOutcome(_ context.Context, _ uuid.UUID, outcome types.ItemOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
	return nil
}

// RecentTitles returns the seeded titles plus every outcome recorded as
// published, the way the database ledger does.
func (f *fakeLedger) RecentTitles(_ context.Context, since time.Time, _ int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.titlesSince = since
	titles := append([]string(nil), f.titles...)
	for _, o := range f.outcomes {
		if o.Status == types.StatusPublished {
			titles = append(titles, o.Title)
		}
	}
	return titles, nil
}
