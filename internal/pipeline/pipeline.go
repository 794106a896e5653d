// Package pipeline runs the LogiShift content pipeline end to end: collect,
// score, filter, then classify, deduplicate, generate and publish the best
// candidates.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/logishift/internal/cms"
	"github.com/jonathan/logishift/internal/collector"
	"github.com/jonathan/logishift/internal/fetch"
	"github.com/jonathan/logishift/internal/types"
)

// Collector gathers raw candidates from news feeds.
type Collector interface {
	Collect(ctx context.Context, sources []collector.Source, window collector.Window) []types.CandidateArticle
}

// Scorer scores every candidate, in order.
type Scorer interface {
	ScoreAll(ctx context.Context, articles []types.CandidateArticle) []types.ScoredArticle
}

// Classifier picks the article type for a candidate.
type Classifier interface {
	ClassifyType(ctx context.Context, title, summary, source string) types.ArticleType
}

// Extractor reads the full text of a source article.
type Extractor interface {
	ExtractArticle(ctx context.Context, url, source string) (*fetch.Article, error)
}

// Summarizer condenses source text into generation context.
type Summarizer interface {
	Summarize(ctx context.Context, content, title string) (*types.ArticleContext, error)
}

// DuplicateChecker decides whether a candidate repeats an existing story.
type DuplicateChecker interface {
	IsDuplicate(ctx context.Context, title, summary string, existing []string) bool
}

// Generator writes an article.
type Generator interface {
	Generate(ctx context.Context, job types.GenerationJob) (*types.GeneratedArticle, error)
}

// Publisher sends an article to the CMS, or only logs it on a dry run.
type Publisher interface {
	Publish(ctx context.Context, article *types.GeneratedArticle, dryRun bool) (*cms.PublishResult, error)
}

// PostLister lists existing CMS posts.
type PostLister interface {
	ListPosts(ctx context.Context, limit int, status string) ([]cms.Post, error)
}

// Ledger persists run history. It is optional.
type Ledger interface {
	CreateRun(ctx context.Context, runID uuid.UUID, dryRun bool, threshold int) error
	CompleteRun(ctx context.Context, runID uuid.UUID, report *types.RunReport, status string) error
	SaveArtifact(ctx context.Context, runID uuid.UUID, step string, content any) error
	RecordOutcome(ctx context.Context, runID uuid.UUID, outcome types.ItemOutcome) error
	// RecentTitles returns titles published since the given time. Dry-run
	// outcomes are not included.
	RecentTitles(ctx context.Context, since time.Time, limit int) ([]string, error)
}

// Deps are the collaborators of an Orchestrator. Ledger may be nil.
type Deps struct {
	Collector  Collector
	Scorer     Scorer
	Classifier Classifier
	Extractor  Extractor
	Summarizer Summarizer
	Dedup      DuplicateChecker
	Generator  Generator
	Publisher  Publisher
	Posts      PostLister
	Ledger     Ledger
}

// Options are the parameters of one run.
type Options struct {
	Sources []collector.Source
	Window  collector.Window

	Threshold  int
	Limit      int
	ScoreLimit int // 0 scores everything
	DryRun     bool

	// ExistingTitles is how many recent CMS posts seed duplicate detection.
	ExistingTitles int

	OnProgress ProgressCallback
}

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
	Content any    `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// Step names reported through ProgressEvent.
const (
	StepCollect  = "collect"
	StepScore    = "score"
	StepFilter   = "filter"
	StepExisting = "load_existing"
	StepClassify = "classify"
	StepExtract  = "extract"
	StepDedup    = "dedup"
	StepGenerate = "generate"
	StepPublish  = "publish"
	StepDone     = "done"
)
