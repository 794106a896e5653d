package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jonathan/logishift/internal/db"
	"github.com/jonathan/logishift/internal/scoring"
	"github.com/jonathan/logishift/internal/types"
)

// ledgerLookback is how far back generated titles are loaded from the ledger.
const ledgerLookback = 14 * 24 * time.Hour

// Orchestrator drives one pipeline run at a time.
type Orchestrator struct {
	deps   Deps
	logger zerolog.Logger
	now    func() time.Time
	newID  func() uuid.UUID
}

// New creates an Orchestrator. Every dependency except Ledger is required.
func New(deps Deps, logger zerolog.Logger) (*Orchestrator, error) {
	missing := []string{}
	for name, dep := range map[string]any{
		"collector":  deps.Collector,
		"scorer":     deps.Scorer,
		"classifier": deps.Classifier,
		"extractor":  deps.Extractor,
		"summarizer": deps.Summarizer,
		"dedup":      deps.Dedup,
		"generator":  deps.Generator,
		"publisher":  deps.Publisher,
		"posts":      deps.Posts,
	} {
		if dep == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("pipeline dependencies missing: %v", missing)
	}

	return &Orchestrator{
		deps:   deps,
		logger: logger,
		now:    time.Now,
		newID:  uuid.New,
	}, nil
}

// run carries the state of one Run call.
type run struct {
	o        *Orchestrator
	opts     Options
	id       uuid.UUID
	ledger   Ledger
	logger   zerolog.Logger
	report   *types.RunReport
	existing []string
	// generatedTitles grows as articles are written and feeds later
	// duplicate checks.
	generatedTitles []string
}

// Run executes the pipeline. It is best effort: failures of individual
// candidates are logged and recorded in the report, and a run that finds
// nothing to write still succeeds. Only context cancellation stops it early,
// in which case the partial report is returned with the error.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*types.RunReport, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	id := o.newID()
	r := &run{
		o:      o,
		opts:   opts,
		id:     id,
		ledger: o.deps.Ledger,
		logger: o.logger.With().Str("run_id", id.String()).Logger(),
		report: &types.RunReport{
			RunID:     id.String(),
			StartedAt: o.now(),
			DryRun:    opts.DryRun,
			Threshold: opts.Threshold,
			Outcomes:  []types.ItemOutcome{},
		},
	}

	r.logger.Info().
		Int("threshold", opts.Threshold).
		Int("limit", opts.Limit).
		Int("score_limit", opts.ScoreLimit).
		Bool("dry_run", opts.DryRun).
		Dur("window", opts.Window.Duration()).
		Msg("pipeline run started")

	if r.ledger != nil {
		if err := r.ledger.CreateRun(ctx, id, opts.DryRun, opts.Threshold); err != nil {
			r.logger.Warn().Err(err).Msg("run ledger unavailable, continuing without persistence")
			r.ledger = nil
		}
	}

	err := r.execute(ctx)
	r.report.FinishedAt = o.now()

	status := db.RunStatusCompleted
	if err != nil {
		status = db.RunStatusFailed
	}
	r.finish(ctx, status)

	r.logger.Info().
		Int("collected", r.report.Collected).
		Int("scored", r.report.Scored).
		Int("above_threshold", r.report.AboveThreshold).
		Int("generated", r.report.Generated()).
		Int("duplicates", r.report.Count(types.StatusDuplicate)).
		Int("failed", r.report.Count(types.StatusFailed)).
		Msg("pipeline run finished")
	r.progress(StepDone, "run finished", r.report)

	return r.report, err
}

func (r *run) execute(ctx context.Context) error {
	deps := r.o.deps

	// COLLECT
	collected := deps.Collector.Collect(ctx, r.opts.Sources, r.opts.Window)
	r.report.Collected = len(collected)
	r.logger.Info().Int("articles", len(collected)).Int("sources", len(r.opts.Sources)).Msg("collection complete")
	r.progress(StepCollect, fmt.Sprintf("collected %d articles", len(collected)), nil)
	r.saveArtifact(ctx, db.StepCollected, collected)
	if err := ctx.Err(); err != nil {
		return err
	}

	toScore := collected
	if r.opts.ScoreLimit > 0 && len(toScore) > r.opts.ScoreLimit {
		r.logger.Info().Int("score_limit", r.opts.ScoreLimit).Msg("limiting scoring to the first articles")
		toScore = toScore[:r.opts.ScoreLimit]
	}

	// SCORE_BATCH
	scored := deps.Scorer.ScoreAll(ctx, toScore)
	r.report.Scored = len(scored)
	r.progress(StepScore, fmt.Sprintf("scored %d articles", len(scored)), nil)
	if err := ctx.Err(); err != nil {
		return err
	}

	// FILTER, SORT
	report := scoring.BuildReport(scored, r.opts.Threshold)
	r.report.AboveThreshold = report.HighScoreCount
	r.logger.Info().
		Int("above_threshold", report.HighScoreCount).
		Int("threshold", r.opts.Threshold).
		Msg("filtered scored articles")
	r.progress(StepFilter, fmt.Sprintf("%d articles above threshold %d", report.HighScoreCount, r.opts.Threshold), report)
	r.saveArtifact(ctx, db.StepScoreReport, report)

	if len(report.HighScoreArticles) == 0 || r.opts.Limit == 0 {
		r.logger.Info().Msg("nothing to generate")
		return nil
	}

	r.loadExisting(ctx)

	generated := 0
	for i := range report.HighScoreArticles {
		if generated >= r.opts.Limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.process(ctx, report.HighScoreArticles[i]) {
			generated++
		}
	}
	return ctx.Err()
}

// loadExisting snapshots recent CMS titles, plus ledger titles when
// available, for duplicate detection.
func (r *run) loadExisting(ctx context.Context) {
	limit := r.opts.ExistingTitles
	if limit <= 0 {
		r.logger.Info().Msg("existing title snapshot disabled")
		return
	}

	posts, err := r.o.deps.Posts.ListPosts(ctx, limit, "")
	if err != nil {
		r.logger.Warn().Err(err).Msg("could not fetch existing posts, deduplication will only check this run")
	}
	for _, p := range posts {
		if title := p.Title.Rendered; title != "" {
			r.existing = append(r.existing, title)
		}
	}

	if ledger := r.ledger; ledger != nil {
		titles, err := ledger.RecentTitles(ctx, r.o.now().Add(-ledgerLookback), limit)
		if err != nil {
			r.logger.Warn().Err(err).Msg("could not load generated titles from ledger")
		}
		r.existing = append(r.existing, titles...)
	}

	r.logger.Info().Int("titles", len(r.existing)).Msg("loaded existing titles")
	r.progress(StepExisting, fmt.Sprintf("loaded %d existing titles", len(r.existing)), nil)
}

// process runs one candidate through classification, optional context
// extraction and duplicate check, generation and publishing. It reports
// whether an article was generated.
func (r *run) process(ctx context.Context, article types.ScoredArticle) bool {
	deps := r.o.deps
	logger := r.logger.With().Str("title", article.Title).Int("score", article.Score).Logger()
	outcome := types.ItemOutcome{Title: article.Title, URL: article.URL, Score: article.Score}
	defer func() { r.record(ctx, outcome) }()

	logger.Info().Str("reasoning", article.Reasoning).Msg("processing candidate")

	// CLASSIFY_TYPE
	articleType := deps.Classifier.ClassifyType(ctx, article.Title, article.Summary, article.Source)
	outcome.Type = articleType
	logger = logger.With().Str("type", string(articleType)).Logger()
	logger.Info().Msg("classified")
	r.progress(StepClassify, fmt.Sprintf("%s: %s", articleType, article.Title), nil)

	job := types.GenerationJob{
		Keyword: article.Title,
		Type:    articleType,
		Source:  &article,
	}

	if articleType.IsContextual() {
		// EXTRACT_CONTEXT, SUMMARIZE
		job.Context = r.buildContext(ctx, logger, article)

		// DEDUP_CHECK
		summary := article.Summary
		if job.Context != nil {
			summary = job.Context.Summary
		}
		if deps.Dedup.IsDuplicate(ctx, article.Title, summary, r.dedupAgainst()) {
			logger.Info().Msg("skipping duplicate")
			r.progress(StepDedup, "duplicate skipped: "+article.Title, nil)
			outcome.Status = types.StatusDuplicate
			outcome.Reason = "covers the same event as an existing or just generated article"
			return false
		}
		logger.Info().Msg("duplicate check passed")
	} else {
		logger.Info().Msg("keyword based generation")
	}

	// GENERATE
	generated, err := deps.Generator.Generate(ctx, job)
	if err != nil {
		logger.Error().Err(err).Msg("generation failed")
		outcome.Status = types.StatusFailed
		outcome.Reason = err.Error()
		return false
	}
	outcome.GeneratedTitle = generated.Title
	r.generatedTitles = append(r.generatedTitles, article.Title)
	r.progress(StepGenerate, "generated: "+generated.Title, nil)

	// PUBLISH or dry run
	result, err := deps.Publisher.Publish(ctx, generated, r.opts.DryRun)
	switch {
	case err != nil:
		logger.Error().Err(err).Msg("publish failed")
		outcome.Status = types.StatusFailed
		outcome.Reason = "publish failed: " + err.Error()
	case result.DryRun:
		outcome.Status = types.StatusDryRun
	default:
		outcome.Status = types.StatusPublished
		outcome.PostID = result.PostID
		outcome.Link = result.Link
	}
	r.progress(StepPublish, fmt.Sprintf("%s: %s", outcome.Status, generated.Title), nil)
	return true
}

// buildContext extracts and summarizes the source article. Any failure
// falls back to keyword generation and returns nil.
func (r *run) buildContext(ctx context.Context, logger zerolog.Logger, article types.ScoredArticle) *types.ArticleContext {
	deps := r.o.deps

	page, err := deps.Extractor.ExtractArticle(ctx, article.URL, article.Source)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to extract content, falling back to keyword generation")
		return nil
	}
	r.progress(StepExtract, fmt.Sprintf("extracted %d chars", len(page.Content)), nil)

	summary, err := deps.Summarizer.Summarize(ctx, page.Content, article.Title)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to summarize content, falling back to keyword generation")
		return nil
	}
	logger.Info().
		Int("summary_chars", len([]rune(summary.Summary))).
		Int("key_facts", len(summary.KeyFacts)).
		Msg("context created")
	return summary
}

func (r *run) dedupAgainst() []string {
	all := make([]string, 0, len(r.existing)+len(r.generatedTitles))
	all = append(all, r.existing...)
	return append(all, r.generatedTitles...)
}

func (r *run) record(ctx context.Context, outcome types.ItemOutcome) {
	r.report.Outcomes = append(r.report.Outcomes, outcome)
	if ledger := r.ledger; ledger != nil {
		if err := ledger.RecordOutcome(ctx, r.id, outcome); err != nil {
			r.logger.Warn().Err(err).Msg("failed to record outcome")
		}
	}
}

func (r *run) saveArtifact(ctx context.Context, step string, content any) {
	if ledger := r.ledger; ledger != nil {
		if err := ledger.SaveArtifact(ctx, r.id, step, content); err != nil {
			r.logger.Warn().Err(err).Str("step", step).Msg("failed to save artifact")
		}
	}
}

func (r *run) finish(ctx context.Context, status string) {
	ledger := r.ledger
	if ledger == nil {
		return
	}
	// The run context may already be cancelled; the ledger still gets the result.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	r.saveArtifact(ctx, db.StepRunReport, r.report)
	if err := ledger.CompleteRun(ctx, r.id, r.report, status); err != nil {
		r.logger.Warn().Err(err).Msg("failed to complete run in ledger")
	}
}

func (r *run) progress(step, message string, content any) {
	if r.opts.OnProgress != nil {
		r.opts.OnProgress(ProgressEvent{
			Step:    step,
			Message: message,
			RunID:   r.report.RunID,
			Content: content,
		})
	}
}

// ErrNoSources is returned by Validate when a run has nothing to collect from.
var ErrNoSources = errors.New("no feed sources configured")

// Validate checks run options before any network call.
func (opts Options) Validate() error {
	if len(opts.Sources) == 0 {
		return ErrNoSources
	}
	if opts.Threshold < 0 || opts.Threshold > 100 {
		return fmt.Errorf("threshold must be between 0 and 100, got %d", opts.Threshold)
	}
	if opts.Limit < 0 || opts.ScoreLimit < 0 {
		return fmt.Errorf("limits must be non-negative")
	}
	return nil
}
