package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/logishift/internal/collector"
	"github.com/jonathan/logishift/internal/db"
	"github.com/jonathan/logishift/internal/dedup"
	"github.com/jonathan/logishift/internal/llm"
	"github.com/jonathan/logishift/internal/scoring"
	"github.com/jonathan/logishift/internal/types"
)

var testSources = []collector.Source{{Name: "freightwaves", URL: "https://example.com/feed"}}

type harness struct {
	collector  *fakeCollector
	scorer     *fakeScorer
	classifier *fakeClassifier
	extractor  *fakeExtractor
	summarizer *fakeSummarizer
	dedup      *fakeDedup
	generator  *fakeGenerator
	publisher  *fakePublisher
	posts      *fakePosts
}

func newHarness(titles ...string) *harness {
	h := &harness{
		collector:  &fakeCollector{},
		scorer:     &fakeScorer{scores: map[string]int{}},
		classifier: &fakeClassifier{types: map[string]types.ArticleType{}},
		extractor:  &fakeExtractor{},
		summarizer: &fakeSummarizer{},
		dedup:      &fakeDedup{duplicates: map[string]bool{}},
		generator:  &fakeGenerator{fail: map[string]bool{}},
		publisher:  &fakePublisher{},
		posts:      &fakePosts{titles: []string{"Existing post"}},
	}
	for i, title := range titles {
		h.collector.articles = append(h.collector.articles, types.CandidateArticle{
			Title:   title,
			URL:     "https://example.com/" + strconv.Itoa(i),
			Source:  "freightwaves",
			Summary: "feed summary " + title,
		})
		h.scorer.scores[title] = 90 - i
	}
	return h
}

func (h *harness) deps() Deps {
	return Deps{
		Collector:  h.collector,
		Scorer:     h.scorer,
		Classifier: h.classifier,
		Extractor:  h.extractor,
		Summarizer: h.summarizer,
		Dedup:      h.dedup,
		Generator:  h.generator,
		Publisher:  h.publisher,
		Posts:      h.posts,
	}
}

func (h *harness) orchestrator(t *testing.T, deps Deps) *Orchestrator {
	t.Helper()
	o, err := New(deps, zerolog.Nop())
	require.NoError(t, err)
	o.newID = func() uuid.UUID { return uuid.MustParse("11111111-2222-3333-4444-555555555555") }
	return o
}

func defaultOptions() Options {
	return Options{
		Sources:        testSources,
		Window:         collector.Window{Hours: 3},
		Threshold:      70,
		Limit:          2,
		ExistingTitles: 30,
	}
}

func generatedKeywords(g *fakeGenerator) []string {
	out := make([]string, len(g.jobs))
	for i, j := range g.jobs {
		out[i] = j.Keyword
	}
	return out
}

var articleIDPattern = regexp.MustCompile(`Article ID: (\d+)`)

// Twelve candidates, batches of 10 and 2: seven of the first batch and one
// of the second reach 70, and the limit stops generation after two.
func TestRun_EndToEndScoringAndLimit(t *testing.T) {
	h := newHarness()
	scores := map[int]int{10: 95, 11: 20}
	for i := 0; i < 10; i++ {
		h.collector.articles = append(h.collector.articles, types.CandidateArticle{
			Title: fmt.Sprintf("Story %02d", i), URL: fmt.Sprintf("https://example.com/%d", i), Source: "freightwaves",
		})
		if i < 7 {
			scores[i] = 70 + i*3
		} else {
			scores[i] = 40
		}
	}
	for i := 10; i < 12; i++ {
		h.collector.articles = append(h.collector.articles, types.CandidateArticle{
			Title: fmt.Sprintf("Story %02d", i), URL: fmt.Sprintf("https://example.com/%d", i), Source: "freightwaves",
		})
	}

	batchCalls := 0
	client := &MockLLMClient{
		GenerateJSONFunc: func(_ context.Context, prompt string, _ llm.ModelTier) (string, error) {
			batchCalls++
			var results []map[string]any
			for _, m := range articleIDPattern.FindAllStringSubmatch(prompt, -1) {
				id, _ := strconv.Atoi(m[1])
				results = append(results, map[string]any{"id": id, "score": scores[id], "reasoning": "r", "relevance": "high"})
			}
			data, err := json.Marshal(results)
			return string(data), err
		},
	}

	deps := h.deps()
	deps.Scorer = scoring.New(client)

	var filtered *types.ScoreReport
	opts := defaultOptions()
	opts.OnProgress = func(e ProgressEvent) {
		if e.Step == StepFilter {
			r := e.Content.(types.ScoreReport)
			filtered = &r
		}
	}

	report, err := h.orchestrator(t, deps).Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 2, batchCalls)
	assert.Equal(t, 12, report.Collected)
	assert.Equal(t, 12, report.Scored)
	assert.Equal(t, 8, report.AboveThreshold)

	require.NotNil(t, filtered)
	require.Len(t, filtered.HighScoreArticles, 8)
	for i := 1; i < len(filtered.HighScoreArticles); i++ {
		assert.GreaterOrEqual(t, filtered.HighScoreArticles[i-1].Score, filtered.HighScoreArticles[i].Score)
	}

	assert.Equal(t, []string{"Story 10", "Story 06"}, generatedKeywords(h.generator))
	assert.Equal(t, 2, report.Generated())
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", report.RunID)
}

func TestRun_DuplicateDoesNotCountTowardLimit(t *testing.T) {
	h := newHarness("A", "B", "C", "D")
	h.dedup.duplicates["A"] = true

	report, err := h.orchestrator(t, h.deps()).Run(context.Background(), defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "C"}, generatedKeywords(h.generator))
	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, types.StatusDuplicate, report.Outcomes[0].Status)
	assert.Equal(t, types.StatusPublished, report.Outcomes[1].Status)
	assert.Equal(t, types.StatusPublished, report.Outcomes[2].Status)
	assert.Equal(t, 101, report.Outcomes[1].PostID)
}

func TestRun_DedupContextAccumulates(t *testing.T) {
	h := newHarness("A", "B", "C")
	opts := defaultOptions()
	opts.Limit = 3

	_, err := h.orchestrator(t, h.deps()).Run(context.Background(), opts)
	require.NoError(t, err)

	require.Len(t, h.dedup.calls, 3)
	assert.Equal(t, []string{"Existing post"}, h.dedup.calls[0].existing)
	assert.Equal(t, []string{"Existing post", "A"}, h.dedup.calls[1].existing)
	assert.Equal(t, []string{"Existing post", "A", "B"}, h.dedup.calls[2].existing)
	assert.Equal(t, "summary of A", h.dedup.calls[0].summary)
	assert.Equal(t, 30, h.posts.limit)
}

func TestRun_NonContextualTypesSkipExtractionAndDedup(t *testing.T) {
	h := newHarness("How WMS works", "Port news")
	h.classifier.types["How WMS works"] = types.ArticleTypeKnow

	_, err := h.orchestrator(t, h.deps()).Run(context.Background(), defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, h.extractor.calls)
	require.Len(t, h.dedup.calls, 1)
	assert.Equal(t, "Port news", h.dedup.calls[0].title)

	require.Len(t, h.generator.jobs, 2)
	assert.Equal(t, types.ArticleTypeKnow, h.generator.jobs[0].Type)
	assert.Nil(t, h.generator.jobs[0].Context)
	assert.Equal(t, types.ArticleTypeNews, h.generator.jobs[1].Type)
	require.NotNil(t, h.generator.jobs[1].Context)
	assert.Equal(t, "summary of Port news", h.generator.jobs[1].Context.Summary)
}

func TestRun_ExtractionFailureFallsBackToKeyword(t *testing.T) {
	h := newHarness("A")
	h.extractor.err = errors.New("403")

	report, err := h.orchestrator(t, h.deps()).Run(context.Background(), defaultOptions())
	require.NoError(t, err)

	require.Len(t, h.generator.jobs, 1)
	assert.Nil(t, h.generator.jobs[0].Context)
	require.Len(t, h.dedup.calls, 1)
	assert.Equal(t, "feed summary A", h.dedup.calls[0].summary)
	assert.Equal(t, 1, report.Generated())
}

func TestRun_SummarizeFailureFallsBackToKeyword(t *testing.T) {
	h := newHarness("A")
	h.summarizer.err = errors.New("bad json")

	_, err := h.orchestrator(t, h.deps()).Run(context.Background(), defaultOptions())
	require.NoError(t, err)

	require.Len(t, h.generator.jobs, 1)
	assert.Nil(t, h.generator.jobs[0].Context)
}

func TestRun_GenerationFailureDoesNotCount(t *testing.T) {
	h := newHarness("A", "B", "C")
	h.generator.fail["A"] = true

	report, err := h.orchestrator(t, h.deps()).Run(context.Background(), defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, generatedKeywords(h.generator))
	assert.Equal(t, types.StatusFailed, report.Outcomes[0].Status)
	assert.Contains(t, report.Outcomes[0].Reason, "model refused")
	assert.Equal(t, 2, report.Generated())
}

func TestRun_PublishFailureCountsAsGenerated(t *testing.T) {
	h := newHarness("A", "B", "C")
	h.publisher.err = errors.New("401 unauthorized")

	report, err := h.orchestrator(t, h.deps()).Run(context.Background(), defaultOptions())
	require.NoError(t, err)

	assert.Len(t, h.generator.jobs, 2)
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, types.StatusFailed, report.Outcomes[0].Status)
	assert.Contains(t, report.Outcomes[0].Reason, "publish failed")
	assert.Equal(t, "Article: A", report.Outcomes[0].GeneratedTitle)
}

func TestRun_DryRun(t *testing.T) {
	h := newHarness("A")
	opts := defaultOptions()
	opts.DryRun = true

	report, err := h.orchestrator(t, h.deps()).Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, []bool{true}, h.publisher.dryRuns)
	assert.Equal(t, types.StatusDryRun, report.Outcomes[0].Status)
	assert.True(t, report.DryRun)
}

func TestRun_ThresholdAndScoreLimit(t *testing.T) {
	h := newHarness("A", "B", "C", "D", "E")
	h.scorer.scores = map[string]int{"A": 50, "B": 80, "C": 99, "D": 100, "E": 100}
	opts := defaultOptions()
	opts.ScoreLimit = 3
	opts.Limit = 5

	report, err := h.orchestrator(t, h.deps()).Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 3, h.scorer.inputs)
	assert.Equal(t, 5, report.Collected)
	assert.Equal(t, 3, report.Scored)
	assert.Equal(t, 2, report.AboveThreshold)
	assert.Equal(t, []string{"C", "B"}, generatedKeywords(h.generator))
}

func TestRun_NothingCollected(t *testing.T) {
	h := newHarness()

	report, err := h.orchestrator(t, h.deps()).Run(context.Background(), defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Collected)
	assert.Empty(t, report.Outcomes)
	assert.Empty(t, h.generator.jobs)
	assert.Equal(t, 0, h.posts.limit, "existing posts are not fetched when nothing qualifies")
}

func TestRun_ExistingPostsUnavailable(t *testing.T) {
	h := newHarness("A", "B")
	h.posts.err = errors.New("wordpress down")

	report, err := h.orchestrator(t, h.deps()).Run(context.Background(), defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Generated())
	assert.Empty(t, h.dedup.calls[0].existing)
}

func TestRun_ContextCancelled(t *testing.T) {
	h := newHarness("A", "B")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := h.orchestrator(t, h.deps()).Run(ctx, defaultOptions())
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Empty(t, h.generator.jobs)
}

func TestRun_Ledger(t *testing.T) {
	h := newHarness("A", "B")
	h.dedup.duplicates["A"] = true
	ledger := &fakeLedger{titles: []string{"Generated last week"}}
	deps := h.deps()
	deps.Ledger = ledger

	o := h.orchestrator(t, deps)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return now }

	_, err := o.Run(context.Background(), defaultOptions())
	require.NoError(t, err)

	assert.Len(t, ledger.created, 1)
	assert.Equal(t, db.RunStatusCompleted, ledger.completed)
	assert.Equal(t, []string{db.StepCollected, db.StepScoreReport, db.StepRunReport}, ledger.artifacts)
	require.Len(t, ledger.outcomes, 2)
	assert.Equal(t, types.StatusDuplicate, ledger.outcomes[0].Status)
	assert.Equal(t, now.Add(-ledgerLookback), ledger.titlesSince)
	assert.Equal(t, []string{"Existing post", "Generated last week"}, h.dedup.calls[0].existing)
}

func TestRun_LedgerUnavailableIsIgnored(t *testing.T) {
	h := newHarness("A")
	ledger := &fakeLedger{createErr: errors.New("connection refused")}
	deps := h.deps()
	deps.Ledger = ledger

	report, err := h.orchestrator(t, deps).Run(context.Background(), defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Generated())
	assert.Empty(t, ledger.outcomes)
	assert.Empty(t, ledger.completed)
}

func TestRun_ProgressEvents(t *testing.T) {
	h := newHarness("A")
	var steps []string
	opts := defaultOptions()
	opts.OnProgress = func(e ProgressEvent) {
		steps = append(steps, e.Step)
		assert.Equal(t, "11111111-2222-3333-4444-555555555555", e.RunID)
	}

	_, err := h.orchestrator(t, h.deps()).Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, []string{
		StepCollect, StepScore, StepFilter, StepExisting,
		StepClassify, StepExtract, StepGenerate, StepPublish, StepDone,
	}, steps)
}

func TestNew_MissingDependencies(t *testing.T) {
	_, err := New(Deps{}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collector")
	assert.Contains(t, err.Error(), "publisher")
}

func TestOptions_Validate(t *testing.T) {
	assert.NoError(t, defaultOptions().Validate())

	opts := defaultOptions()
	opts.Sources = nil
	assert.ErrorIs(t, opts.Validate(), ErrNoSources)

	opts = defaultOptions()
	opts.Threshold = 120
	assert.Error(t, opts.Validate())

	opts = defaultOptions()
	opts.Limit = -1
	assert.Error(t, opts.Validate())
}

func TestRun_DryRunHistoryDoesNotBlockPublishing(t *testing.T) {
	ledger := &fakeLedger{}
	modelCalls := 0
	checker := dedup.New(&MockLLMClient{
		GenerateJSONFunc: func(_ context.Context, _ string, _ llm.ModelTier) (string, error) {
			modelCalls++
			return `{"is_duplicate": false, "reason": "different event"}`, nil
		},
	})

	runOnce := func(dryRun bool) (*harness, *types.RunReport) {
		h := newHarness("Maersk opens hub")
		deps := h.deps()
		deps.Dedup = checker
		deps.Ledger = ledger
		opts := defaultOptions()
		opts.DryRun = dryRun
		report, err := h.orchestrator(t, deps).Run(context.Background(), opts)
		require.NoError(t, err)
		return h, report
	}

	_, report := runOnce(true)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, types.StatusDryRun, report.Outcomes[0].Status)

	h, report := runOnce(false)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, types.StatusPublished, report.Outcomes[0].Status)
	assert.Equal(t, []string{"Maersk opens hub"}, generatedKeywords(h.generator))
	assert.Equal(t, 2, modelCalls, "both runs reach the model instead of the identical-title shortcut")

	// once published, the story is an existing title for the next run
	h, report = runOnce(false)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, types.StatusDuplicate, report.Outcomes[0].Status)
	assert.Empty(t, h.generator.jobs)
	assert.Equal(t, 2, modelCalls)
}
