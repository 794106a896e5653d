// Package linking suggests already published posts to link from a new article.
package linking

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/logishift/internal/cms"
	"github.com/jonathan/logishift/internal/llm"
	"github.com/jonathan/logishift/internal/prompts"
	"github.com/jonathan/logishift/internal/types"
)

// Candidate selection and filtering limits.
const (
	PopularDays       = 7
	PopularLimit      = 20
	RecentLimit       = 100
	MinRelevanceScore = 80
	MaxSuggestions    = 5
	maxContextRunes   = 500
	popularMarker     = "[POPULAR] "
)

// PostSource lists existing posts.
type PostSource interface {
	ListPosts(ctx context.Context, limit int, status string) ([]cms.Post, error)
	PopularPosts(ctx context.Context, days, limit int) ([]cms.Post, error)
}

// Suggester finds internal link targets for new articles.
type Suggester struct {
	posts  PostSource
	client llm.Client
	tier   llm.ModelTier
	logger zerolog.Logger
}

// NewSuggester creates a Suggester.
func NewSuggester(posts PostSource, client llm.Client, logger zerolog.Logger) *Suggester {
	return &Suggester{
		posts:  posts,
		client: client,
		tier:   llm.TierStandard,
		logger: logger,
	}
}

// FetchCandidates loads popular posts and recent published posts and merges
// them by id, popular first. A source that fails is logged and treated as
// empty; an error is returned only when both fail.
func (s *Suggester) FetchCandidates(ctx context.Context) ([]types.LinkCandidate, error) {
	var (
		popular, recent       []cms.Post
		popularErr, recentErr error
	)

	var g errgroup.Group
	g.Go(func() error {
		popular, popularErr = s.posts.PopularPosts(ctx, PopularDays, PopularLimit)
		return nil
	})
	g.Go(func() error {
		recent, recentErr = s.posts.ListPosts(ctx, RecentLimit, cms.StatusPublish)
		return nil
	})
	_ = g.Wait()

	if popularErr != nil && recentErr != nil {
		return nil, fmt.Errorf("failed to load link candidates: %w", popularErr)
	}
	if popularErr != nil {
		s.logger.Warn().Err(popularErr).Msg("popular posts unavailable")
	}
	if recentErr != nil {
		s.logger.Warn().Err(recentErr).Msg("recent posts unavailable")
	}

	seen := make(map[int]bool, len(popular)+len(recent))
	candidates := make([]types.LinkCandidate, 0, len(popular)+len(recent))
	for _, posts := range [][]cms.Post{popular, recent} {
		for _, p := range posts {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			candidates = append(candidates, toCandidate(p))
		}
	}

	s.logger.Info().
		Int("popular", len(popular)).
		Int("recent", len(recent)).
		Int("unique", len(candidates)).
		Msg("link candidates loaded")
	return candidates, nil
}

func toCandidate(p cms.Post) types.LinkCandidate {
	title := p.Title.Rendered
	excerpt := CleanHTML(p.Excerpt.Rendered)

	var summaryContext string
	if summary, ok := p.StructuredSummary(); ok {
		summaryContext = fmt.Sprintf("Title: %s\nSummary: %s\nTopics: %s\nEntities: %s",
			title, summary.Summary, strings.Join(summary.KeyTopics, ", "), strings.Join(summary.Entities, ", "))
	} else {
		summaryContext = fmt.Sprintf("Title: %s\nExcerpt: %s", title, excerpt)
	}
	if p.IsPopular() {
		summaryContext = popularMarker + summaryContext
	}

	return types.LinkCandidate{
		ID:             p.ID,
		Title:          title,
		URL:            p.Link,
		SummaryContext: summaryContext,
		Excerpt:        excerpt,
		IsPopular:      p.IsPopular(),
	}
}

// CleanHTML returns the text content of an HTML fragment.
func CleanHTML(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return strings.TrimSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// ScoreRelevance asks the model which candidates are highly relevant to the
// new article. It returns at most MaxSuggestions candidates scoring at least
// MinRelevanceScore, best first. Entries with unknown ids are dropped. Any
// failure yields an empty result.
func (s *Suggester) ScoreRelevance(ctx context.Context, topic, newContext string, candidates []types.LinkCandidate) []types.LinkCandidate {
	if len(candidates) == 0 {
		return []types.LinkCandidate{}
	}

	results, err := s.requestScores(ctx, topic, newContext, candidates)
	if err != nil {
		s.logger.Warn().Err(err).Str("topic", topic).Msg("relevance scoring failed, suggesting no links")
		return []types.LinkCandidate{}
	}

	byID := make(map[int]int, len(candidates))
	for i, c := range candidates {
		if _, dup := byID[c.ID]; !dup {
			byID[c.ID] = i
		}
	}

	picked := make(map[int]bool)
	relevant := make([]types.LinkCandidate, 0, len(results))
	for _, r := range results {
		if r.Score < MinRelevanceScore || picked[r.ID] {
			continue
		}
		idx, ok := byID[r.ID]
		if !ok {
			continue
		}
		picked[r.ID] = true
		c := candidates[idx]
		c.RelevanceScore = r.Score
		c.RelevanceReason = r.Reason
		relevant = append(relevant, c)
	}

	sort.SliceStable(relevant, func(i, j int) bool {
		return relevant[i].RelevanceScore > relevant[j].RelevanceScore
	})
	if len(relevant) > MaxSuggestions {
		relevant = relevant[:MaxSuggestions]
	}

	s.logger.Info().Str("topic", topic).Int("links", len(relevant)).Msg("relevant articles found")
	return relevant
}

func (s *Suggester) requestScores(ctx context.Context, topic, newContext string, candidates []types.LinkCandidate) ([]types.RelevanceResult, error) {
	var list strings.Builder
	for _, c := range candidates {
		fmt.Fprintf(&list, "- ID: %d | %s\n", c.ID, strings.ReplaceAll(c.SummaryContext, "\n", " | "))
	}

	prompt, err := prompts.Render("linking.json", "relevance", map[string]string{
		"Topic":      topic,
		"Context":    truncateContext(newContext),
		"Candidates": list.String(),
	})
	if err != nil {
		return nil, err
	}

	resp, err := s.client.GenerateJSON(ctx, prompt, s.tier)
	if err != nil {
		return nil, err
	}
	return parseRelevance(resp)
}

func parseRelevance(resp string) ([]types.RelevanceResult, error) {
	entries, err := llm.EntryList([]byte(llm.CleanJSONBlock(resp)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse relevance response: %w", err)
	}

	results := make([]types.RelevanceResult, 0, len(entries))
	for _, e := range entries {
		id, ok := llm.LooseInt(e["id"])
		if !ok {
			continue
		}
		score, _ := llm.LooseInt(e["score"])
		results = append(results, types.RelevanceResult{
			ID:     id,
			Title:  llm.LooseString(e["title"]),
			Score:  score,
			Reason: llm.LooseString(e["reason"]),
		})
	}
	return results, nil
}

func truncateContext(s string) string {
	r := []rune(s)
	if len(r) <= maxContextRunes {
		return s
	}
	return string(r[:maxContextRunes]) + "..."
}

// RenderSection formats suggestions as a markdown related-articles section.
func RenderSection(links []types.LinkCandidate) string {
	if len(links) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n\n## Related Articles\n\n")
	for _, l := range links {
		fmt.Fprintf(&sb, "- [%s](%s)\n", l.Title, l.URL)
	}
	return sb.String()
}
