// Package generation writes long-form markdown articles from generation jobs.
package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonathan/logishift/internal/linking"
	"github.com/jonathan/logishift/internal/llm"
	"github.com/jonathan/logishift/internal/prompts"
	"github.com/jonathan/logishift/internal/types"
)

// LinkSuggester finds related published posts for a new article.
type LinkSuggester interface {
	FetchCandidates(ctx context.Context) ([]types.LinkCandidate, error)
	ScoreRelevance(ctx context.Context, topic, newContext string, candidates []types.LinkCandidate) []types.LinkCandidate
}

// Taxonomer assigns CMS taxonomy.
type Taxonomer interface {
	ClassifyTaxonomy(ctx context.Context, title, summary string) types.Taxonomy
}

// Generator turns jobs into articles.
type Generator struct {
	client    llm.Client
	links     LinkSuggester
	taxonomer Taxonomer
	logger    zerolog.Logger
	now       func() time.Time

	candidates       []types.LinkCandidate
	candidatesLoaded bool
}

// Option configures a Generator.
type Option func(*Generator)

// WithLinks enables the related-articles section.
func WithLinks(links LinkSuggester) Option {
	return func(g *Generator) { g.links = links }
}

// WithTaxonomer enables taxonomy classification of generated articles.
func WithTaxonomer(t Taxonomer) Option {
	return func(g *Generator) { g.taxonomer = t }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Generator) { g.logger = logger }
}

// New creates a Generator.
func New(client llm.Client, opts ...Option) *Generator {
	g := &Generator{
		client: client,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate writes the article for job. Contextual jobs carry the source
// summary into the prompt; others are written from the keyword alone.
func (g *Generator) Generate(ctx context.Context, job types.GenerationJob) (*types.GeneratedArticle, error) {
	prompt, err := BuildPrompt(job)
	if err != nil {
		return nil, err
	}

	text, err := g.client.GenerateContent(ctx, prompt, llm.TierAdvanced)
	if err != nil {
		return nil, fmt.Errorf("article generation failed: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("article generation returned no content")
	}

	title, body := SplitTitle(text)
	if title == "" {
		title = job.Keyword
	}

	article := &types.GeneratedArticle{
		Title:       title,
		Content:     body,
		Type:        job.Type,
		Keyword:     job.Keyword,
		Context:     job.Context,
		Taxonomy:    types.DefaultTaxonomy(),
		GeneratedAt: g.now(),
	}
	if job.Source != nil {
		article.SourceURL = job.Source.URL
	}

	if g.taxonomer != nil {
		article.Taxonomy = g.taxonomer.ClassifyTaxonomy(ctx, title, jobSummary(job))
	}

	if g.links != nil {
		article.Links = g.suggestLinks(ctx, job.Keyword, body)
		article.Content += linking.RenderSection(article.Links)
	}

	g.logger.Info().
		Str("title", title).
		Str("type", string(job.Type)).
		Int("links", len(article.Links)).
		Msg("article generated")
	return article, nil
}

func (g *Generator) suggestLinks(ctx context.Context, keyword, body string) []types.LinkCandidate {
	if !g.candidatesLoaded {
		candidates, err := g.links.FetchCandidates(ctx)
		if err != nil {
			g.logger.Warn().Err(err).Msg("internal link candidates unavailable")
		}
		g.candidates = candidates
		g.candidatesLoaded = true
	}
	return g.links.ScoreRelevance(ctx, keyword, body, g.candidates)
}

// BuildPrompt renders the type-specific prompt for job.
func BuildPrompt(job types.GenerationJob) (string, error) {
	articleType := job.Type
	if _, ok := types.ParseArticleType(string(articleType)); !ok {
		articleType = types.ArticleTypeKnow
	}

	contextSection := ""
	if job.Context != nil {
		section, err := prompts.Render("generation.json", "context-section", map[string]string{
			"Summary":  job.Context.Summary,
			"KeyFacts": strings.Join(job.Context.KeyFacts, ", "),
		})
		if err != nil {
			return "", err
		}
		contextSection = section
	}

	body, err := prompts.Render("generation.json", string(articleType), map[string]string{
		"Context": contextSection,
		"Keyword": job.Keyword,
	})
	if err != nil {
		return "", err
	}

	format, err := prompts.Get("generation.json", "output-format")
	if err != nil {
		return "", err
	}
	return body + format, nil
}

// SplitTitle separates a leading "# Title" line from the body. Text before
// the heading is dropped. Without a heading the whole text is the body.
func SplitTitle(text string) (string, string) {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			title := strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
			body := strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
			return title, body
		}
		if strings.HasPrefix(trimmed, "#") {
			break
		}
	}
	return "", strings.TrimSpace(text)
}

func jobSummary(job types.GenerationJob) string {
	if job.Context != nil && job.Context.Summary != "" {
		return job.Context.Summary
	}
	if job.Source != nil {
		return job.Source.Summary
	}
	return ""
}
