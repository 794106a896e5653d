package cms

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jonathan/logishift/internal/types"
)

// PublishResult describes what Publish did.
type PublishResult struct {
	PostID int    `json:"post_id,omitempty"`
	Link   string `json:"link,omitempty"`
	DryRun bool   `json:"dry_run"`
}

// Publisher turns generated articles into CMS posts.
type Publisher struct {
	client Client
	status string
	logger zerolog.Logger
}

// NewPublisher creates a Publisher that creates posts with the given status.
func NewPublisher(client Client, status string, logger zerolog.Logger) *Publisher {
	if status == "" {
		status = StatusPublish
	}
	return &Publisher{client: client, status: status, logger: logger}
}

// Publish creates a post for article. With dryRun set nothing is sent to the
// CMS. Taxonomy terms that cannot be resolved are dropped with a warning.
func (p *Publisher) Publish(ctx context.Context, article *types.GeneratedArticle, dryRun bool) (*PublishResult, error) {
	if article == nil {
		return nil, fmt.Errorf("nothing to publish")
	}

	if dryRun {
		p.logger.Info().
			Str("title", article.Title).
			Str("type", string(article.Type)).
			Int("chars", len(article.Content)).
			Msg("dry run, skipping publish")
		return &PublishResult{DryRun: true}, nil
	}

	post := NewPost{
		Title:   article.Title,
		Content: article.Content,
		Status:  p.status,
	}
	if article.Context != nil {
		post.Excerpt = article.Context.Summary
		if meta, err := summaryMeta(article.Context); err == nil {
			post.Meta = map[string]string{SummaryMetaKey: meta}
		}
	}

	post.Categories = p.resolve(ctx, "categories", []string{article.Taxonomy.Category})
	var tags []string
	tags = append(tags, article.Taxonomy.IndustryTags...)
	tags = append(tags, article.Taxonomy.ThemeTags...)
	tags = append(tags, article.Taxonomy.RegionTags...)
	post.Tags = p.resolve(ctx, "tags", tags)

	created, err := p.client.CreatePost(ctx, post)
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Int("post_id", created.ID).
		Str("link", created.Link).
		Str("title", article.Title).
		Msg("article published")
	return &PublishResult{PostID: created.ID, Link: created.Link}, nil
}

func (p *Publisher) resolve(ctx context.Context, taxonomy string, slugs []string) []int {
	var nonEmpty []string
	for _, s := range slugs {
		if s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	if len(nonEmpty) == 0 {
		return nil
	}

	ids, err := p.client.ResolveTerms(ctx, taxonomy, nonEmpty)
	if err != nil {
		p.logger.Warn().Err(err).Str("taxonomy", taxonomy).Strs("slugs", nonEmpty).Msg("could not resolve terms")
		return nil
	}
	return ids
}

func summaryMeta(c *types.ArticleContext) (string, error) {
	data, err := json.Marshal(StructuredSummary{
		Summary:   c.Summary,
		KeyTopics: c.KeyFacts,
		Entities:  []string{},
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}
