// Package classify assigns article formats and CMS taxonomy to candidates.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jonathan/logishift/internal/llm"
	"github.com/jonathan/logishift/internal/prompts"
	"github.com/jonathan/logishift/internal/types"
)

// GlobalSources are feeds whose articles are always treated as global news
// for the English-language site.
var GlobalSources = map[string]bool{
	"lnews":             true,
	"logistics_today":   true,
	"logi_biz":          true,
	"36kr_japan":        true,
	"pandaily":          true,
	"supply_chain_asia": true,
}

// Classifier decides the article format and taxonomy for a candidate.
type Classifier struct {
	client llm.Client
	logger zerolog.Logger
}

// New creates a Classifier.
func New(client llm.Client, logger zerolog.Logger) *Classifier {
	return &Classifier{client: client, logger: logger}
}

// ClassifyType returns the format to generate the article in. Articles from
// GlobalSources are global without a model call. Otherwise the first known
// type named in the model's answer wins; news is the fallback.
func (c *Classifier) ClassifyType(ctx context.Context, title, summary, source string) types.ArticleType {
	if GlobalSources[source] {
		return types.ArticleTypeGlobal
	}

	prompt, err := prompts.Render("classify.json", "type", map[string]string{
		"Title":   title,
		"Summary": summary,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("type prompt unavailable")
		return types.ArticleTypeNews
	}

	resp, err := c.client.GenerateContent(ctx, prompt, llm.TierLite)
	if err != nil {
		c.logger.Warn().Err(err).Str("title", title).Msg("type classification failed, using news")
		return types.ArticleTypeNews
	}

	found := firstType(resp)
	c.logger.Debug().Str("type", string(found)).Str("raw", strings.TrimSpace(resp)).Msg("classification result")
	return found
}

// firstType scans types in precedence order and returns the first one that
// appears anywhere in the answer.
func firstType(resp string) types.ArticleType {
	lower := strings.ToLower(resp)
	for _, t := range types.ArticleTypes {
		if strings.Contains(lower, string(t)) {
			return t
		}
	}
	return types.ArticleTypeNews
}

// ClassifyTaxonomy picks the CMS category and tags. Failures return the
// default taxonomy.
func (c *Classifier) ClassifyTaxonomy(ctx context.Context, title, summary string) types.Taxonomy {
	tax, err := c.classifyTaxonomy(ctx, title, summary)
	if err != nil {
		c.logger.Warn().Err(err).Str("title", title).Msg("taxonomy classification failed, using default")
		return types.DefaultTaxonomy()
	}
	return *tax
}

func (c *Classifier) classifyTaxonomy(ctx context.Context, title, summary string) (*types.Taxonomy, error) {
	prompt, err := prompts.Render("classify.json", "taxonomy", map[string]string{
		"Title":   title,
		"Summary": summary,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.client.GenerateJSON(ctx, prompt, llm.TierLite)
	if err != nil {
		return nil, err
	}

	var tax types.Taxonomy
	if err := json.Unmarshal([]byte(llm.CleanJSONBlock(resp)), &tax); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy: %w", err)
	}
	if strings.TrimSpace(tax.Category) == "" {
		tax.Category = types.DefaultCategory
	}
	tax.IndustryTags = nonNil(tax.IndustryTags)
	tax.ThemeTags = nonNil(tax.ThemeTags)
	tax.RegionTags = nonNil(tax.RegionTags)
	return &tax, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
