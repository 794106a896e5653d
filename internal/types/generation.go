//nolint:revive // types is a standard Go package name pattern
package types

import (
	"strings"
	"time"
)

// ArticleType is the editorial format an article is generated in.
type ArticleType string

const (
	ArticleTypeKnow   ArticleType = "know"
	ArticleTypeBuy    ArticleType = "buy"
	ArticleTypeDo     ArticleType = "do"
	ArticleTypeNews   ArticleType = "news"
	ArticleTypeGlobal ArticleType = "global"
)

// ArticleTypes lists every format in classifier precedence order.
var ArticleTypes = []ArticleType{
	ArticleTypeKnow,
	ArticleTypeBuy,
	ArticleTypeDo,
	ArticleTypeNews,
	ArticleTypeGlobal,
}

// ParseArticleType returns the ArticleType named by s, ignoring case and surrounding space.
func ParseArticleType(s string) (ArticleType, bool) {
	t := ArticleType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ArticleTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// IsContextual reports whether articles of this type are generated from the
// source article's extracted content rather than from the keyword alone.
func (t ArticleType) IsContextual() bool {
	return t == ArticleTypeNews || t == ArticleTypeGlobal
}

// ArticleContext is the structured summary of a source article.
type ArticleContext struct {
	Summary  string   `json:"summary"`
	KeyFacts []string `json:"key_facts"`
	Angle    string   `json:"logishift_angle,omitempty"`
}

// GenerationJob is everything article generation needs for one candidate.
type GenerationJob struct {
	Keyword string          `json:"keyword"`
	Type    ArticleType     `json:"article_type"`
	Context *ArticleContext `json:"context,omitempty"`
	Source  *ScoredArticle  `json:"source,omitempty"`
}

// Taxonomy is the CMS category and tag assignment for an article.
type Taxonomy struct {
	Category     string   `json:"category"`
	IndustryTags []string `json:"industry_tags"`
	ThemeTags    []string `json:"theme_tags"`
	RegionTags   []string `json:"region_tags"`
}

// DefaultCategory is used when classification fails.
const DefaultCategory = "technology-dx"

// DefaultTaxonomy returns the fallback taxonomy.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		Category:     DefaultCategory,
		IndustryTags: []string{},
		ThemeTags:    []string{},
		RegionTags:   []string{},
	}
}

// GeneratedArticle is a finished markdown article ready to publish.
type GeneratedArticle struct {
	Title       string          `json:"title"`
	Content     string          `json:"content"`
	Type        ArticleType     `json:"article_type"`
	Keyword     string          `json:"keyword"`
	SourceURL   string          `json:"source_url,omitempty"`
	Taxonomy    Taxonomy        `json:"taxonomy"`
	Links       []LinkCandidate `json:"links,omitempty"`
	Context     *ArticleContext `json:"context,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
}
