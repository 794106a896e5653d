package fetch

import (
	"context"

	"github.com/rs/zerolog"
)

// Article is the readable content of a news page.
type Article struct {
	Title   string
	Content string
	URL     string
	// Rendered is true when the content came from the headless browser.
	Rendered bool
}

// Extractor pulls article text from news pages using per-source selectors.
type Extractor struct {
	opts   *Options
	render Renderer
	logger zerolog.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithOptions sets the HTTP options.
func WithOptions(opts *Options) ExtractorOption {
	return func(e *Extractor) { e.opts = opts }
}

// WithRenderer enables a browser fallback for pages whose static HTML
// yields too little text.
func WithRenderer(render Renderer) ExtractorOption {
	return func(e *Extractor) { e.render = render }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) ExtractorOption {
	return func(e *Extractor) { e.logger = logger }
}

// NewExtractor creates an Extractor.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		opts:   DefaultOptions(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractArticle downloads url and extracts its headline and body text using
// the selectors registered for source.
func (e *Extractor) ExtractArticle(ctx context.Context, url, source string) (*Article, error) {
	selectors, known := SelectorsFor(source)
	if !known {
		e.logger.Debug().Str("source", source).Msg("no selectors for source, using generic extraction")
	}

	result, err := URL(ctx, url, e.opts)
	if err != nil {
		return nil, err
	}

	article, err := extract(result.HTML, url, selectors)
	if err != nil {
		return nil, err
	}

	if e.render != nil && ShouldUseBrowser(article.Content) {
		e.logger.Info().Str("url", url).Int("chars", len(article.Content)).Msg("static content too short, rendering in browser")
		html, renderErr := e.render(ctx, url)
		if renderErr != nil {
			e.logger.Warn().Err(renderErr).Str("url", url).Msg("browser fallback failed")
		} else if rendered, extractErr := extract(html, url, selectors); extractErr == nil && len(rendered.Content) > len(article.Content) {
			rendered.Rendered = true
			article = rendered
		}
	}

	if article.Content == "" {
		return nil, &Error{URL: url, Message: "no article content found"}
	}

	e.logger.Debug().Str("url", url).Int("chars", len(article.Content)).Msg("extracted article")
	return article, nil
}

func extract(html, url string, selectors Selectors) (*Article, error) {
	content, err := ExtractMainText(html, selectors.Content)
	if err != nil {
		return nil, &Error{URL: url, Message: "failed to parse page", Cause: err}
	}
	return &Article{
		Title:   ExtractTitle(html, selectors.Title),
		Content: content,
		URL:     url,
	}, nil
}
