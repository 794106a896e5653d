// Package collector pulls candidate articles from RSS and Atom news feeds.
package collector

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/logishift/internal/types"
)

// DefaultHours is the lookback used when neither hours nor days is set.
const DefaultHours = 3

const (
	userAgent       = "Mozilla/5.0 (compatible; LogiShiftCollector/1.0)"
	maxFeedBytes    = 10 << 20
	maxConcurrency  = 4
	defaultTimeout  = 30 * time.Second
	summaryMaxRunes = 1000
)

// Source is a named news feed. Name doubles as the source identifier used
// for content extraction and classification.
type Source struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// DefaultSources are the logistics feeds collected when no feed file is configured.
var DefaultSources = []Source{
	{Name: "techcrunch", URL: "https://techcrunch.com/tag/logistics/feed/"},
	{Name: "supply_chain_dive", URL: "https://www.supplychaindive.com/feeds/news/"},
	{Name: "freightwaves", URL: "https://www.freightwaves.com/news/feed"},
	{Name: "robot_report", URL: "https://www.therobotreport.com/feed/"},
	{Name: "the_loadstar", URL: "https://theloadstar.com/feed/"},
	{Name: "logistics_manager_uk", URL: "https://www.logisticsmanager.com/feed/"},
	{Name: "lnews", URL: "https://www.lnews.jp/feed/"},
	{Name: "logistics_today", URL: "https://www.logi-today.com/feed"},
	{Name: "pandaily", URL: "https://pandaily.com/feed/"},
	{Name: "supply_chain_asia", URL: "https://supplychainasia.org/feed/"},
}

type sourceFile struct {
	Sources []Source `yaml:"sources"`
}

// LoadSources reads a YAML feed list of the form:
//
//	sources:
//	  - name: freightwaves
//	    url: https://www.freightwaves.com/news/feed
func LoadSources(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed file: %w", err)
	}

	var file sourceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse feed file %s: %w", path, err)
	}
	if len(file.Sources) == 0 {
		return nil, fmt.Errorf("feed file %s lists no sources", path)
	}
	for i, s := range file.Sources {
		if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.URL) == "" {
			return nil, fmt.Errorf("feed file %s: source %d needs both name and url", path, i)
		}
	}
	return file.Sources, nil
}

// Window is the lookback period. Hours takes precedence over Days.
type Window struct {
	Days  int
	Hours int
}

// Duration returns the lookback as a time.Duration.
func (w Window) Duration() time.Duration {
	switch {
	case w.Hours > 0:
		return time.Duration(w.Hours) * time.Hour
	case w.Days > 0:
		return time.Duration(w.Days) * 24 * time.Hour
	default:
		return DefaultHours * time.Hour
	}
}

// Collector fetches feeds over HTTP.
type Collector struct {
	client *http.Client
	logger zerolog.Logger
	now    func() time.Time
}

// Option configures a Collector.
type Option func(*Collector)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Collector) { c.client = client }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Collector) { c.logger = logger }
}

// WithClock overrides the time source used for window filtering.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// New creates a Collector.
func New(opts ...Option) *Collector {
	c := &Collector{
		client: &http.Client{Timeout: defaultTimeout},
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect fetches every source and returns the items published inside the
// window, grouped in source order. A feed that cannot be fetched or parsed
// is logged and skipped.
func (c *Collector) Collect(ctx context.Context, sources []Source, window Window) []types.CandidateArticle {
	since := c.now().Add(-window.Duration())
	results := make([][]types.CandidateArticle, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)
	for i, src := range sources {
		g.Go(func() error {
			items, err := c.FetchSource(gctx, src, since)
			if err != nil {
				c.logger.Warn().Err(err).Str("source", src.Name).Msg("feed skipped")
				return nil
			}
			c.logger.Info().Str("source", src.Name).Int("items", len(items)).Msg("feed collected")
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	var all []types.CandidateArticle
	for _, items := range results {
		all = append(all, items...)
	}
	return all
}

// FetchSource fetches one feed and returns items published at or after since.
// Items without a parseable date are kept.
func (c *Collector) FetchSource(ctx context.Context, src Source, since time.Time) ([]types.CandidateArticle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}

	entries, err := parseFeed(body)
	if err != nil {
		return nil, err
	}

	var items []types.CandidateArticle
	for _, e := range entries {
		if e.title == "" || e.link == "" {
			continue
		}
		if !e.published.IsZero() && e.published.Before(since) {
			continue
		}
		items = append(items, types.CandidateArticle{
			Title:   e.title,
			URL:     e.link,
			Source:  src.Name,
			Summary: truncateRunes(StripHTML(e.summary), summaryMaxRunes),
		})
	}
	return items, nil
}

// RSS is an RSS 2.0 document.
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Channel Channel  `xml:"channel"`
}

// Channel is an RSS channel.
type Channel struct {
	Title string    `xml:"title"`
	Items []RSSItem `xml:"item"`
}

// RSSItem is an RSS item.
type RSSItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

// Atom is an Atom feed document.
type Atom struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Entries []AtomEntry `xml:"entry"`
}

// AtomLink is an Atom link element.
type AtomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

// AtomEntry is an Atom entry.
type AtomEntry struct {
	Title     string     `xml:"title"`
	Links     []AtomLink `xml:"link"`
	Summary   string     `xml:"summary"`
	Content   string     `xml:"content"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
}

type entry struct {
	title     string
	link      string
	summary   string
	published time.Time
}

func parseFeed(body []byte) ([]entry, error) {
	root, err := rootElement(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	switch root {
	case "rss":
		var rss RSS
		if err := xml.Unmarshal(body, &rss); err != nil {
			return nil, fmt.Errorf("failed to parse RSS feed: %w", err)
		}
		entries := make([]entry, 0, len(rss.Channel.Items))
		for _, item := range rss.Channel.Items {
			link := strings.TrimSpace(item.Link)
			if link == "" && strings.HasPrefix(item.GUID, "http") {
				link = strings.TrimSpace(item.GUID)
			}
			entries = append(entries, entry{
				title:     strings.TrimSpace(item.Title),
				link:      link,
				summary:   item.Description,
				published: parseRSSDate(item.PubDate),
			})
		}
		return entries, nil
	case "feed":
		var atom Atom
		if err := xml.Unmarshal(body, &atom); err != nil {
			return nil, fmt.Errorf("failed to parse Atom feed: %w", err)
		}
		entries := make([]entry, 0, len(atom.Entries))
		for _, e := range atom.Entries {
			summary := e.Summary
			if strings.TrimSpace(summary) == "" {
				summary = e.Content
			}
			date := e.Published
			if date == "" {
				date = e.Updated
			}
			entries = append(entries, entry{
				title:     strings.TrimSpace(e.Title),
				link:      atomLink(e.Links),
				summary:   summary,
				published: parseAtomDate(date),
			})
		}
		return entries, nil
	default:
		return nil, fmt.Errorf("unsupported feed format: <%s>", root)
	}
}

func rootElement(body []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := decoder.Token()
		if err != nil {
			return "", err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

func atomLink(links []AtomLink) string {
	for _, l := range links {
		if l.Rel == "" || l.Rel == "alternate" {
			return strings.TrimSpace(l.Href)
		}
	}
	if len(links) > 0 {
		return strings.TrimSpace(links[0].Href)
	}
	return ""
}

var rssDateFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
}

func parseRSSDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, format := range rssDateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseAtomDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return parseRSSDate(s)
}

// StripHTML returns the text content of an HTML fragment with whitespace collapsed.
func StripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
