package fetch

// Selectors locate the article body and headline on a news site.
type Selectors struct {
	Content []string
	Title   string
}

var sourceSelectors = map[string]Selectors{
	"techcrunch":               {Content: []string{"div.article-content", "div.entry-content"}, Title: "h1"},
	"wsj_logistics":            {Content: []string{"div.article-content"}, Title: "h1.wsj-article-headline"},
	"lnews":                    {Content: []string{"div.entry-content"}, Title: "h1.entry-title"},
	"logistics_today":          {Content: []string{"div.entry-content"}, Title: "h1.entry-title"},
	"logi_biz":                 {Content: []string{"div.entry-content"}, Title: "h1.entry-title"},
	"supply_chain_dive":        {Content: []string{"div.article-body"}, Title: "h1.article-title"},
	"logistics_mgmt":           {Content: []string{"div.article-body"}, Title: "h1"},
	"freightwaves":             {Content: []string{"div.entry-content"}, Title: "h1.entry-title"},
	"robot_report":             {Content: []string{"div.entry-content"}, Title: "h1"},
	"supply_chain_brain":       {Content: []string{"div.editorial-content__body", "div.body"}, Title: "h1"},
	"robotics_automation_news": {Content: []string{"div.entry-content"}, Title: "h1"},
	"36kr_japan":               {Content: []string{"div.entry-content"}, Title: "h1"},
	"pandaily":                 {Content: []string{"div.prose"}, Title: "h1"},
	"the_loadstar":             {Content: []string{"div.entry-content", "div.article-body"}, Title: "h1"},
	"logistics_manager_uk":     {Content: []string{"div.entry-content"}, Title: "h1"},
	"supply_chain_asia":        {Content: []string{"div.entry-content"}, Title: "h1"},
}

// DefaultSelectors are used for sources without an entry of their own.
func DefaultSelectors() Selectors {
	return Selectors{
		Content: []string{"article", "div.content", "div.post-content", "div.entry-content", "main"},
		Title:   "h1",
	}
}

// SelectorsFor returns the selectors registered for source and whether the
// source is known.
func SelectorsFor(source string) (Selectors, bool) {
	s, ok := sourceSelectors[source]
	if !ok {
		return DefaultSelectors(), false
	}
	return s, true
}
