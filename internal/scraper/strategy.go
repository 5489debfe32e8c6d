package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Strategy identifies where article body text lives in a page's structure.
// TryExtract returns plain text joined with single spaces, or "" when the
// rule does not match this page.
type Strategy struct {
	Name     string
	Selector string
}

func (st Strategy) TryExtract(doc *goquery.Document) string {
	sel := doc.Find(st.Selector).First()
	if sel.Length() == 0 {
		return ""
	}

	var parts []string
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		return strings.TrimSpace(sel.Text())
	}
	return strings.Join(parts, " ")
}

// siteRules maps hosts with known page structures to the selector for their
// article body region.
var siteRules = map[string]string{
	"venturebeat.com":       "div.article-body",
	"gizmodo.com":           "div.entry-content",
	"techcrunch.com":        "div.entry-content",
	"arstechnica.com":       "div.post-content",
	"theguardian.com":       "div.article-body-commercial-selector",
	"www.theguardian.com":   "div.article-body-commercial-selector",
	"www.theverge.com":      "div.duet--article--article-body-component",
	"theverge.com":          "div.duet--article--article-body-component",
	"www.tomsguide.com":     "div#article-body",
	"tomsguide.com":         "div#article-body",
	"www.infoworld.com":     "div.article-body",
	"infoworld.com":         "div.article-body",
	"spectrum.ieee.org":     "div.article-content",
	"www.theregister.com":   "div#body",
	"theregister.com":       "div#body",
	"sifted.eu":             "div.entry-content",
	"www.sifted.eu":         "div.entry-content",
	"www.breakit.se":        "div.article-body",
	"breakit.se":            "div.article-body",
	"www.di.se":             "article.article",
	"di.se":                 "article.article",
	"arcticstartup.com":     "div.entry-content",
	"www.arcticstartup.com": "div.entry-content",
}

// fallbackStrategies are tried in order when no site rule exists for the
// host or the site rule yields nothing.
var fallbackStrategies = []Strategy{
	{Name: "article", Selector: "article"},
	{Name: "main", Selector: "main"},
	{Name: "article-body", Selector: "div.article-body"},
	{Name: "entry-content", Selector: "div.entry-content"},
	{Name: "post-content", Selector: "div.post-content"},
	{Name: "itemprop-articleBody", Selector: `div[itemprop="articleBody"]`},
}

// StrategiesFor builds the prioritized strategy chain for a host: the
// site-specific rule first when one exists, then the generic fallbacks,
// without duplicate selectors.
func StrategiesFor(host string) []Strategy {
	var chain []Strategy
	seen := make(map[string]bool)

	if sel, ok := siteRules[host]; ok {
		chain = append(chain, Strategy{Name: "site:" + host, Selector: sel})
		seen[sel] = true
	}
	for _, st := range fallbackStrategies {
		if !seen[st.Selector] {
			chain = append(chain, st)
			seen[st.Selector] = true
		}
	}
	return chain
}
