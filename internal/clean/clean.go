// Package clean turns scraped or feed-provided markup into plain text fit
// for analysis.
package clean

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

var whitespace = regexp.MustCompile(`\s+`)

// Normalize unescapes HTML entities, normalizes unicode to NFC, strips all
// markup, and collapses runs of whitespace to single spaces.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	text := html.UnescapeString(raw)
	text = norm.NFC.String(text)

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
		doc.Find("script, style").Remove()
		text = doc.Text()
	}

	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

// LongEnough reports whether normalized content clears the minimum length
// that justifies sending it to the paid annotation service.
func LongEnough(text string, minChars int) bool {
	return len(strings.TrimSpace(text)) > minChars
}
