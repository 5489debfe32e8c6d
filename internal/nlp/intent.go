// Package nlp inspects user queries for retrieval hints: recency constraints
// expressed in natural language, and named entities usable as filters.
package nlp

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	prose "github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/trendwatch/backend/pkg/logger"
)

type temporalPattern struct {
	re   *regexp.Regexp
	span time.Duration
}

var day = 24 * time.Hour

var temporalPatterns = []temporalPattern{
	{regexp.MustCompile(`last 24 hours?|past 24 hours?|today`), day},
	{regexp.MustCompile(`last 48 hours?|past 48 hours?`), 2 * day},
	{regexp.MustCompile(`this week|last week|past week`), 7 * day},
	{regexp.MustCompile(`this month|last month|past month`), 30 * day},
}

var nDaysPattern = regexp.MustCompile(`(?:last|past) (\d+) days?`)

// DetectTimeRange looks for a recency constraint in the query. When one is
// found it returns the concrete date lower-bound (now minus the expressed
// interval) and true; retrieval then switches to recency ordering over that
// window.
func DetectTimeRange(query string, now time.Time) (time.Time, bool) {
	q := strings.ToLower(query)

	for _, p := range temporalPatterns {
		if m := p.re.FindString(q); m != "" {
			cutoff := now.Add(-p.span)
			logger.Info("Temporal intent detected",
				zap.String("phrase", m),
				zap.Time("cutoff", cutoff),
			)
			return cutoff, true
		}
	}

	if m := nDaysPattern.FindStringSubmatch(q); m != nil {
		days, err := strconv.Atoi(m[1])
		if err == nil && days > 0 {
			cutoff := now.Add(-time.Duration(days) * day)
			logger.Info("Temporal intent detected",
				zap.String("phrase", m[0]),
				zap.Time("cutoff", cutoff),
			)
			return cutoff, true
		}
	}

	return time.Time{}, false
}

// ExtractEntities runs NER over the query and returns the entity surface
// forms. The query engine uses them as soft filter terms; an empty result
// just means no filtering.
func ExtractEntities(query string) []string {
	doc, err := prose.NewDocument(query)
	if err != nil {
		logger.Debug("Entity extraction failed", zap.Error(err))
		return nil
	}

	var names []string
	seen := make(map[string]bool)
	for _, ent := range doc.Entities() {
		text := strings.TrimSpace(ent.Text)
		key := strings.ToLower(text)
		if text != "" && !seen[key] {
			seen[key] = true
			names = append(names, text)
		}
	}
	return names
}
