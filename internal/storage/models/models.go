package models

import "time"

// Article is the unit of the corpus. Link is the sole identity key: two
// records with the same link are the same article regardless of content.
type Article struct {
	Title         string     `json:"title"`
	Link          string     `json:"link"`
	Content       string     `json:"content"`
	Source        string     `json:"source"`
	PublishedDate string     `json:"published_date,omitempty"`
	Sentiment     *Sentiment `json:"sentiment,omitempty"`
	KeyPhrases    []string   `json:"key_phrases,omitempty"`
	Entities      []Entity   `json:"entities,omitempty"`
}

// Analyzed reports whether the annotation service produced results for this
// article. Articles whose batch failed pass through with Sentiment nil.
func (a *Article) Analyzed() bool {
	return a.Sentiment != nil
}

// PublishedAt parses the published date, which feeds may emit in several
// formats or omit entirely. The zero time means unknown.
func (a *Article) PublishedAt() time.Time {
	if a.PublishedDate == "" {
		return time.Time{}
	}
	layouts := []string{
		time.RFC3339,
		time.RFC1123Z,
		time.RFC1123,
		"2006-01-02T15:04:05Z0700",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, a.PublishedDate); err == nil {
			return t
		}
	}
	return time.Time{}
}

type Sentiment struct {
	Overall       string  `json:"overall"`
	PositiveScore float64 `json:"positive_score"`
	NeutralScore  float64 `json:"neutral_score"`
	NegativeScore float64 `json:"negative_score"`
}

type Entity struct {
	Text       string  `json:"text"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// IndexedDocument is the denormalized search projection of an analyzed
// Article. Field names are part of the writer/reader contract with the
// search index and must match exactly.
type IndexedDocument struct {
	ID                  string   `json:"id"`
	Title               string   `json:"title"`
	Content             string   `json:"content"`
	Link                string   `json:"link"`
	Source              string   `json:"source"`
	PublishedDate       string   `json:"published_date"`
	PublishedUnix       int64    `json:"published_unix"`
	SentimentOverall    string   `json:"sentiment_overall"`
	SentimentPositive   float64  `json:"sentiment_positive_score"`
	SentimentNeutral    float64  `json:"sentiment_neutral_score"`
	SentimentNegative   float64  `json:"sentiment_negative_score"`
	KeyPhrases          []string `json:"key_phrases"`
	EntityCategories    []string `json:"entity_categories"`
	IndexedAt           int64    `json:"indexed_at"`
}

// RunReport aggregates per-stage outcomes of one pipeline run instead of
// propagating failures across stage boundaries.
type RunReport struct {
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Fetched      int       `json:"fetched"`
	Duplicates   int       `json:"duplicates"`
	Scraped      int       `json:"scraped"`
	ScrapeEmpty  int       `json:"scrape_empty"`
	TooShort     int       `json:"too_short"`
	Analyzed     int       `json:"analyzed"`
	Unannotated  int       `json:"unannotated"`
	Truncated    int       `json:"truncated"`
	Indexed      int       `json:"indexed"`
	SourceErrors []string  `json:"source_errors,omitempty"`
}
