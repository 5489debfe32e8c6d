package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/trendwatch/backend/internal/storage/models"
	"github.com/trendwatch/backend/pkg/logger"
	"github.com/trendwatch/backend/pkg/utils"
)

// Client is the search index: a denormalized, queryable projection of the
// analyzed corpus. The link hash is the document ID, so re-uploading the
// same article merges rather than duplicates.
type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("Search index opened", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS indexed_articles (
		id TEXT PRIMARY KEY,
		link TEXT UNIQUE NOT NULL,
		title TEXT NOT NULL,
		content TEXT,
		source TEXT,
		published_date TEXT,
		published_unix INTEGER NOT NULL DEFAULT 0,
		sentiment_overall TEXT,
		sentiment_positive_score REAL,
		sentiment_neutral_score REAL,
		sentiment_negative_score REAL,
		key_phrases TEXT,
		entity_categories TEXT,
		indexed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_articles_published ON indexed_articles(published_unix);
	CREATE INDEX IF NOT EXISTS idx_articles_source ON indexed_articles(source);
	CREATE INDEX IF NOT EXISTS idx_articles_sentiment ON indexed_articles(sentiment_overall);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize index schema: %w", err)
	}

	logger.Info("Search index schema initialized")
	return nil
}

// Transform projects an analyzed article into its indexed document. Field
// names here are the writer half of the index contract.
func Transform(article models.Article, now time.Time) models.IndexedDocument {
	doc := models.IndexedDocument{
		ID:            utils.HashString(article.Link),
		Title:         article.Title,
		Content:       article.Content,
		Link:          article.Link,
		Source:        article.Source,
		PublishedDate: article.PublishedDate,
		KeyPhrases:    article.KeyPhrases,
		IndexedAt:     now.Unix(),
	}

	if t := article.PublishedAt(); !t.IsZero() {
		doc.PublishedUnix = t.Unix()
	}

	if article.Sentiment != nil {
		doc.SentimentOverall = article.Sentiment.Overall
		doc.SentimentPositive = article.Sentiment.PositiveScore
		doc.SentimentNeutral = article.Sentiment.NeutralScore
		doc.SentimentNegative = article.Sentiment.NegativeScore
	}

	seen := make(map[string]bool)
	for _, e := range article.Entities {
		if e.Category != "" && !seen[e.Category] {
			seen[e.Category] = true
			doc.EntityCategories = append(doc.EntityCategories, e.Category)
		}
	}

	return doc
}

// Upload upserts documents into the index. Returns the number indexed; a
// single bad document is skipped, not fatal.
func (c *Client) Upload(docs []models.IndexedDocument) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	stmt := `
		INSERT INTO indexed_articles (
			id, link, title, content, source, published_date, published_unix,
			sentiment_overall, sentiment_positive_score, sentiment_neutral_score,
			sentiment_negative_score, key_phrases, entity_categories, indexed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			source = excluded.source,
			published_date = excluded.published_date,
			published_unix = excluded.published_unix,
			sentiment_overall = excluded.sentiment_overall,
			sentiment_positive_score = excluded.sentiment_positive_score,
			sentiment_neutral_score = excluded.sentiment_neutral_score,
			sentiment_negative_score = excluded.sentiment_negative_score,
			key_phrases = excluded.key_phrases,
			entity_categories = excluded.entity_categories,
			indexed_at = excluded.indexed_at
	`

	indexed := 0
	for _, doc := range docs {
		phrasesJSON, _ := json.Marshal(doc.KeyPhrases)
		categoriesJSON, _ := json.Marshal(doc.EntityCategories)

		_, err := c.db.Exec(stmt,
			doc.ID,
			doc.Link,
			doc.Title,
			doc.Content,
			doc.Source,
			doc.PublishedDate,
			doc.PublishedUnix,
			doc.SentimentOverall,
			doc.SentimentPositive,
			doc.SentimentNeutral,
			doc.SentimentNegative,
			string(phrasesJSON),
			string(categoriesJSON),
			doc.IndexedAt,
		)
		if err != nil {
			logger.Warn("Failed to index document",
				zap.String("link", doc.Link),
				zap.Error(err),
			)
			continue
		}
		indexed++
	}

	logger.Info("Documents indexed", zap.Int("indexed", indexed), zap.Int("submitted", len(docs)))
	return indexed, nil
}

// SearchRequest is a keyword/field-filtered lookup. When OrderByRecency is
// set results come back newest first; otherwise they are ranked by keyword
// relevance with title hits weighted above content hits.
type SearchRequest struct {
	Query          string
	Source         string
	Sentiment      string
	Since          time.Time
	OrderByRecency bool
	Top            int
}

func (c *Client) Search(ctx context.Context, req SearchRequest) ([]models.IndexedDocument, error) {
	if req.Top <= 0 {
		req.Top = 15
	}

	var conds []string
	var args []interface{}

	terms := queryTerms(req.Query)
	var scoreExpr string
	if len(terms) > 0 {
		var termConds []string
		var scoreParts []string
		for _, term := range terms {
			pattern := "%" + term + "%"
			termConds = append(termConds, "(lower(title) LIKE ? OR lower(content) LIKE ?)")
			args = append(args, pattern, pattern)
			scoreParts = append(scoreParts,
				"(CASE WHEN lower(title) LIKE ? THEN 2 ELSE 0 END + CASE WHEN lower(content) LIKE ? THEN 1 ELSE 0 END)")
		}
		conds = append(conds, "("+strings.Join(termConds, " OR ")+")")
		scoreExpr = strings.Join(scoreParts, " + ")
	}

	if req.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, req.Source)
	}
	if req.Sentiment != "" {
		conds = append(conds, "sentiment_overall = ?")
		args = append(args, req.Sentiment)
	}
	if !req.Since.IsZero() {
		conds = append(conds, "published_unix >= ?")
		args = append(args, req.Since.Unix())
	}

	query := `
		SELECT id, link, title, content, source, published_date, published_unix,
			sentiment_overall, sentiment_positive_score, sentiment_neutral_score,
			sentiment_negative_score, key_phrases, entity_categories, indexed_at
		FROM indexed_articles
	`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	if req.OrderByRecency || scoreExpr == "" {
		query += " ORDER BY published_unix DESC"
	} else {
		query += " ORDER BY (" + scoreExpr + ") DESC, published_unix DESC"
		for _, term := range terms {
			pattern := "%" + term + "%"
			args = append(args, pattern, pattern)
		}
	}

	query += " LIMIT ?"
	args = append(args, req.Top)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("index search failed: %w", err)
	}
	defer rows.Close()

	var docs []models.IndexedDocument
	for rows.Next() {
		var doc models.IndexedDocument
		var phrasesJSON, categoriesJSON string

		err := rows.Scan(
			&doc.ID,
			&doc.Link,
			&doc.Title,
			&doc.Content,
			&doc.Source,
			&doc.PublishedDate,
			&doc.PublishedUnix,
			&doc.SentimentOverall,
			&doc.SentimentPositive,
			&doc.SentimentNeutral,
			&doc.SentimentNegative,
			&phrasesJSON,
			&categoriesJSON,
			&doc.IndexedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan indexed document: %w", err)
		}

		json.Unmarshal([]byte(phrasesJSON), &doc.KeyPhrases)
		json.Unmarshal([]byte(categoriesJSON), &doc.EntityCategories)
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

func (c *Client) Count() (int, error) {
	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM indexed_articles").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count indexed documents: %w", err)
	}
	return n, nil
}

// queryTerms lowercases and splits a free-text query, dropping stop-ish
// one-character tokens and escaping LIKE wildcards.
func queryTerms(q string) []string {
	fields := strings.Fields(strings.ToLower(q))
	var terms []string
	for _, f := range fields {
		f = strings.NewReplacer("%", "", "_", "").Replace(f)
		if len(f) > 1 {
			terms = append(terms, f)
		}
	}
	return terms
}
