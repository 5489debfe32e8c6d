package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/trendwatch/backend/internal/index/sqlite"
	"github.com/trendwatch/backend/internal/llm"
	"github.com/trendwatch/backend/internal/nlp"
	"github.com/trendwatch/backend/internal/storage/models"
	"github.com/trendwatch/backend/pkg/logger"
)

var (
	// ErrRetrieval means the search index could not provide grounding.
	ErrRetrieval = errors.New("article retrieval failed")
	// ErrGeneration means retrieval worked but the completion service did
	// not produce an answer.
	ErrGeneration = errors.New("answer generation failed")
)

// Searcher is the read-only slice of the search index the engine uses.
type Searcher interface {
	Search(ctx context.Context, req sqlite.SearchRequest) ([]models.IndexedDocument, error)
}

// Completer is the completion-service boundary.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, maxTokens int) (string, error)
}

type Config struct {
	ContextTokens        int
	ContextTokensHistory int
	HistoryTokens        int
	TopK                 int
	RetrievalTimeout     time.Duration
	AnswerMaxTokens      int
}

// Engine answers questions grounded in the indexed corpus. It is stateless
// across sessions: conversation state lives in the caller-held Session.
type Engine struct {
	index     Searcher
	completer Completer
	cfg       Config

	// injectable for deterministic tests
	now             func() time.Time
	extractEntities func(string) []string
}

type Source struct {
	Title         string `json:"title"`
	Link          string `json:"link"`
	Source        string `json:"source"`
	PublishedDate string `json:"published_date"`
}

type Response struct {
	Answer        string   `json:"answer"`
	Sources       []Source `json:"sources"`
	Temporal      bool     `json:"temporal"`
	ContextTokens int      `json:"context_tokens"`
}

func NewEngine(index Searcher, completer Completer, cfg Config) *Engine {
	if cfg.ContextTokens == 0 {
		cfg.ContextTokens = 5000
	}
	if cfg.ContextTokensHistory == 0 {
		cfg.ContextTokensHistory = 3500
	}
	if cfg.HistoryTokens == 0 {
		cfg.HistoryTokens = 1500
	}
	if cfg.TopK == 0 {
		cfg.TopK = 15
	}
	if cfg.RetrievalTimeout == 0 {
		cfg.RetrievalTimeout = 10 * time.Second
	}
	if cfg.AnswerMaxTokens == 0 {
		cfg.AnswerMaxTokens = 1000
	}

	return &Engine{
		index:           index,
		completer:       completer,
		cfg:             cfg,
		now:             time.Now,
		extractEntities: nlp.ExtractEntities,
	}
}

// Chat retrieves grounding for the query, assembles a budgeted prompt with
// any prior turns, and returns the model's answer. Retrieval failures and
// generation failures surface as distinct errors; there is no silent
// empty-context fallback.
func (e *Engine) Chat(ctx context.Context, session *Session, userQuery string) (*Response, error) {
	logger.Info("Processing chat query",
		zap.String("session", session.ID),
		zap.String("query", userQuery),
	)

	docs, temporal, err := e.retrieve(ctx, userQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}

	hasHistory := len(session.Turns) > 0
	budget := e.cfg.ContextTokens
	if hasHistory {
		budget = e.cfg.ContextTokensHistory
	}

	contextText, accepted, used := e.assembleContext(docs, budget)

	messages := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}
	for _, turn := range session.TrimmedToBudget(e.cfg.HistoryTokens) {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: contextText + "\n\nUser Question: " + userQuery,
	})

	answer, err := e.completer.Complete(ctx, messages, e.cfg.AnswerMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	session.Append(userQuery, answer)

	sources := make([]Source, 0, len(accepted))
	for _, doc := range accepted {
		sources = append(sources, Source{
			Title:         doc.Title,
			Link:          doc.Link,
			Source:        doc.Source,
			PublishedDate: doc.PublishedDate,
		})
	}

	logger.Info("Chat answer generated",
		zap.String("session", session.ID),
		zap.Int("sources", len(sources)),
		zap.Int("context_tokens", used),
		zap.Bool("temporal", temporal),
	)

	return &Response{
		Answer:        answer,
		Sources:       sources,
		Temporal:      temporal,
		ContextTokens: used,
	}, nil
}

// retrieve picks candidates: recency-descending over a window when the
// query expresses a recency constraint, keyword relevance otherwise. With a
// temporal window the keyword terms are replaced by any named entities in
// the query, so "what did OpenAI ship in the last 24 hours" stays topical
// inside the window.
func (e *Engine) retrieve(ctx context.Context, userQuery string) ([]models.IndexedDocument, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RetrievalTimeout)
	defer cancel()

	req := sqlite.SearchRequest{
		Query: userQuery,
		Top:   e.cfg.TopK,
	}

	cutoff, temporal := nlp.DetectTimeRange(userQuery, e.now())
	if temporal {
		req.Since = cutoff
		req.OrderByRecency = true
		req.Query = strings.Join(e.extractEntities(userQuery), " ")
	}

	docs, err := e.index.Search(ctx, req)
	if err != nil {
		return nil, temporal, err
	}

	logger.Debug("Candidates retrieved",
		zap.Int("count", len(docs)),
		zap.Bool("temporal", temporal),
	)
	return docs, temporal, nil
}

// assembleContext walks candidates in ranked order and accepts each one
// only while the cumulative estimated token cost stays inside the budget.
// The first candidate that would overflow stops acceptance, so the prompt
// can never exceed the completion service's input limit.
func (e *Engine) assembleContext(docs []models.IndexedDocument, budget int) (string, []models.IndexedDocument, int) {
	if len(docs) == 0 {
		return "No relevant articles found.", nil, 0
	}

	header := "Here are relevant articles from the news database. Use numbered references [1], [2], etc. to cite them:\n\n"
	used := Estimate(header)

	var b strings.Builder
	b.WriteString(header)

	var accepted []models.IndexedDocument
	for _, doc := range docs {
		entry := formatDoc(len(accepted)+1, doc)
		cost := Estimate(entry)
		if used+cost > budget {
			break
		}
		used += cost
		b.WriteString(entry)
		accepted = append(accepted, doc)
	}

	// Never return an empty context while some candidate fits on its own:
	// if the top-ranked article alone blew the budget, fall back to the
	// first one that fits.
	if len(accepted) == 0 {
		for _, doc := range docs {
			entry := formatDoc(1, doc)
			cost := Estimate(header) + Estimate(entry)
			if cost <= budget {
				b.Reset()
				b.WriteString(header)
				b.WriteString(entry)
				return b.String(), []models.IndexedDocument{doc}, cost
			}
		}
		return "No relevant articles found.", nil, 0
	}

	return b.String(), accepted, used
}

const maxSnippetChars = 3000

func formatDoc(n int, doc models.IndexedDocument) string {
	content := doc.Content
	if len(content) > maxSnippetChars {
		content = content[:maxSnippetChars] + "... [truncated]"
	}

	return fmt.Sprintf("[%d] %s\n    Source: %s\n    Date: %s\n    URL: %s\n    Content: %s\n\n",
		n, doc.Title, doc.Source, doc.PublishedDate, doc.Link, content)
}

const systemPrompt = `You are an assistant that helps users understand trends in technology news. Answer questions based ONLY on the article content provided.

CITATION RULES:
- Each article is numbered [1], [2], [3], etc. in the context
- When referencing information from an article, use the number in brackets like [1] or [2]
- Place the citation at the end of the sentence or claim
- You can cite multiple sources if relevant: [1][2]

If the articles don't contain enough information to fully answer the question, say so honestly. Be concise and factual. Focus on what the articles actually say.`
