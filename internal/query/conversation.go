package query

import (
	"github.com/google/uuid"
)

// Turn is one utterance in a conversation, either the user's or the
// assistant's.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is an ordered sequence of turns, bounded for prompt-size reasons.
// The engine only reads and appends; the caller owns the session's lifetime
// and nothing here is persisted.
type Session struct {
	ID       string `json:"id"`
	Turns    []Turn `json:"turns"`
	maxTurns int
}

func NewSession(maxTurns int) *Session {
	if maxTurns <= 0 {
		maxTurns = 20
	}
	return &Session{
		ID:       uuid.New().String(),
		maxTurns: maxTurns,
	}
}

// Append records a completed exchange. When the turn cap is exceeded the
// oldest exchange is dropped.
func (s *Session) Append(userMsg, assistantMsg string) {
	s.Turns = append(s.Turns,
		Turn{Role: "user", Content: userMsg},
		Turn{Role: "assistant", Content: assistantMsg},
	)
	for len(s.Turns) > s.maxTurns {
		s.Turns = s.Turns[2:]
	}
}

// TrimmedToBudget returns the most recent turns whose combined estimated
// token cost fits the budget, dropping oldest first. Trimming happens in
// whole exchanges so the surviving history never opens mid-conversation on
// an assistant turn.
func (s *Session) TrimmedToBudget(budget int) []Turn {
	if len(s.Turns) == 0 || budget <= 0 {
		return nil
	}

	total := 0
	start := len(s.Turns)
	for i := len(s.Turns) - 2; i >= 0; i -= 2 {
		cost := Estimate(s.Turns[i].Content) + Estimate(s.Turns[i+1].Content)
		if total+cost > budget {
			break
		}
		total += cost
		start = i
	}

	if start == len(s.Turns) {
		return nil
	}
	return s.Turns[start:]
}
