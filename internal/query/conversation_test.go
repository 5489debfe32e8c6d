package query

import (
	"strings"
	"testing"
)

func TestSessionAppendDropsOldest(t *testing.T) {
	s := NewSession(4)

	s.Append("q1", "a1")
	s.Append("q2", "a2")
	s.Append("q3", "a3")

	if len(s.Turns) != 4 {
		t.Fatalf("expected 4 turns after cap, got %d", len(s.Turns))
	}
	if s.Turns[0].Content != "q2" {
		t.Errorf("oldest exchange should be dropped first, got %q", s.Turns[0].Content)
	}
	if s.Turns[3].Content != "a3" {
		t.Errorf("latest turn should be retained, got %q", s.Turns[3].Content)
	}
}

func TestTrimmedToBudgetKeepsMostRecent(t *testing.T) {
	s := NewSession(20)
	s.Append(strings.Repeat("x", 400), strings.Repeat("y", 400)) // ~100 tokens per turn
	s.Append(strings.Repeat("z", 40), strings.Repeat("w", 40))   // ~10 tokens per turn

	got := s.TrimmedToBudget(25)
	if len(got) != 2 {
		t.Fatalf("expected only the recent exchange to fit, got %d turns", len(got))
	}
	if got[0].Content != strings.Repeat("z", 40) {
		t.Errorf("wrong turn survived trimming")
	}

	if got := s.TrimmedToBudget(0); got != nil {
		t.Errorf("zero budget should yield no history")
	}

	all := s.TrimmedToBudget(10000)
	if len(all) != 4 {
		t.Errorf("large budget should keep all turns, got %d", len(all))
	}
}

func TestTrimmedToBudgetDropsWholeExchanges(t *testing.T) {
	s := NewSession(20)
	s.Append(strings.Repeat("q", 400), strings.Repeat("a", 40)) // user ~100 tokens, assistant ~10

	// The assistant turn alone would fit, but a split exchange would open
	// the history mid-conversation.
	if got := s.TrimmedToBudget(50); len(got) != 0 {
		t.Fatalf("partial exchange must not survive trimming, got %d turns", len(got))
	}

	s.Append("short q", "short a")
	got := s.TrimmedToBudget(50)
	if len(got) != 2 {
		t.Fatalf("expected the recent exchange to fit whole, got %d turns", len(got))
	}
	if got[0].Role != "user" {
		t.Errorf("trimmed history must open with a user turn, got %q", got[0].Role)
	}
}
