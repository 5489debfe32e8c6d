package query

// Estimate approximates the token cost of text for budget accounting:
// one token per four characters, rounded up. Deterministic and side-effect
// free so budget decisions are unit-testable offline.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
