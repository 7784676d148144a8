package convo

// EstimateTokens approximates the token count of a transcript fragment.
// The bridge never tokenizes for real; four bytes per token is close enough
// for budget accounting and errs on the generous side for English speech.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
