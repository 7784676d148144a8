package convo

import (
	"context"
	"strings"
)

// NewTruncationSummarizer is the fallback used when no text model is
// configured. It keeps the leading slice of each absorbed turn, newest last,
// under the token cap. Crude, but it preserves the budget invariants.
func NewTruncationSummarizer(maxTokens int) SummarizeFunc {
	if maxTokens <= 0 {
		maxTokens = DefaultSummaryMaxTokens
	}
	maxBytes := maxTokens * 4
	return func(_ context.Context, prior string, msgs []Message) (string, error) {
		var b strings.Builder
		if prior != "" {
			b.WriteString(prior)
		}
		for _, msg := range msgs {
			if b.Len() > 0 {
				b.WriteString(" / ")
			}
			line := string(msg.Role) + ": " + firstSentence(msg.Content)
			b.WriteString(line)
		}
		out := b.String()
		if len(out) > maxBytes {
			// Drop the oldest half and keep going from the newest material.
			out = out[len(out)-maxBytes:]
			if i := strings.Index(out, " / "); i >= 0 {
				out = out[i+3:]
			}
		}
		return out, nil
	}
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	for _, sep := range []string{". ", "? ", "! "} {
		if i := strings.Index(text, sep); i >= 0 {
			return text[:i+1]
		}
	}
	if len(text) > 200 {
		return text[:200]
	}
	return text
}
