package convo

import (
	"context"
	"strings"
	"testing"
)

func TestTruncationSummarizerKeepsFirstSentences(t *testing.T) {
	summarize := NewTruncationSummarizer(100)
	out, err := summarize(context.Background(), "", []Message{
		{Role: RoleUser, Content: "Book a table for two. Somewhere quiet please."},
		{Role: RoleAssistant, Content: "Done! I reserved Chez Nous at 7pm."},
	})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if !strings.Contains(out, "Book a table for two.") {
		t.Fatalf("summary=%q", out)
	}
	if strings.Contains(out, "Somewhere quiet") {
		t.Fatalf("summary kept material past the first sentence: %q", out)
	}
}

func TestTruncationSummarizerHonorsCap(t *testing.T) {
	summarize := NewTruncationSummarizer(25)
	var msgs []Message
	for i := 0; i < 50; i++ {
		msgs = append(msgs, Message{Role: RoleUser, Content: strings.Repeat("word ", 20)})
	}
	out, err := summarize(context.Background(), strings.Repeat("old ", 100), msgs)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if EstimateTokens(out) > 25 {
		t.Fatalf("summary tokens=%d, want <= 25", EstimateTokens(out))
	}
	if out == "" {
		t.Fatal("summary is empty")
	}
}
