package store

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestSaveAndListTurns(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	if err := a.SaveTurn(ctx, "s1", "user", "hello"); err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}
	if err := a.SaveTurn(ctx, "s1", "assistant", "hi there"); err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}
	if err := a.SaveTurn(ctx, "s2", "user", "other session"); err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}

	turns, err := a.Turns(ctx, "s1")
	if err != nil {
		t.Fatalf("Turns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("len(turns)=%d, want 2", len(turns))
	}
	if turns[0].Role != "user" || turns[0].Content != "hello" {
		t.Fatalf("turns[0]=%+v", turns[0])
	}
	if turns[1].Role != "assistant" {
		t.Fatalf("turns[1]=%+v", turns[1])
	}
}

func TestSummariesAndResets(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	if err := a.SaveSummary(ctx, "s1", "they discussed the weather", 4); err != nil {
		t.Fatalf("SaveSummary: %v", err)
	}
	if err := a.RecordReset(ctx, "s1"); err != nil {
		t.Fatalf("RecordReset: %v", err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("Open accepted empty path")
	}
}
