package sessions

import (
	"context"
	"testing"
	"time"
)

func TestRegisterAndUnregister(t *testing.T) {
	tr := NewTracker()
	unregister := tr.Register("s1", Handle{})
	if got := tr.Count(); got != 1 {
		t.Fatalf("Count=%d, want 1", got)
	}
	unregister()
	unregister() // idempotent
	if got := tr.Count(); got != 0 {
		t.Fatalf("Count=%d, want 0", got)
	}
}

func TestReregisterEvictsOldEntry(t *testing.T) {
	tr := NewTracker()
	first := tr.Register("s1", Handle{})
	second := tr.Register("s1", Handle{})
	if got := tr.Count(); got != 1 {
		t.Fatalf("Count=%d, want 1", got)
	}
	first() // already evicted, must not remove the new entry
	if got := tr.Count(); got != 1 {
		t.Fatalf("Count=%d after stale unregister, want 1", got)
	}
	second()
	if got := tr.Count(); got != 0 {
		t.Fatalf("Count=%d, want 0", got)
	}
}

func TestNotifyAllAndCancelAll(t *testing.T) {
	tr := NewTracker()
	notified := make(map[string]string)
	canceled := 0
	tr.Register("s1", Handle{
		Notify: func(msg string) error { notified["s1"] = msg; return nil },
		Cancel: func() { canceled++ },
	})
	tr.Register("s2", Handle{
		Cancel: func() { canceled++ },
	})

	if sent := tr.NotifyAll("shutting down"); sent != 1 {
		t.Fatalf("NotifyAll sent=%d, want 1", sent)
	}
	if notified["s1"] != "shutting down" {
		t.Fatalf("notified=%v", notified)
	}
	if got := tr.CancelAll(); got != 2 {
		t.Fatalf("CancelAll=%d, want 2", got)
	}
}

func TestWait(t *testing.T) {
	tr := NewTracker()
	unregister := tr.Register("s1", Handle{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if tr.Wait(ctx) {
		t.Fatal("Wait returned true with a live session")
	}

	unregister()
	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if !tr.Wait(ctx2) {
		t.Fatal("Wait returned false after drain")
	}
}
