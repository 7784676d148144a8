package tools

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(nil, 0)
}

func TestRegisterValidation(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Register(Definition{Name: "", Handler: func(context.Context, map[string]any) (any, error) { return nil, nil }}); err == nil {
		t.Fatal("empty name accepted")
	}
	if err := r.Register(Definition{Name: "x"}); err == nil {
		t.Fatal("nil handler accepted")
	}
	def := Definition{Name: "x", Handler: func(context.Context, map[string]any) (any, error) { return nil, nil }}
	if err := r.Register(def); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(def); err == nil {
		t.Fatal("duplicate name accepted")
	}
}

func TestExecuteSuccess(t *testing.T) {
	r := newTestRegistry(t)
	if err := RegisterBuiltins(r); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}

	result := r.Execute(context.Background(), "echo", map[string]any{"text": "hello"})
	if !result.Success {
		t.Fatalf("echo failed: %s", result.Error)
	}
	if !strings.Contains(result.Content, `"text":"hello"`) {
		t.Fatalf("content=%q", result.Content)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	r := newTestRegistry(t)
	result := r.Execute(context.Background(), "nope", nil)
	if result.Success {
		t.Fatal("unknown tool reported success")
	}
	if !strings.Contains(result.Error, "unknown tool") {
		t.Fatalf("error=%q", result.Error)
	}
}

func TestExecuteMissingRequiredInput(t *testing.T) {
	r := newTestRegistry(t)
	if err := RegisterBuiltins(r); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	result := r.Execute(context.Background(), "echo", map[string]any{})
	if result.Success {
		t.Fatal("missing required input accepted")
	}
	if !strings.Contains(result.Error, `"text"`) {
		t.Fatalf("error=%q", result.Error)
	}
}

func TestExecuteHandlerError(t *testing.T) {
	r := newTestRegistry(t)
	r.MustRegister(Definition{
		Name: "fail",
		Handler: func(context.Context, map[string]any) (any, error) {
			return nil, fmt.Errorf("backend down")
		},
	})
	result := r.Execute(context.Background(), "fail", nil)
	if result.Success || result.Error != "backend down" {
		t.Fatalf("result=%+v", result)
	}
}

func TestExecuteRecoversPanic(t *testing.T) {
	r := newTestRegistry(t)
	r.MustRegister(Definition{
		Name: "boom",
		Handler: func(context.Context, map[string]any) (any, error) {
			panic("nope")
		},
	})
	result := r.Execute(context.Background(), "boom", nil)
	if result.Success {
		t.Fatal("panicking tool reported success")
	}
	if !strings.Contains(result.Error, "panicked") {
		t.Fatalf("error=%q", result.Error)
	}
}

func TestExecuteTimeout(t *testing.T) {
	r := newTestRegistry(t)
	r.MustRegister(Definition{
		Name:    "slow",
		Timeout: 20 * time.Millisecond,
		Handler: func(ctx context.Context, _ map[string]any) (any, error) {
			<-ctx.Done()
			time.Sleep(time.Hour)
			return nil, nil
		},
	})
	start := time.Now()
	result := r.Execute(context.Background(), "slow", nil)
	if result.Success {
		t.Fatal("slow tool reported success")
	}
	if !strings.Contains(result.Error, "timed out") {
		t.Fatalf("error=%q", result.Error)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Execute blocked %v past the timeout", elapsed)
	}
}

func TestGetTime(t *testing.T) {
	r := newTestRegistry(t)
	if err := RegisterBuiltins(r); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	result := r.Execute(context.Background(), "get_time", map[string]any{"timezone": "America/New_York"})
	if !result.Success {
		t.Fatalf("get_time failed: %s", result.Error)
	}
	if !strings.Contains(result.Content, "America/New_York") {
		t.Fatalf("content=%q", result.Content)
	}
	if result := r.Execute(context.Background(), "get_time", map[string]any{"timezone": "Mars/Olympus"}); result.Success {
		t.Fatal("bogus timezone accepted")
	}
}

func TestWithout(t *testing.T) {
	r := newTestRegistry(t)
	if err := RegisterBuiltins(r); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	trimmed := r.Without("echo")
	if trimmed.Len() != r.Len()-1 {
		t.Fatalf("trimmed len=%d, want %d", trimmed.Len(), r.Len()-1)
	}
	if result := trimmed.Execute(context.Background(), "echo", map[string]any{"text": "x"}); result.Success {
		t.Fatal("removed tool still executable")
	}
	if result := r.Execute(context.Background(), "echo", map[string]any{"text": "x"}); !result.Success {
		t.Fatal("Without mutated the source registry")
	}
}
