// Package tools hosts the registry of callable tools exposed to the speech
// model, including the escalation path to a larger text model.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Handler executes one tool call. The returned value is JSON-encoded into
// the result content.
type Handler func(ctx context.Context, input map[string]any) (any, error)

// Definition describes a registered tool.
type Definition struct {
	Name        string
	Description string
	InputSchema map[string]any
	Handler     Handler
	// Timeout overrides the registry default when positive.
	Timeout time.Duration
}

// Result is the outcome of one execution. A failed call still produces a
// Result so the failure can be reported to the model in-band.
type Result struct {
	Success bool
	Content string
	Error   string
}

const DefaultTimeout = 10 * time.Second

// Registry maps tool names to handlers. It is assembled at startup and
// read-only afterwards, so lookups take no lock.
type Registry struct {
	byName         map[string]Definition
	defaultTimeout time.Duration
	log            *slog.Logger
}

func NewRegistry(log *slog.Logger, defaultTimeout time.Duration) *Registry {
	if log == nil {
		log = slog.Default()
	}
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	return &Registry{
		byName:         make(map[string]Definition),
		defaultTimeout: defaultTimeout,
		log:            log,
	}
}

func (r *Registry) Register(def Definition) error {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %q has no handler", name)
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("tool %q is already registered", name)
	}
	if def.InputSchema == nil {
		def.InputSchema = map[string]any{"type": "object"}
	}
	def.Name = name
	r.byName[name] = def
	return nil
}

// MustRegister is Register for startup wiring, where a duplicate name is a
// programming error.
func (r *Registry) MustRegister(def Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

func (r *Registry) Len() int { return len(r.byName) }

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the registered tools in name order, handlers included.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.byName))
	for _, name := range r.Names() {
		defs = append(defs, r.byName[name])
	}
	return defs
}

// Without returns a registry view missing one tool. The escalation model
// gets the registry without ask_complex_model so it cannot recurse.
func (r *Registry) Without(name string) *Registry {
	out := &Registry{
		byName:         make(map[string]Definition, len(r.byName)),
		defaultTimeout: r.defaultTimeout,
		log:            r.log,
	}
	for n, def := range r.byName {
		if n != name {
			out.byName[n] = def
		}
	}
	return out
}

// Execute runs one tool call to completion. It never returns an error: every
// failure mode (unknown tool, bad input, handler error, panic, timeout)
// becomes a failed Result that the caller reports to the model.
func (r *Registry) Execute(ctx context.Context, name string, input map[string]any) Result {
	def, ok := r.byName[name]
	if !ok {
		return Result{Error: fmt.Sprintf("unknown tool %q", name)}
	}
	if input == nil {
		input = map[string]any{}
	}
	if err := validateInput(def.InputSchema, input); err != nil {
		return Result{Error: err.Error()}
	}

	timeout := def.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("tool handler panicked", "tool", name, "panic", rec)
				done <- outcome{err: fmt.Errorf("tool %q panicked", name)}
			}
		}()
		value, err := def.Handler(ctx, input)
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return Result{Error: out.err.Error()}
		}
		content, err := json.Marshal(out.value)
		if err != nil {
			return Result{Error: fmt.Sprintf("encode tool result: %v", err)}
		}
		return Result{Success: true, Content: string(content)}
	case <-ctx.Done():
		return Result{Error: fmt.Sprintf("tool %q timed out after %s", name, timeout)}
	}
}

// validateInput enforces the required properties of a JSON-schema object.
// Deeper validation is the handler's job.
func validateInput(schema, input map[string]any) error {
	required, _ := schema["required"].([]any)
	for _, raw := range required {
		key, ok := raw.(string)
		if !ok {
			continue
		}
		if _, present := input[key]; !present {
			return fmt.Errorf("missing required input %q", key)
		}
	}
	return nil
}
