package tools

import (
	"context"
	"fmt"
	"time"
)

// RegisterBuiltins installs the tools every bridge deployment carries.
func RegisterBuiltins(r *Registry) error {
	if err := r.Register(getTimeDefinition()); err != nil {
		return err
	}
	return r.Register(echoDefinition())
}

func getTimeDefinition() Definition {
	return Definition{
		Name:        "get_time",
		Description: "Get the current date and time, optionally in a specific IANA timezone.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"timezone": map[string]any{
					"type":        "string",
					"description": "IANA timezone name, e.g. America/New_York. Defaults to UTC.",
				},
			},
		},
		Handler: func(_ context.Context, input map[string]any) (any, error) {
			loc := time.UTC
			if name, _ := input["timezone"].(string); name != "" {
				var err error
				loc, err = time.LoadLocation(name)
				if err != nil {
					return nil, fmt.Errorf("unknown timezone %q", name)
				}
			}
			now := time.Now().In(loc)
			return map[string]any{
				"iso":      now.Format(time.RFC3339),
				"timezone": loc.String(),
				"weekday":  now.Weekday().String(),
			}, nil
		},
	}
}

// echo exists for end-to-end checks of the tool path without external
// dependencies.
func echoDefinition() Definition {
	return Definition{
		Name:        "echo",
		Description: "Return the given text unchanged.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required": []any{"text"},
		},
		Handler: func(_ context.Context, input map[string]any) (any, error) {
			text, _ := input["text"].(string)
			return map[string]any{"text": text}, nil
		},
	}
}
