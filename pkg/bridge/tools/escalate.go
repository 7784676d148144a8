package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voxbridge/voxbridge/pkg/bridge/llm"
)

// AskComplexModelName is the tool the speech model calls to hand a hard
// question to a larger text model.
const AskComplexModelName = "ask_complex_model"

const DefaultMaxIterations = 5

// Escalator answers a question with a text model that may itself call tools.
// Tools must not contain ask_complex_model, so the loop cannot recurse.
type Escalator struct {
	Provider      llm.Provider
	Tools         *Registry
	System        string
	MaxIterations int
	MaxTokens     int
	Log           *slog.Logger
}

// Ask runs the model/tool loop until the model answers in plain text or the
// iteration cap is hit.
func (e *Escalator) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("question is required")
	}
	if e.Provider == nil {
		return "", fmt.Errorf("text model provider is not configured")
	}

	maxIterations := e.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	log := e.Log
	if log == nil {
		log = slog.Default()
	}

	var defs []llm.ToolDef
	if e.Tools != nil {
		for _, def := range e.Tools.Definitions() {
			defs = append(defs, llm.ToolDef{
				Name:        def.Name,
				Description: def.Description,
				InputSchema: def.InputSchema,
			})
		}
	}

	system := e.System
	if transcript, ok := ConversationFrom(ctx); ok {
		if system != "" {
			system += "\n\n"
		}
		system += "Conversation so far:\n" + transcript
	}

	messages := []llm.Message{{Role: llm.RoleUser, Content: question}}
	for i := 0; i < maxIterations; i++ {
		resp, err := e.Provider.CreateMessage(ctx, &llm.Request{
			System:    system,
			Messages:  messages,
			Tools:     defs,
			MaxTokens: e.MaxTokens,
		})
		if err != nil {
			return "", fmt.Errorf("escalation model call: %w", err)
		}
		if len(resp.ToolCalls) == 0 {
			return resp.Text, nil
		}

		if e.Tools == nil {
			return "", fmt.Errorf("escalation model requested tool %q but no tools are available", resp.ToolCalls[0].Name)
		}
		results := make([]llm.ToolCallResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			result := e.Tools.Execute(ctx, call.Name, call.Input)
			log.Debug("escalation tool call",
				"tool", call.Name, "success", result.Success)
			content := result.Content
			if !result.Success {
				content = result.Error
			}
			results = append(results, llm.ToolCallResult{
				ID:      call.ID,
				Content: content,
				IsError: !result.Success,
			})
		}
		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: resp.Text, ToolCalls: resp.ToolCalls},
			llm.Message{Role: llm.RoleUser, ToolResults: results},
		)
	}
	return "", fmt.Errorf("escalation did not converge within %d iterations", maxIterations)
}

// RegisterAskComplexModel wires the escalator into a registry. The escalator
// itself sees the registry without this tool.
func RegisterAskComplexModel(r *Registry, e *Escalator) error {
	if e.Tools == nil {
		e.Tools = r.Without(AskComplexModelName)
	}
	return r.Register(Definition{
		Name:        AskComplexModelName,
		Description: "Ask a larger, slower model a question that needs deeper reasoning. Use only when the question is too hard to answer directly.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question": map[string]any{
					"type":        "string",
					"description": "The full question, with any needed context.",
				},
			},
			"required": []any{"question"},
		},
		// Escalation makes nested model calls, so it gets a longer leash.
		Timeout: 6 * DefaultTimeout,
		Handler: func(ctx context.Context, input map[string]any) (any, error) {
			question, _ := input["question"].(string)
			answer, err := e.Ask(ctx, question)
			if err != nil {
				return nil, err
			}
			return map[string]any{"answer": answer}, nil
		},
	})
}
