// Package sonic implements the event protocol of the upstream
// speech-to-speech model service: a bidirectional stream of JSON events over
// a single WebSocket connection.
package sonic

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Event types, in the order they appear in a session.
const (
	TypeSessionStart    = "sessionStart"
	TypePromptStart     = "promptStart"
	TypeAudioInputStart = "audioInputStart"
	TypeAudioInput      = "audioInput"
	TypeAudioInputEnd   = "audioInputEnd"
	TypeTextOutput      = "textOutput"
	TypeToolUse         = "toolUse"
	TypeToolResult      = "toolResult"
	TypeAudioOutput     = "audioOutput"
	TypeTurnDetected    = "turnDetected"
	TypeSessionEnd      = "sessionEnd"
)

// Sensitivity controls how much trailing silence the model requires before it
// declares end of utterance. Low tolerates long pauses (higher latency, fewer
// premature cutoffs); high commits quickly.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

func (s Sensitivity) Valid() bool {
	switch s {
	case SensitivityLow, SensitivityMedium, SensitivityHigh:
		return true
	}
	return false
}

// Event is one frame of the model protocol.
type Event interface {
	EventType() string
}

type InferenceConfig struct {
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
}

type SessionStart struct {
	Type        string          `json:"type"`
	Inference   InferenceConfig `json:"inference"`
	Sensitivity Sensitivity     `json:"turn_detection_sensitivity"`
}

// ToolSpec registers one callable tool with the model.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type AudioOutputConfig struct {
	SampleRateHz int    `json:"sample_rate_hz"`
	Channels     int    `json:"channels"`
	VoiceID      string `json:"voice_id"`
}

type PromptStart struct {
	Type     string            `json:"type"`
	System   string            `json:"system,omitempty"`
	Tools    []ToolSpec        `json:"tools,omitempty"`
	AudioOut AudioOutputConfig `json:"audio_out"`
}

type AudioInputStart struct {
	Type string `json:"type"`
}

type AudioInput struct {
	Type  string `json:"type"`
	Audio string `json:"audio"` // base64 pcm_s16le
}

type AudioInputEnd struct {
	Type string `json:"type"`
}

type TextOutput struct {
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ToolUse struct {
	Type      string         `json:"type"`
	ToolUseID string         `json:"tool_use_id"`
	Name      string         `json:"name"`
	Input     map[string]any `json:"input"`
}

type ToolResult struct {
	Type      string `json:"type"`
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

type AudioOutput struct {
	Type  string `json:"type"`
	Audio string `json:"audio"` // base64 pcm_s16le
}

type TurnDetected struct {
	Type        string `json:"type"`
	Interrupted bool   `json:"interrupted"`
}

type SessionEnd struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

func (SessionStart) EventType() string    { return TypeSessionStart }
func (PromptStart) EventType() string     { return TypePromptStart }
func (AudioInputStart) EventType() string { return TypeAudioInputStart }
func (AudioInput) EventType() string      { return TypeAudioInput }
func (AudioInputEnd) EventType() string   { return TypeAudioInputEnd }
func (TextOutput) EventType() string      { return TypeTextOutput }
func (ToolUse) EventType() string         { return TypeToolUse }
func (ToolResult) EventType() string      { return TypeToolResult }
func (AudioOutput) EventType() string     { return TypeAudioOutput }
func (TurnDetected) EventType() string    { return TypeTurnDetected }
func (SessionEnd) EventType() string      { return TypeSessionEnd }

// EncodeEvent serializes an event, stamping its type discriminator.
func EncodeEvent(ev Event) ([]byte, error) {
	if ev == nil {
		return nil, fmt.Errorf("event is required")
	}
	switch e := ev.(type) {
	case SessionStart:
		e.Type = TypeSessionStart
		return json.Marshal(e)
	case PromptStart:
		e.Type = TypePromptStart
		return json.Marshal(e)
	case AudioInputStart:
		e.Type = TypeAudioInputStart
		return json.Marshal(e)
	case AudioInput:
		e.Type = TypeAudioInput
		return json.Marshal(e)
	case AudioInputEnd:
		e.Type = TypeAudioInputEnd
		return json.Marshal(e)
	case TextOutput:
		e.Type = TypeTextOutput
		return json.Marshal(e)
	case ToolUse:
		e.Type = TypeToolUse
		return json.Marshal(e)
	case ToolResult:
		e.Type = TypeToolResult
		return json.Marshal(e)
	case AudioOutput:
		e.Type = TypeAudioOutput
		return json.Marshal(e)
	case TurnDetected:
		e.Type = TypeTurnDetected
		return json.Marshal(e)
	case SessionEnd:
		e.Type = TypeSessionEnd
		return json.Marshal(e)
	default:
		return nil, fmt.Errorf("unsupported event type %T", ev)
	}
}

// DecodeEvent parses one inbound frame. Unknown event types are errors:
// the vocabulary is closed.
func DecodeEvent(data []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("invalid event frame: %w", err)
	}
	typ := strings.TrimSpace(envelope.Type)

	switch typ {
	case TypeSessionStart:
		var ev SessionStart
		return ev, json.Unmarshal(data, &ev)
	case TypePromptStart:
		var ev PromptStart
		return ev, json.Unmarshal(data, &ev)
	case TypeAudioInputStart:
		var ev AudioInputStart
		return ev, json.Unmarshal(data, &ev)
	case TypeAudioInput:
		var ev AudioInput
		return ev, json.Unmarshal(data, &ev)
	case TypeAudioInputEnd:
		var ev AudioInputEnd
		return ev, json.Unmarshal(data, &ev)
	case TypeTextOutput:
		var ev TextOutput
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		if ev.Role != "user" && ev.Role != "assistant" {
			return nil, fmt.Errorf("textOutput.role must be user or assistant, got %q", ev.Role)
		}
		return ev, nil
	case TypeToolUse:
		var ev ToolUse
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		if strings.TrimSpace(ev.ToolUseID) == "" {
			return nil, fmt.Errorf("toolUse.tool_use_id is required")
		}
		if strings.TrimSpace(ev.Name) == "" {
			return nil, fmt.Errorf("toolUse.name is required")
		}
		return ev, nil
	case TypeToolResult:
		var ev ToolResult
		return ev, json.Unmarshal(data, &ev)
	case TypeAudioOutput:
		var ev AudioOutput
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		if strings.TrimSpace(ev.Audio) == "" {
			return nil, fmt.Errorf("audioOutput.audio is required")
		}
		return ev, nil
	case TypeTurnDetected:
		var ev TurnDetected
		return ev, json.Unmarshal(data, &ev)
	case TypeSessionEnd:
		var ev SessionEnd
		return ev, json.Unmarshal(data, &ev)
	case "":
		return nil, fmt.Errorf("event is missing type")
	default:
		return nil, fmt.Errorf("unknown event type %q", typ)
	}
}
