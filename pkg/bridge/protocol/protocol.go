package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Client message types.
const (
	TypeAudioStart = "audio_start"
	TypeAudio      = "audio"
	TypeAudioEnd   = "audio_end"
	TypeClose      = "close"
	TypeReset      = "reset"
)

// Server message types.
const (
	TypeReady          = "ready"
	TypeTranscript     = "transcript"
	TypeToolUse        = "tool_use"
	TypeToolResult     = "tool_result"
	TypeTurnDetected   = "turn_detected"
	TypeError          = "error"
	TypeResetConfirmed = "reset_confirmed"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

type ClientAudioStart struct {
	Type string `json:"type"`
}

type ClientAudio struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

type ClientAudioEnd struct {
	Type string `json:"type"`
}

type ClientClose struct {
	Type string `json:"type"`
}

type ClientReset struct {
	Type string `json:"type"`
}

// DecodeClientMessage parses one inbound browser frame into its concrete
// message type. Unknown or malformed frames are decode errors, never
// silently dropped.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case TypeAudioStart:
		return ClientAudioStart{Type: typ}, nil
	case TypeAudio:
		var msg ClientAudio
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid audio frame", "")
		}
		if strings.TrimSpace(msg.Data) == "" {
			return nil, badRequest("audio.data is required", "data")
		}
		return msg, nil
	case TypeAudioEnd:
		return ClientAudioEnd{Type: typ}, nil
	case TypeClose:
		return ClientClose{Type: typ}, nil
	case TypeReset:
		return ClientReset{Type: typ}, nil
	default:
		return nil, badRequest("unsupported message type", "type")
	}
}

type ServerReady struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
}

type ServerAudio struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

type ServerTranscript struct {
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ServerToolUse struct {
	Type string `json:"type"`
	Tool string `json:"tool"`
}

type ServerToolResult struct {
	Type    string `json:"type"`
	Tool    string `json:"tool,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type ServerTurnDetected struct {
	Type        string `json:"type"`
	Interrupted bool   `json:"interrupted"`
}

type ServerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ServerResetConfirmed struct {
	Type string `json:"type"`
}

// Frame builders. The structs marshal without error, so these return the
// encoded frame directly.

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func ReadyFrame(sessionID string) []byte {
	return mustJSON(ServerReady{Type: TypeReady, SessionID: sessionID})
}

func AudioFrame(data string) []byte {
	return mustJSON(ServerAudio{Type: TypeAudio, Data: data})
}

func TranscriptFrame(role, content string) []byte {
	return mustJSON(ServerTranscript{Type: TypeTranscript, Role: role, Content: content})
}

func ToolUseFrame(tool string) []byte {
	return mustJSON(ServerToolUse{Type: TypeToolUse, Tool: tool})
}

func ToolResultFrame(tool string, success bool, errMsg string) []byte {
	return mustJSON(ServerToolResult{Type: TypeToolResult, Tool: tool, Success: success, Error: errMsg})
}

func TurnDetectedFrame(interrupted bool) []byte {
	return mustJSON(ServerTurnDetected{Type: TypeTurnDetected, Interrupted: interrupted})
}

func ErrorFrame(message string) []byte {
	return mustJSON(ServerError{Type: TypeError, Message: message})
}

func ResetConfirmedFrame() []byte {
	return mustJSON(ServerResetConfirmed{Type: TypeResetConfirmed})
}
