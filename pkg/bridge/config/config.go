// Package config loads bridge configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/voxbridge/voxbridge/pkg/bridge/sonic"
)

type Config struct {
	Addr string

	// Speech model endpoint.
	SonicURL              string
	SonicAPIKey           string
	SonicHandshakeTimeout time.Duration
	SonicWriteTimeout     time.Duration
	SonicEventBuffer      int

	// Session voice parameters.
	VoiceID      string
	Sensitivity  sonic.Sensitivity
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	InputRateHz  int
	OutputRateHz int

	// Conversation budget.
	CeilingTokens    int
	FloorTokens      int
	TriggerTokens    int
	SummaryMaxTokens int

	// Text model used for summarization and ask_complex_model. Escalation is
	// disabled when the URL is empty.
	TextModelURL     string
	TextModelName    string
	TextModelAPIKey  string
	TextModelTimeout time.Duration

	EscalationMaxIterations int
	EscalationMaxTokens     int
	ToolTimeout             time.Duration

	// Session timing.
	IdleTimeout  time.Duration
	DrainConfirm time.Duration
	PingInterval time.Duration
	WriteTimeout time.Duration
	ReadTimeout  time.Duration

	// Inbound audio limits.
	MaxAudioFPS            int
	MaxAudioBytesPerSecond int64
	InboundBurstSeconds    int
	MaxJSONMessageBytes    int64
	OutboundQueueSize      int

	// Transcript archive. Empty path disables archiving.
	ArchivePath string

	// HTTP server.
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                    envOr("VOX_ADDR", ":8080"),
		SonicURL:                envOr("VOX_SONIC_URL", ""),
		SonicAPIKey:             envOr("VOX_SONIC_API_KEY", ""),
		SonicHandshakeTimeout:   envDurationOr("VOX_SONIC_HANDSHAKE_TIMEOUT", 5*time.Second),
		SonicWriteTimeout:       envDurationOr("VOX_SONIC_WRITE_TIMEOUT", 5*time.Second),
		SonicEventBuffer:        envIntOr("VOX_SONIC_EVENT_BUFFER", 256),
		VoiceID:                 envOr("VOX_VOICE_ID", "tiffany"),
		Sensitivity:             sonic.Sensitivity(envOr("VOX_TURN_SENSITIVITY", string(sonic.SensitivityMedium))),
		SystemPrompt:            envOr("VOX_SYSTEM_PROMPT", ""),
		MaxTokens:               envIntOr("VOX_INFERENCE_MAX_TOKENS", 1024),
		Temperature:             envFloat64Or("VOX_INFERENCE_TEMPERATURE", 0.7),
		InputRateHz:             envIntOr("VOX_AUDIO_IN_RATE_HZ", 16000),
		OutputRateHz:            envIntOr("VOX_AUDIO_OUT_RATE_HZ", 24000),
		CeilingTokens:           envIntOr("VOX_CONTEXT_CEILING_TOKENS", 8000),
		FloorTokens:             envIntOr("VOX_CONTEXT_FLOOR_TOKENS", 2000),
		TriggerTokens:           envIntOr("VOX_CONTEXT_TRIGGER_TOKENS", 6000),
		SummaryMaxTokens:        envIntOr("VOX_SUMMARY_MAX_TOKENS", 500),
		TextModelURL:            envOr("VOX_TEXT_MODEL_URL", ""),
		TextModelName:           envOr("VOX_TEXT_MODEL_NAME", ""),
		TextModelAPIKey:         envOr("VOX_TEXT_MODEL_API_KEY", ""),
		TextModelTimeout:        envDurationOr("VOX_TEXT_MODEL_TIMEOUT", 60*time.Second),
		EscalationMaxIterations: envIntOr("VOX_ESCALATION_MAX_ITERATIONS", 5),
		EscalationMaxTokens:     envIntOr("VOX_ESCALATION_MAX_TOKENS", 2048),
		ToolTimeout:             envDurationOr("VOX_TOOL_TIMEOUT", 10*time.Second),
		IdleTimeout:             envDurationOr("VOX_IDLE_TIMEOUT", 2*time.Minute),
		DrainConfirm:            envDurationOr("VOX_DRAIN_CONFIRM", 300*time.Millisecond),
		PingInterval:            envDurationOr("VOX_WS_PING_INTERVAL", 20*time.Second),
		WriteTimeout:            envDurationOr("VOX_WS_WRITE_TIMEOUT", 5*time.Second),
		ReadTimeout:             envDurationOr("VOX_WS_READ_TIMEOUT", 0),
		MaxAudioFPS:             envIntOr("VOX_MAX_AUDIO_FPS", 120),
		MaxAudioBytesPerSecond:  envInt64Or("VOX_MAX_AUDIO_BPS", 128*1024),
		InboundBurstSeconds:     envIntOr("VOX_INBOUND_BURST_SECONDS", 2),
		MaxJSONMessageBytes:     envInt64Or("VOX_MAX_JSON_MESSAGE_BYTES", 128*1024),
		OutboundQueueSize:       envIntOr("VOX_OUTBOUND_QUEUE_SIZE", 128),
		ArchivePath:             envOr("VOX_ARCHIVE_PATH", ""),
		ReadHeaderTimeout:       envDurationOr("VOX_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod:     envDurationOr("VOX_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	if strings.TrimSpace(cfg.SonicURL) == "" {
		return Config{}, fmt.Errorf("VOX_SONIC_URL must be set")
	}
	if !cfg.Sensitivity.Valid() {
		return Config{}, fmt.Errorf("VOX_TURN_SENSITIVITY must be one of low|medium|high")
	}
	if cfg.MaxTokens <= 0 {
		return Config{}, fmt.Errorf("VOX_INFERENCE_MAX_TOKENS must be > 0")
	}
	if cfg.InputRateHz <= 0 {
		return Config{}, fmt.Errorf("VOX_AUDIO_IN_RATE_HZ must be > 0")
	}
	if cfg.OutputRateHz <= 0 {
		return Config{}, fmt.Errorf("VOX_AUDIO_OUT_RATE_HZ must be > 0")
	}
	if cfg.CeilingTokens <= 0 || cfg.FloorTokens <= 0 || cfg.TriggerTokens <= 0 {
		return Config{}, fmt.Errorf("VOX_CONTEXT_*_TOKENS must all be > 0")
	}
	if cfg.FloorTokens >= cfg.TriggerTokens {
		return Config{}, fmt.Errorf("VOX_CONTEXT_FLOOR_TOKENS must be < VOX_CONTEXT_TRIGGER_TOKENS")
	}
	if cfg.TriggerTokens >= cfg.CeilingTokens {
		return Config{}, fmt.Errorf("VOX_CONTEXT_TRIGGER_TOKENS must be < VOX_CONTEXT_CEILING_TOKENS")
	}
	if cfg.SummaryMaxTokens <= 0 {
		return Config{}, fmt.Errorf("VOX_SUMMARY_MAX_TOKENS must be > 0")
	}
	if cfg.EscalationMaxIterations <= 0 {
		return Config{}, fmt.Errorf("VOX_ESCALATION_MAX_ITERATIONS must be > 0")
	}
	if cfg.ToolTimeout <= 0 {
		return Config{}, fmt.Errorf("VOX_TOOL_TIMEOUT must be > 0")
	}
	if cfg.IdleTimeout <= 0 {
		return Config{}, fmt.Errorf("VOX_IDLE_TIMEOUT must be > 0")
	}
	if cfg.DrainConfirm <= 0 {
		return Config{}, fmt.Errorf("VOX_DRAIN_CONFIRM must be > 0")
	}
	if cfg.PingInterval <= 0 {
		return Config{}, fmt.Errorf("VOX_WS_PING_INTERVAL must be > 0")
	}
	if cfg.WriteTimeout <= 0 {
		return Config{}, fmt.Errorf("VOX_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout < 0 {
		return Config{}, fmt.Errorf("VOX_WS_READ_TIMEOUT must be >= 0")
	}
	if cfg.MaxAudioFPS < 0 {
		return Config{}, fmt.Errorf("VOX_MAX_AUDIO_FPS must be >= 0")
	}
	if cfg.MaxAudioBytesPerSecond < 0 {
		return Config{}, fmt.Errorf("VOX_MAX_AUDIO_BPS must be >= 0")
	}
	if (cfg.MaxAudioFPS > 0 || cfg.MaxAudioBytesPerSecond > 0) && cfg.InboundBurstSeconds < 1 {
		return Config{}, fmt.Errorf("VOX_INBOUND_BURST_SECONDS must be >= 1 when inbound audio limits are enabled")
	}
	if cfg.MaxJSONMessageBytes <= 0 {
		return Config{}, fmt.Errorf("VOX_MAX_JSON_MESSAGE_BYTES must be > 0")
	}
	if cfg.OutboundQueueSize <= 0 {
		return Config{}, fmt.Errorf("VOX_OUTBOUND_QUEUE_SIZE must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("VOX_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("VOX_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
