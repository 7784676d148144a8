package config

import (
	"testing"
	"time"
)

func setBase(t *testing.T) {
	t.Helper()
	t.Setenv("VOX_SONIC_URL", "ws://localhost:9090/sonic")
}

func TestLoadDefaults(t *testing.T) {
	setBase(t)
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("Addr=%q", cfg.Addr)
	}
	if cfg.InputRateHz != 16000 || cfg.OutputRateHz != 24000 {
		t.Fatalf("rates=%d/%d", cfg.InputRateHz, cfg.OutputRateHz)
	}
	if cfg.CeilingTokens != 8000 || cfg.FloorTokens != 2000 || cfg.TriggerTokens != 6000 {
		t.Fatalf("budget=%d/%d/%d", cfg.FloorTokens, cfg.TriggerTokens, cfg.CeilingTokens)
	}
	if cfg.DrainConfirm != 300*time.Millisecond {
		t.Fatalf("DrainConfirm=%v", cfg.DrainConfirm)
	}
	if cfg.EscalationMaxIterations != 5 {
		t.Fatalf("EscalationMaxIterations=%d", cfg.EscalationMaxIterations)
	}
}

func TestLoadOverrides(t *testing.T) {
	setBase(t)
	t.Setenv("VOX_ADDR", ":9999")
	t.Setenv("VOX_TURN_SENSITIVITY", "high")
	t.Setenv("VOX_IDLE_TIMEOUT", "30s")
	t.Setenv("VOX_MAX_AUDIO_FPS", "50")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("Addr=%q", cfg.Addr)
	}
	if string(cfg.Sensitivity) != "high" {
		t.Fatalf("Sensitivity=%q", cfg.Sensitivity)
	}
	if cfg.IdleTimeout != 30*time.Second {
		t.Fatalf("IdleTimeout=%v", cfg.IdleTimeout)
	}
	if cfg.MaxAudioFPS != 50 {
		t.Fatalf("MaxAudioFPS=%d", cfg.MaxAudioFPS)
	}
}

func TestLoadRequiresSonicURL(t *testing.T) {
	t.Setenv("VOX_SONIC_URL", "")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("missing sonic url accepted")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"VOX_TURN_SENSITIVITY":       "extreme",
		"VOX_CONTEXT_FLOOR_TOKENS":   "7000",
		"VOX_CONTEXT_TRIGGER_TOKENS": "9000",
		"VOX_DRAIN_CONFIRM":          "-1s",
		"VOX_INBOUND_BURST_SECONDS":  "0",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			setBase(t)
			t.Setenv(key, value)
			if _, err := LoadFromEnv(); err == nil {
				t.Fatalf("%s=%s accepted", key, value)
			}
		})
	}
}

func TestMalformedNumbersFallBackToDefaults(t *testing.T) {
	setBase(t)
	t.Setenv("VOX_INFERENCE_MAX_TOKENS", "not-a-number")
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.MaxTokens != 1024 {
		t.Fatalf("MaxTokens=%d, want default 1024", cfg.MaxTokens)
	}
}
