package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/voxbridge/voxbridge/pkg/bridge/config"
	"github.com/voxbridge/voxbridge/pkg/bridge/convo"
	"github.com/voxbridge/voxbridge/pkg/bridge/metrics"
	"github.com/voxbridge/voxbridge/pkg/bridge/sessions"
	"github.com/voxbridge/voxbridge/pkg/bridge/sonic"
	"github.com/voxbridge/voxbridge/pkg/bridge/tools"
)

type noDialer struct{}

func (noDialer) DialSession(context.Context) (sonic.Stream, error) {
	return nil, context.Canceled
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	registry := tools.NewRegistry(nil, 0)
	if err := tools.RegisterBuiltins(registry); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	cfg := config.Config{
		SonicURL:         "ws://unused",
		Sensitivity:      sonic.SensitivityMedium,
		MaxTokens:        1024,
		CeilingTokens:    8000,
		FloorTokens:      2000,
		TriggerTokens:    6000,
		SummaryMaxTokens: 500,
		IdleTimeout:      time.Minute,
		DrainConfirm:     100 * time.Millisecond,
		WriteTimeout:     time.Second,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, logger, Dependencies{
		Upstream:  noDialer{},
		Tools:     registry,
		Metrics:   metrics.New(),
		Sessions:  sessions.NewTracker(),
		Summarize: convo.NewTruncationSummarizer(500),
	})
}

func TestRoutes(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/healthz status=%d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Request-ID"); got == "" {
		t.Fatal("missing X-Request-ID header")
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "voxbridge_sessions_started_total") {
		t.Fatalf("metrics output missing bridge counters:\n%.300s", body)
	}
}

func TestVoiceRouteRequiresWebSocket(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/voice")
	if err != nil {
		t.Fatalf("GET /v1/voice: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Fatal("plain GET to the voice endpoint succeeded")
	}
}
