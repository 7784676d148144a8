// Package handlers holds the HTTP endpoints of the bridge: the voice
// WebSocket, health, and metrics.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voxbridge/voxbridge/pkg/bridge/config"
	"github.com/voxbridge/voxbridge/pkg/bridge/convo"
	"github.com/voxbridge/voxbridge/pkg/bridge/metrics"
	"github.com/voxbridge/voxbridge/pkg/bridge/session"
	"github.com/voxbridge/voxbridge/pkg/bridge/sessions"
	"github.com/voxbridge/voxbridge/pkg/bridge/sonic"
	"github.com/voxbridge/voxbridge/pkg/bridge/tools"
)

// SummarySink receives successful summaries for archiving.
type SummarySink interface {
	SaveSummary(ctx context.Context, sessionID, content string, turns int) error
}

// VoiceHandler owns the /v1/voice WebSocket endpoint. Every accepted
// connection becomes one session with its own conversation manager.
type VoiceHandler struct {
	Config    config.Config
	Logger    *slog.Logger
	Upstream  session.UpstreamDialer
	Tools     *tools.Registry
	Metrics   *metrics.Metrics
	Sessions  *sessions.Tracker
	Summarize convo.SummarizeFunc
	Archive   session.TranscriptArchive
	Summaries SummarySink
}

func (h VoiceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()

	manager, err := convo.New(convo.Config{
		Limits: convo.Limits{
			CeilingTokens:    h.Config.CeilingTokens,
			FloorTokens:      h.Config.FloorTokens,
			TriggerTokens:    h.Config.TriggerTokens,
			SummaryMaxTokens: h.Config.SummaryMaxTokens,
		},
		Summarize: h.countedSummarize(),
		Log:       logger.With("session_id", sessionID),
		OnSummary: h.onSummary(sessionID, logger),
	})
	if err != nil {
		logger.Error("conversation manager init failed", "error", err)
		return
	}

	sess, err := session.New(session.Dependencies{
		Conn:      conn,
		Log:       logger,
		Upstream:  h.Upstream,
		Tools:     h.Tools,
		Convo:     manager,
		Metrics:   h.Metrics,
		Archive:   h.Archive,
		SessionID: sessionID,
		Config: session.Config{
			System:                 h.Config.SystemPrompt,
			VoiceID:                h.Config.VoiceID,
			Sensitivity:            h.Config.Sensitivity,
			Inference:              sonic.InferenceConfig{MaxTokens: h.Config.MaxTokens, Temperature: h.Config.Temperature},
			InputRateHz:            h.Config.InputRateHz,
			OutputRateHz:           h.Config.OutputRateHz,
			IdleTimeout:            h.Config.IdleTimeout,
			DrainConfirm:           h.Config.DrainConfirm,
			PingInterval:           h.Config.PingInterval,
			WriteTimeout:           h.Config.WriteTimeout,
			ReadTimeout:            h.Config.ReadTimeout,
			MaxAudioFPS:            h.Config.MaxAudioFPS,
			MaxAudioBytesPerSecond: h.Config.MaxAudioBytesPerSecond,
			InboundBurstSeconds:    h.Config.InboundBurstSeconds,
			MaxJSONMessageBytes:    h.Config.MaxJSONMessageBytes,
			OutboundQueueSize:      h.Config.OutboundQueueSize,
		},
	})
	if err != nil {
		logger.Error("session init failed", "error", err)
		return
	}

	if h.Sessions != nil {
		unregister := h.Sessions.Register(sessionID, sessions.Handle{
			Cancel: sess.Cancel,
			Notify: sess.Notify,
		})
		defer unregister()
	}

	if err := sess.Run(); err != nil {
		logger.Warn("session ended with error", "session_id", sessionID, "error", err)
	}
}

// countedSummarize wraps the configured summarizer with outcome metrics.
func (h VoiceHandler) countedSummarize() convo.SummarizeFunc {
	summarize := h.Summarize
	return func(ctx context.Context, prior string, msgs []convo.Message) (string, error) {
		out, err := summarize(ctx, prior, msgs)
		h.Metrics.Summarization(err == nil && out != "")
		return out, err
	}
}

func (h VoiceHandler) onSummary(sessionID string, logger *slog.Logger) func(convo.Summary) {
	if h.Summaries == nil {
		return nil
	}
	return func(s convo.Summary) {
		if err := h.Summaries.SaveSummary(context.Background(), sessionID, s.Content, s.Turns); err != nil {
			logger.Warn("archive summary failed", "session_id", sessionID, "error", err)
		}
	}
}
