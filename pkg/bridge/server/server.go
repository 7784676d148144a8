// Package server assembles the bridge's HTTP surface.
package server

import (
	"log/slog"
	"net/http"

	"github.com/voxbridge/voxbridge/pkg/bridge/config"
	"github.com/voxbridge/voxbridge/pkg/bridge/convo"
	"github.com/voxbridge/voxbridge/pkg/bridge/handlers"
	"github.com/voxbridge/voxbridge/pkg/bridge/metrics"
	"github.com/voxbridge/voxbridge/pkg/bridge/mw"
	"github.com/voxbridge/voxbridge/pkg/bridge/session"
	"github.com/voxbridge/voxbridge/pkg/bridge/sessions"
	"github.com/voxbridge/voxbridge/pkg/bridge/tools"
)

// Dependencies are the wired components the server routes to. Metrics,
// Archive, and Summaries may be nil.
type Dependencies struct {
	Upstream  session.UpstreamDialer
	Tools     *tools.Registry
	Metrics   *metrics.Metrics
	Sessions  *sessions.Tracker
	Summarize convo.SummarizeFunc
	Archive   session.TranscriptArchive
	Summaries handlers.SummarySink
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	deps   Dependencies
	mux    *http.ServeMux
}

func New(cfg config.Config, logger *slog.Logger, deps Dependencies) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		logger: logger,
		deps:   deps,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{Sessions: s.deps.Sessions})
	s.mux.Handle("/metrics", s.deps.Metrics.Handler())
	s.mux.Handle("/v1/voice", handlers.VoiceHandler{
		Config:    s.cfg,
		Logger:    s.logger,
		Upstream:  s.deps.Upstream,
		Tools:     s.deps.Tools,
		Metrics:   s.deps.Metrics,
		Sessions:  s.deps.Sessions,
		Summarize: s.deps.Summarize,
		Archive:   s.deps.Archive,
		Summaries: s.deps.Summaries,
	})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}
