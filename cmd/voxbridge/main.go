package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/voxbridge/voxbridge/pkg/bridge/config"
	"github.com/voxbridge/voxbridge/pkg/bridge/convo"
	"github.com/voxbridge/voxbridge/pkg/bridge/llm"
	"github.com/voxbridge/voxbridge/pkg/bridge/metrics"
	bridgeserver "github.com/voxbridge/voxbridge/pkg/bridge/server"
	"github.com/voxbridge/voxbridge/pkg/bridge/sessions"
	"github.com/voxbridge/voxbridge/pkg/bridge/sonic"
	"github.com/voxbridge/voxbridge/pkg/bridge/store"
	"github.com/voxbridge/voxbridge/pkg/bridge/tools"
)

type bridgeDeps struct {
	loadConfig   func() (config.Config, error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultBridgeDeps() bridgeDeps {
	return bridgeDeps{
		loadConfig: config.LoadFromEnv,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

// buildComponents wires the registry, models, and archive from config.
func buildComponents(cfg config.Config, logger *slog.Logger) (bridgeserver.Dependencies, func(), error) {
	registry := tools.NewRegistry(logger, cfg.ToolTimeout)
	if err := tools.RegisterBuiltins(registry); err != nil {
		return bridgeserver.Dependencies{}, nil, fmt.Errorf("register builtin tools: %w", err)
	}

	var provider llm.Provider
	if cfg.TextModelURL != "" {
		provider = &llm.HTTPProvider{
			URL:     cfg.TextModelURL,
			Model:   cfg.TextModelName,
			APIKey:  cfg.TextModelAPIKey,
			Timeout: cfg.TextModelTimeout,
		}
		escalator := &tools.Escalator{
			Provider:      provider,
			MaxIterations: cfg.EscalationMaxIterations,
			MaxTokens:     cfg.EscalationMaxTokens,
			Log:           logger,
		}
		if err := tools.RegisterAskComplexModel(registry, escalator); err != nil {
			return bridgeserver.Dependencies{}, nil, fmt.Errorf("register escalation tool: %w", err)
		}
	} else {
		logger.Warn("no text model configured, escalation tool disabled")
	}

	summarize := convo.NewTruncationSummarizer(cfg.SummaryMaxTokens)
	if provider != nil {
		summarize = convo.NewLLMSummarizer(provider, cfg.SummaryMaxTokens)
	}

	deps := bridgeserver.Dependencies{
		Upstream: sonic.Dialer{
			URL:              cfg.SonicURL,
			Header:           sonicHeader(cfg),
			HandshakeTimeout: cfg.SonicHandshakeTimeout,
			WriteTimeout:     cfg.SonicWriteTimeout,
			EventBuffer:      cfg.SonicEventBuffer,
		},
		Tools:     registry,
		Metrics:   metrics.New(),
		Sessions:  sessions.NewTracker(),
		Summarize: summarize,
	}

	cleanup := func() {}
	if cfg.ArchivePath != "" {
		archive, err := store.Open(cfg.ArchivePath)
		if err != nil {
			return bridgeserver.Dependencies{}, nil, fmt.Errorf("open archive: %w", err)
		}
		deps.Archive = archive
		deps.Summaries = archive
		cleanup = func() { _ = archive.Close() }
	}
	return deps, cleanup, nil
}

func sonicHeader(cfg config.Config) http.Header {
	if cfg.SonicAPIKey == "" {
		return nil
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.SonicAPIKey)
	return header
}

func runBridge(ctx context.Context, logger *slog.Logger, deps bridgeDeps) error {
	if deps.loadConfig == nil {
		return errors.New("missing loadConfig dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	components, cleanup, err := buildComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := bridgeserver.New(cfg, logger, components)
	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	logger.Info("starting voice bridge", "addr", cfg.Addr, "sonic_url", cfg.SonicURL)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	components.Sessions.NotifyAll("bridge is shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer waitCancel()
	if !components.Sessions.Wait(waitCtx) {
		components.Sessions.CancelAll()
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("bridge stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps bridgeDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "voxbridge: load .env: %v\n", err)
		return 1
	}

	if err := runBridge(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "voxbridge: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultBridgeDeps()))
}
