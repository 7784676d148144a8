// Package session runs one browser voice session end to end: inbound
// microphone frames up to the speech model, model events back down, with
// tool execution, conversation context, and barge-in handling in between.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voxbridge/voxbridge/pkg/bridge/audio"
	"github.com/voxbridge/voxbridge/pkg/bridge/convo"
	"github.com/voxbridge/voxbridge/pkg/bridge/metrics"
	"github.com/voxbridge/voxbridge/pkg/bridge/protocol"
	"github.com/voxbridge/voxbridge/pkg/bridge/sonic"
	"github.com/voxbridge/voxbridge/pkg/bridge/tools"
)

const (
	outboundPriorityQueueSize = 8
	defaultOutboundQueueSize  = 128
)

// UpstreamDialer opens a stream to the speech model for one session.
type UpstreamDialer interface {
	DialSession(ctx context.Context) (sonic.Stream, error)
}

// TranscriptArchive persists finished turns. Implementations must tolerate
// concurrent calls; failures are logged and never stop the session.
type TranscriptArchive interface {
	SaveTurn(ctx context.Context, sessionID, role, content string) error
	RecordReset(ctx context.Context, sessionID string) error
}

type Config struct {
	System      string
	VoiceID     string
	Sensitivity sonic.Sensitivity
	Inference   sonic.InferenceConfig

	InputRateHz  int
	OutputRateHz int

	IdleTimeout  time.Duration
	DrainConfirm time.Duration
	PingInterval time.Duration
	WriteTimeout time.Duration
	ReadTimeout  time.Duration

	MaxAudioFPS            int
	MaxAudioBytesPerSecond int64
	InboundBurstSeconds    int
	MaxJSONMessageBytes    int64
	OutboundQueueSize      int
}

type Dependencies struct {
	Conn     *websocket.Conn
	Log      *slog.Logger
	Upstream UpstreamDialer
	Tools    *tools.Registry
	Convo    *convo.Manager
	Metrics  *metrics.Metrics
	Archive  TranscriptArchive

	SessionID string
	Config    Config
	Now       func() time.Time
}

type Session struct {
	conn      *websocket.Conn
	log       *slog.Logger
	upstream  UpstreamDialer
	tools     *tools.Registry
	convo     *convo.Manager
	metrics   *metrics.Metrics
	archive   TranscriptArchive
	sessionID string
	cfg       Config
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	outboundPriority chan outboundFrame
	outboundNormal   chan outboundFrame
	playback         *playbackState

	stateMu sync.Mutex
	state   State
}

type inboundFrame struct {
	data []byte
	err  error
}

type toolOutcome struct {
	toolUseID string
	name      string
	result    tools.Result
}

func New(deps Dependencies) (*Session, error) {
	if deps.Conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	if deps.Upstream == nil {
		return nil, fmt.Errorf("upstream dialer is required")
	}
	if deps.Tools == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if deps.Convo == nil {
		return nil, fmt.Errorf("conversation manager is required")
	}
	if deps.SessionID == "" {
		deps.SessionID = uuid.NewString()
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Config.InputRateHz <= 0 {
		deps.Config.InputRateHz = audio.DefaultInputRateHz
	}
	if deps.Config.OutputRateHz <= 0 {
		deps.Config.OutputRateHz = audio.DefaultOutputRateHz
	}
	if deps.Config.IdleTimeout <= 0 {
		deps.Config.IdleTimeout = 2 * time.Minute
	}
	if deps.Config.DrainConfirm <= 0 {
		deps.Config.DrainConfirm = 300 * time.Millisecond
	}
	if deps.Config.OutboundQueueSize <= 0 {
		deps.Config.OutboundQueueSize = defaultOutboundQueueSize
	}
	if deps.Config.Sensitivity == "" {
		deps.Config.Sensitivity = sonic.SensitivityMedium
	}
	if !deps.Config.Sensitivity.Valid() {
		return nil, fmt.Errorf("invalid turn detection sensitivity %q", deps.Config.Sensitivity)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		conn:             deps.Conn,
		log:              deps.Log.With("session_id", deps.SessionID),
		upstream:         deps.Upstream,
		tools:            deps.Tools,
		convo:            deps.Convo,
		metrics:          deps.Metrics,
		archive:          deps.Archive,
		sessionID:        deps.SessionID,
		cfg:              deps.Config,
		now:              deps.Now,
		ctx:              ctx,
		cancel:           cancel,
		outboundPriority: make(chan outboundFrame, outboundPriorityQueueSize),
		outboundNormal:   make(chan outboundFrame, deps.Config.OutboundQueueSize),
		playback:         newPlaybackState(),
		state:            StateIdle,
	}, nil
}

func (s *Session) ID() string { return s.sessionID }

func (s *Session) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// Cancel tears the session down from outside the loop.
func (s *Session) Cancel() { s.cancel() }

// Notify pushes an error frame to the browser, for shutdown warnings.
func (s *Session) Notify(message string) error {
	return s.sendPriority(protocol.ErrorFrame(message))
}

func (s *Session) setState(to State) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.state == to {
		return nil
	}
	if err := checkTransition(s.state, to); err != nil {
		return err
	}
	s.log.Debug("session state", "from", string(s.state), "to", string(to))
	s.state = to
	return nil
}

// Run drives the session until the browser disconnects, the upstream ends,
// or the idle timeout fires. It blocks for the session's lifetime.
func (s *Session) Run() error {
	defer s.cancel()

	s.metrics.SessionStarted()
	closeReason := "error"
	defer func() { s.metrics.SessionClosed(closeReason) }()

	if s.cfg.MaxJSONMessageBytes > 0 {
		s.conn.SetReadLimit(s.cfg.MaxJSONMessageBytes)
	}
	if s.cfg.ReadTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		})
	}

	writerErrCh := make(chan error, 1)
	go func() {
		w := outboundWriter{
			ws:           s.conn,
			ctx:          s.ctx,
			priority:     s.outboundPriority,
			normal:       s.outboundNormal,
			pingInterval: s.cfg.PingInterval,
			writeTimeout: s.cfg.WriteTimeout,
			isCanceled:   s.playback.isCanceled,
			onAudioDone:  s.playback.frameDone,
		}
		writerErrCh <- w.Run()
		close(writerErrCh)
	}()

	readCh := make(chan inboundFrame, 64)
	go s.readLoop(readCh)

	if err := s.setState(StateConnecting); err != nil {
		return err
	}
	upstream, err := s.upstream.DialSession(s.ctx)
	if err != nil {
		s.metrics.UpstreamError()
		_ = s.sendPriority(protocol.ErrorFrame("speech model unavailable"))
		_ = s.setState(StateClosed)
		return fmt.Errorf("dial upstream: %w", err)
	}
	defer upstream.Close()

	if err := s.startUpstream(upstream); err != nil {
		s.metrics.UpstreamError()
		_ = s.sendPriority(protocol.ErrorFrame("speech model unavailable"))
		_ = s.setState(StateClosed)
		return err
	}
	if err := s.setState(StateListening); err != nil {
		return err
	}
	if err := s.sendPriority(protocol.ReadyFrame(s.sessionID)); err != nil {
		return err
	}

	limiter := newMicLimiter(s.now, s.cfg.MaxAudioFPS, s.cfg.MaxAudioBytesPerSecond, s.cfg.InboundBurstSeconds)
	toolResultCh := make(chan toolOutcome, 8)

	var wg sync.WaitGroup
	defer wg.Wait()

	idleTimer := time.NewTimer(s.cfg.IdleTimeout)
	defer idleTimer.Stop()
	drainTimer := time.NewTimer(time.Hour)
	stopTimer(drainTimer)
	defer drainTimer.Stop()

	var (
		drainSawEmpty   bool
		drainLastVer    uint64
		runErr          error
		clientRequested bool
		// suppressAudio holds off audioOutput after a barge-in until the next
		// turn boundary, so an aborted turn's residual chunks cannot open a
		// fresh speaking turn.
		suppressAudio bool
	)

	touchIdle := func() {
		resetTimer(idleTimer, s.cfg.IdleTimeout)
	}
	startDrainWatch := func() {
		drainSawEmpty = false
		resetTimer(drainTimer, s.cfg.DrainConfirm)
	}

loop:
	for {
		select {
		case <-s.ctx.Done():
			closeReason = "canceled"
			break loop

		case err, ok := <-writerErrCh:
			if ok && err != nil {
				runErr = fmt.Errorf("browser write: %w", err)
			}
			closeReason = "client_gone"
			break loop

		case frame, ok := <-readCh:
			if !ok {
				closeReason = "client_gone"
				break loop
			}
			touchIdle()
			if frame.err != nil {
				runErr = frame.err
				closeReason = "client_gone"
				break loop
			}
			msg, err := protocol.DecodeClientMessage(frame.data)
			if err != nil {
				_ = s.sendPriority(protocol.ErrorFrame(err.Error()))
				continue
			}
			switch m := msg.(type) {
			case protocol.ClientAudioStart:
				if s.State() != StateListening {
					continue
				}
				if err := upstream.Send(sonic.AudioInputStart{}); err != nil {
					runErr = err
					closeReason = "upstream_gone"
					break loop
				}

			case protocol.ClientAudio:
				// Mic audio keeps flowing while the assistant is thinking or
				// talking; the model needs it to detect a barge-in.
				switch s.State() {
				case StateListening, StateProcessing, StateSpeaking:
				default:
					continue
				}
				pcm, err := audio.DecodeFrame(m.Data, s.cfg.InputRateHz)
				if err != nil {
					_ = s.sendPriority(protocol.ErrorFrame("invalid audio frame"))
					continue
				}
				if !limiter.Allow(len(pcm)) {
					s.metrics.AudioFrameDropped()
					continue
				}
				s.metrics.AudioFrameIn(len(pcm))
				if err := upstream.Send(sonic.AudioInput{Audio: m.Data}); err != nil {
					runErr = err
					closeReason = "upstream_gone"
					break loop
				}

			case protocol.ClientAudioEnd:
				if s.State() != StateListening {
					continue
				}
				if err := upstream.Send(sonic.AudioInputEnd{}); err != nil {
					runErr = err
					closeReason = "upstream_gone"
					break loop
				}
				if err := s.setState(StateProcessing); err != nil {
					runErr = err
					break loop
				}
				suppressAudio = false
				stopTimer(drainTimer)

			case protocol.ClientReset:
				s.handleReset(&wg)
				stopTimer(drainTimer)
				if s.State() != StateListening {
					if err := s.setState(StateListening); err != nil {
						runErr = err
						break loop
					}
				}
				if err := s.sendPriority(protocol.ResetConfirmedFrame()); err != nil {
					runErr = err
					break loop
				}

			case protocol.ClientClose:
				clientRequested = true
				closeReason = "client"
				break loop
			}

		case ev, ok := <-upstream.Events():
			if !ok {
				if err := upstream.Err(); err != nil {
					s.metrics.UpstreamError()
					runErr = fmt.Errorf("upstream stream: %w", err)
					_ = s.sendPriority(protocol.ErrorFrame("speech model connection lost"))
				}
				closeReason = "upstream_gone"
				break loop
			}
			switch e := ev.(type) {
			case sonic.TextOutput:
				if err := s.sendPriority(protocol.TranscriptFrame(e.Role, e.Content)); err != nil {
					runErr = err
					break loop
				}
				role := convo.RoleUser
				if e.Role == "assistant" {
					role = convo.RoleAssistant
				}
				s.convo.Append(s.ctx, role, e.Content)
				s.archiveTurn(&wg, e.Role, e.Content)

			case sonic.ToolUse:
				if err := s.sendPriority(protocol.ToolUseFrame(e.Name)); err != nil {
					runErr = err
					break loop
				}
				execCtx := s.ctx
				if snapshot := s.conversationSnapshot(); snapshot != "" {
					execCtx = tools.WithConversation(s.ctx, snapshot)
				}
				wg.Add(1)
				go func(ctx context.Context, call sonic.ToolUse) {
					defer wg.Done()
					result := s.tools.Execute(ctx, call.Name, call.Input)
					select {
					case toolResultCh <- toolOutcome{toolUseID: call.ToolUseID, name: call.Name, result: result}:
					case <-s.ctx.Done():
					}
				}(execCtx, e)

			case sonic.AudioOutput:
				if suppressAudio {
					continue
				}
				state := s.State()
				if state == StateProcessing {
					turnID := uuid.NewString()
					s.playback.beginTurn(turnID)
					if err := s.setState(StateSpeaking); err != nil {
						runErr = err
						break loop
					}
					startDrainWatch()
				} else if state != StateSpeaking {
					// Residual audio from a canceled turn.
					continue
				}
				s.playback.enqueue()
				drainSawEmpty = false
				s.metrics.AudioFrameOut()
				frame := outboundFrame{
					payload: protocol.AudioFrame(e.Audio),
					isAudio: true,
					turnID:  s.playback.turn(),
				}
				select {
				case s.outboundNormal <- frame:
				case <-s.ctx.Done():
					closeReason = "canceled"
					break loop
				}

			case sonic.TurnDetected:
				if err := s.sendPriority(protocol.TurnDetectedFrame(e.Interrupted)); err != nil {
					runErr = err
					break loop
				}
				if e.Interrupted {
					s.metrics.Interruption()
					s.playback.cancelTurn(s.playback.turn())
					suppressAudio = true
					stopTimer(drainTimer)
					if s.State() == StateSpeaking {
						if err := s.setState(StateListening); err != nil {
							runErr = err
							break loop
						}
					}
				} else {
					suppressAudio = false
					if s.State() == StateListening {
						if err := s.setState(StateProcessing); err != nil {
							runErr = err
							break loop
						}
					}
				}

			case sonic.SessionEnd:
				closeReason = "upstream"
				break loop
			}

		case out := <-toolResultCh:
			s.metrics.ToolCall(out.name, out.result.Success)
			content := out.result.Content
			if !out.result.Success {
				content = out.result.Error
			}
			if err := upstream.Send(sonic.ToolResult{
				ToolUseID: out.toolUseID,
				Content:   content,
				IsError:   !out.result.Success,
			}); err != nil {
				runErr = err
				closeReason = "upstream_gone"
				break loop
			}
			if err := s.sendPriority(protocol.ToolResultFrame(out.name, out.result.Success, out.result.Error)); err != nil {
				runErr = err
				break loop
			}

		case <-drainTimer.C:
			if s.State() != StateSpeaking {
				continue
			}
			pending, version := s.playback.observe()
			if pending == 0 && drainSawEmpty && version == drainLastVer {
				if err := s.setState(StateListening); err != nil {
					runErr = err
					break loop
				}
				continue
			}
			drainSawEmpty = pending == 0
			drainLastVer = version
			resetTimer(drainTimer, s.cfg.DrainConfirm)

		case <-idleTimer.C:
			_ = s.sendPriority(protocol.ErrorFrame("session idle timeout"))
			closeReason = "idle"
			break loop
		}
	}

	if clientRequested {
		_ = upstream.Send(sonic.SessionEnd{Reason: "client"})
	}
	_ = s.setState(StateClosed)
	s.cancel()

	// Give the writer a moment to flush queued priority frames and close
	// the socket cleanly.
	wait := 100 * time.Millisecond
	if s.cfg.WriteTimeout > 0 && s.cfg.WriteTimeout < wait {
		wait = s.cfg.WriteTimeout
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-writerErrCh:
	case <-timer.C:
	}

	s.log.Info("session closed", "reason", closeReason, "error", runErr)
	return runErr
}

// startUpstream performs the opening handshake of the model protocol.
func (s *Session) startUpstream(upstream sonic.Stream) error {
	if err := upstream.Send(sonic.SessionStart{
		Inference:   s.cfg.Inference,
		Sensitivity: s.cfg.Sensitivity,
	}); err != nil {
		return fmt.Errorf("send sessionStart: %w", err)
	}

	var specs []sonic.ToolSpec
	for _, def := range s.tools.Definitions() {
		specs = append(specs, sonic.ToolSpec{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		})
	}
	if err := upstream.Send(sonic.PromptStart{
		System: s.cfg.System,
		Tools:  specs,
		AudioOut: sonic.AudioOutputConfig{
			SampleRateHz: s.cfg.OutputRateHz,
			Channels:     1,
			VoiceID:      s.cfg.VoiceID,
		},
	}); err != nil {
		return fmt.Errorf("send promptStart: %w", err)
	}
	return nil
}

// conversationSnapshot renders the summary plus verbatim window for tools
// that consult other models.
func (s *Session) conversationSnapshot() string {
	summary, msgs := s.convo.Context()
	if summary == nil && len(msgs) == 0 {
		return ""
	}
	var b strings.Builder
	if summary != nil {
		b.WriteString("Summary of the conversation so far:\n")
		b.WriteString(summary.Content)
		b.WriteString("\n\n")
	}
	for _, msg := range msgs {
		b.WriteString(string(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func (s *Session) handleReset(wg *sync.WaitGroup) {
	s.metrics.Reset()
	s.convo.Reset()
	s.playback.cancelTurn(s.playback.turn())
	if s.archive != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.archive.RecordReset(s.ctx, s.sessionID); err != nil {
				s.log.Warn("archive reset failed", "error", err)
			}
		}()
	}
}

func (s *Session) archiveTurn(wg *sync.WaitGroup, role, content string) {
	if s.archive == nil {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.archive.SaveTurn(s.ctx, s.sessionID, role, content); err != nil {
			s.log.Warn("archive turn failed", "error", err)
		}
	}()
}

func (s *Session) sendPriority(payload []byte) error {
	select {
	case s.outboundPriority <- outboundFrame{payload: payload}:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

func (s *Session) readLoop(out chan<- inboundFrame) {
	defer close(out)
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case out <- inboundFrame{err: err}:
			case <-s.ctx.Done():
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		select {
		case out <- inboundFrame{data: data}:
		case <-s.ctx.Done():
			return
		}
	}
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	stopTimer(t)
	t.Reset(d)
}
