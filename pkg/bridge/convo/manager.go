// Package convo maintains a session's rolling conversation context under a
// fixed token budget. Old turns are folded into a running summary in the
// background; recent turns always stay verbatim.
package convo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/voxbridge/voxbridge/pkg/bridge/llm"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one completed turn of the conversation.
type Message struct {
	Role    Role
	Content string
	Tokens  int
	At      time.Time
}

// Summary is the compressed prefix of the conversation.
type Summary struct {
	Content string
	Tokens  int
	// Turns is how many messages the summary has absorbed in total.
	Turns int
}

// Limits bound the verbatim window. Floor is never summarized away, Trigger
// starts background compression, Ceiling caps what Context returns.
type Limits struct {
	CeilingTokens    int
	FloorTokens      int
	TriggerTokens    int
	SummaryMaxTokens int
}

func (l Limits) validate() error {
	if l.CeilingTokens <= 0 || l.FloorTokens <= 0 || l.TriggerTokens <= 0 {
		return fmt.Errorf("token limits must be positive")
	}
	if l.FloorTokens >= l.TriggerTokens {
		return fmt.Errorf("floor (%d) must be below trigger (%d)", l.FloorTokens, l.TriggerTokens)
	}
	if l.TriggerTokens >= l.CeilingTokens {
		return fmt.Errorf("trigger (%d) must be below ceiling (%d)", l.TriggerTokens, l.CeilingTokens)
	}
	return nil
}

// SummarizeFunc folds messages into a new summary. prior is the current
// summary content, empty on the first pass.
type SummarizeFunc func(ctx context.Context, prior string, msgs []Message) (string, error)

// Config for a Manager. Summarize is required; zero limits fall back to the
// defaults below.
type Config struct {
	Limits    Limits
	Summarize SummarizeFunc
	Log       *slog.Logger
	// OnSummary fires after each successful compression, outside the lock.
	OnSummary func(Summary)
}

const (
	DefaultCeilingTokens    = 8000
	DefaultFloorTokens      = 2000
	DefaultTriggerTokens    = 6000
	DefaultSummaryMaxTokens = 500
)

// Manager owns one session's conversation state. All methods are safe for
// concurrent use. At most one summarization runs at a time; triggers that
// arrive while one is in flight are absorbed by the next Append.
type Manager struct {
	limits    Limits
	summarize SummarizeFunc
	log       *slog.Logger
	onSummary func(Summary)

	mu         sync.Mutex
	messages   []Message
	summary    *Summary
	inFlight   bool
	generation uint64
}

func New(cfg Config) (*Manager, error) {
	if cfg.Summarize == nil {
		return nil, fmt.Errorf("summarize func is required")
	}
	limits := cfg.Limits
	if limits.CeilingTokens == 0 {
		limits.CeilingTokens = DefaultCeilingTokens
	}
	if limits.FloorTokens == 0 {
		limits.FloorTokens = DefaultFloorTokens
	}
	if limits.TriggerTokens == 0 {
		limits.TriggerTokens = DefaultTriggerTokens
	}
	if limits.SummaryMaxTokens == 0 {
		limits.SummaryMaxTokens = DefaultSummaryMaxTokens
	}
	if err := limits.validate(); err != nil {
		return nil, err
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		limits:    limits,
		summarize: cfg.Summarize,
		log:       log,
		onSummary: cfg.OnSummary,
	}, nil
}

// Append records a completed turn and kicks off background summarization if
// the verbatim window has grown past the trigger.
func (m *Manager) Append(ctx context.Context, role Role, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	m.mu.Lock()
	m.messages = append(m.messages, Message{
		Role:    role,
		Content: content,
		Tokens:  EstimateTokens(content),
		At:      time.Now(),
	})
	start := !m.inFlight && m.verbatimTokensLocked() > m.limits.TriggerTokens
	if start {
		m.inFlight = true
	}
	gen := m.generation
	prior := ""
	if m.summary != nil {
		prior = m.summary.Content
	}
	var victims []Message
	if start {
		victims = m.selectVictimsLocked()
		if len(victims) == 0 {
			m.inFlight = false
			start = false
		}
	}
	m.mu.Unlock()

	if start {
		go m.runSummarization(ctx, gen, prior, victims)
	}
}

// selectVictimsLocked picks the oldest contiguous block whose removal brings
// the verbatim window back under the trigger, leaving at least FloorTokens of
// the newest turns verbatim.
func (m *Manager) selectVictimsLocked() []Message {
	total := m.verbatimTokensLocked()
	maxCompress := total - m.limits.FloorTokens
	if maxCompress <= 0 {
		return nil
	}
	var victims []Message
	used := 0
	for _, msg := range m.messages {
		if total-used < m.limits.TriggerTokens {
			break
		}
		if used+msg.Tokens > maxCompress {
			break
		}
		victims = append(victims, msg)
		used += msg.Tokens
	}
	return victims
}

func (m *Manager) runSummarization(ctx context.Context, gen uint64, prior string, victims []Message) {
	content, err := m.summarize(ctx, prior, victims)
	content = strings.TrimSpace(content)

	m.mu.Lock()
	m.inFlight = false
	if m.generation != gen {
		// The session was reset while we were summarizing. Discard.
		m.mu.Unlock()
		return
	}
	if err != nil || content == "" {
		m.mu.Unlock()
		if err == nil {
			err = fmt.Errorf("summarizer returned empty content")
		}
		m.log.Warn("summarization failed, keeping verbatim messages", "error", err)
		return
	}

	turns := len(victims)
	if m.summary != nil {
		turns += m.summary.Turns
	}
	summary := Summary{Content: content, Tokens: EstimateTokens(content), Turns: turns}
	m.summary = &summary
	// Victims were taken from the head of the slice and Append only grows
	// the tail, so they are still the leading prefix.
	m.messages = append([]Message(nil), m.messages[len(victims):]...)
	m.mu.Unlock()

	m.log.Info("conversation summarized",
		"absorbed_turns", len(victims),
		"summary_tokens", summary.Tokens)
	if m.onSummary != nil {
		m.onSummary(summary)
	}
}

// Context returns the current summary (nil if none) and the newest verbatim
// messages that fit under the ceiling after the summary's own tokens.
func (m *Manager) Context() (*Summary, []Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	budget := m.limits.CeilingTokens
	var summary *Summary
	if m.summary != nil {
		s := *m.summary
		summary = &s
		budget -= s.Tokens
	}

	used := 0
	start := len(m.messages)
	for i := len(m.messages) - 1; i >= 0; i-- {
		if used+m.messages[i].Tokens > budget {
			break
		}
		used += m.messages[i].Tokens
		start = i
	}
	return summary, append([]Message(nil), m.messages[start:]...)
}

// Reset drops all conversation state. A summarization already in flight is
// invalidated; its result will be discarded.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
	m.summary = nil
	m.generation++
}

// VerbatimTokens reports the estimated size of the unsummarized window.
func (m *Manager) VerbatimTokens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verbatimTokensLocked()
}

func (m *Manager) verbatimTokensLocked() int {
	total := 0
	for _, msg := range m.messages {
		total += msg.Tokens
	}
	return total
}

const summarizerSystem = "You compress voice conversation transcripts. " +
	"Merge the earlier summary and the new turns into a single factual summary. " +
	"Keep names, numbers, decisions, and open questions. Drop filler and pleasantries."

// NewLLMSummarizer builds a SummarizeFunc on a text model provider. The
// maxTokens cap keeps the summary small enough to leave room for verbatim
// turns under the ceiling.
func NewLLMSummarizer(provider llm.Provider, maxTokens int) SummarizeFunc {
	return func(ctx context.Context, prior string, msgs []Message) (string, error) {
		var b strings.Builder
		if prior != "" {
			b.WriteString("Earlier summary:\n")
			b.WriteString(prior)
			b.WriteString("\n\n")
		}
		b.WriteString("New turns:\n")
		for _, msg := range msgs {
			b.WriteString(string(msg.Role))
			b.WriteString(": ")
			b.WriteString(msg.Content)
			b.WriteString("\n")
		}
		resp, err := provider.CreateMessage(ctx, &llm.Request{
			System:    summarizerSystem,
			Messages:  []llm.Message{{Role: llm.RoleUser, Content: b.String()}},
			MaxTokens: maxTokens,
		})
		if err != nil {
			return "", err
		}
		return resp.Text, nil
	}
}
