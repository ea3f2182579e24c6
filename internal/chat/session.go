package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/havenhealth/patient-portal/internal/observability/metrics"
	"github.com/havenhealth/patient-portal/pkg/logging"
)

var tracer = otel.Tracer("portal.internal.chat")

// Turn is one visible entry of a conversation transcript.
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	SentAt  time.Time `json:"sent_at"`
}

// SessionConfig carries the tunables shared by every session.
type SessionConfig struct {
	DailyLimit  int
	MaxTokens   int
	Temperature float64
}

// Session holds one patient's conversation state. The transcript is
// what the patient sees; the history is what the model sees, seeded
// with the system prompt. The two advance in lockstep: a failed send
// rolls the user turn back out of both.
type Session struct {
	patientID string

	mu         sync.Mutex
	inFlight   bool
	transcript []Turn
	history    []ChatMessage

	llm     LLMClient
	quota   *QuotaStore
	cfg     SessionConfig
	logger  *logging.Logger
	metrics *metrics.PortalMetrics
	now     func() time.Time
}

func newSession(patientID string, llm LLMClient, quota *QuotaStore, cfg SessionConfig, logger *logging.Logger, m *metrics.PortalMetrics) *Session {
	return &Session{
		patientID:  patientID,
		transcript: []Turn{},
		history:    []ChatMessage{{Role: RoleSystem, Content: wellnessSystemPrompt}},
		llm:        llm,
		quota:      quota,
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// Transcript returns a copy of the visible conversation so far.
func (s *Session) Transcript() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Remaining reports how many sends the patient has left today.
func (s *Session) Remaining(ctx context.Context) (int, error) {
	used, err := s.quota.Used(ctx, s.patientID)
	if err != nil {
		return 0, err
	}
	left := s.cfg.DailyLimit - used
	if left < 0 {
		left = 0
	}
	return left, nil
}

// Send submits one patient message and returns the assistant's reply.
// Validation, the in-flight guard, and the quota check all run before
// any state is mutated or any network call is made.
func (s *Session) Send(ctx context.Context, text string) (Turn, error) {
	ctx, span := tracer.Start(ctx, "chat.Session.Send", trace.WithAttributes(
		attribute.String("patient.id", s.patientID),
	))
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return Turn{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return Turn{}, ErrSendInFlight
	}
	s.inFlight = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	used, err := s.quota.Used(ctx, s.patientID)
	if err != nil {
		return Turn{}, err
	}
	if used >= s.cfg.DailyLimit {
		s.metrics.ObserveQuotaRejected()
		return Turn{}, ErrQuotaExceeded
	}

	s.mu.Lock()
	s.transcript = append(s.transcript, Turn{Role: "user", Content: text, SentAt: s.now()})
	s.history = append(s.history, ChatMessage{Role: RoleUser, Content: text})
	req := LLMRequest{
		Messages:    append([]ChatMessage(nil), s.history...),
		MaxTokens:   int32(s.cfg.MaxTokens),
		Temperature: float32(s.cfg.Temperature),
	}
	s.mu.Unlock()

	start := s.now()
	resp, err := s.llm.Complete(ctx, req)
	s.metrics.ObserveLLMLatency(s.llm.Provider(), s.now().Sub(start).Seconds())
	if err != nil {
		// Roll the user turn back so transcript and history stay
		// consistent and the message does not count against the quota.
		s.mu.Lock()
		s.transcript = s.transcript[:len(s.transcript)-1]
		s.history = s.history[:len(s.history)-1]
		s.mu.Unlock()
		s.metrics.ObserveChatMessage("error")
		s.logger.Error("chat completion failed", "patient_id", s.patientID, "error", err)
		return Turn{}, fmt.Errorf("%w: %w", ErrAssistantUnavailable, err)
	}

	reply := Turn{Role: "assistant", Content: resp.Text, SentAt: s.now()}
	s.mu.Lock()
	s.transcript = append(s.transcript, reply)
	s.history = append(s.history, ChatMessage{Role: RoleAssistant, Content: resp.Text})
	s.mu.Unlock()

	// The quota write is best effort. A failed write means the send
	// may not count, which is preferable to losing the reply.
	if err := s.quota.Record(ctx, s.patientID, used+1); err != nil {
		s.logger.Warn("quota persist failed", "patient_id", s.patientID, "error", err)
	}
	s.metrics.ObserveChatMessage("ok")
	return reply, nil
}

// SessionManager hands out one Session per patient.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	llm     LLMClient
	quota   *QuotaStore
	cfg     SessionConfig
	logger  *logging.Logger
	metrics *metrics.PortalMetrics
}

// NewSessionManager builds a manager with the shared dependencies.
func NewSessionManager(llm LLMClient, quota *QuotaStore, cfg SessionConfig, logger *logging.Logger, m *metrics.PortalMetrics) *SessionManager {
	if llm == nil {
		panic("chat: llm client cannot be nil")
	}
	if quota == nil {
		panic("chat: quota store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.DailyLimit <= 0 {
		cfg.DailyLimit = 10
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		llm:      llm,
		quota:    quota,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
	}
}

// Session returns the patient's session, creating it on first use.
func (m *SessionManager) Session(patientID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[patientID]
	if !ok {
		s = newSession(patientID, m.llm, m.quota, m.cfg, m.logger, m.metrics)
		m.sessions[patientID] = s
	}
	return s
}
