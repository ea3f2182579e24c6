package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenhealth/patient-portal/pkg/logging"
)

type stubLLM struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   []LLMRequest
	release chan struct{}
}

func (s *stubLLM) Provider() string { return "stub" }

func (s *stubLLM) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	release := s.release
	s.mu.Unlock()
	if release != nil {
		<-release
	}
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	return LLMResponse{Text: s.reply}, nil
}

func (s *stubLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newTestManager(t *testing.T, llm LLMClient) (*SessionManager, *QuotaStore) {
	t.Helper()
	quota := NewQuotaStore(NewMemoryKV())
	cfg := SessionConfig{DailyLimit: 10, MaxTokens: 1000, Temperature: 0.7}
	return NewSessionManager(llm, quota, cfg, logging.Default(), nil), quota
}

func TestSessionSendAppendsBothSides(t *testing.T) {
	llm := &stubLLM{reply: "Drink more water."}
	mgr, quota := newTestManager(t, llm)
	session := mgr.Session("patient-1")

	reply, err := session.Send(context.Background(), "How do I stay hydrated?")
	require.NoError(t, err)
	assert.Equal(t, "assistant", reply.Role)
	assert.Equal(t, "Drink more water.", reply.Content)

	transcript := session.Transcript()
	require.Len(t, transcript, 2)
	assert.Equal(t, "user", transcript[0].Role)
	assert.Equal(t, "How do I stay hydrated?", transcript[0].Content)
	assert.Equal(t, "assistant", transcript[1].Role)

	used, err := quota.Used(context.Background(), "patient-1")
	require.NoError(t, err)
	assert.Equal(t, 1, used)
}

func TestSessionSendIncludesSystemPromptAndHistory(t *testing.T) {
	llm := &stubLLM{reply: "ok"}
	mgr, _ := newTestManager(t, llm)
	session := mgr.Session("patient-1")

	_, err := session.Send(context.Background(), "first")
	require.NoError(t, err)
	_, err = session.Send(context.Background(), "second")
	require.NoError(t, err)

	require.Len(t, llm.calls, 2)
	second := llm.calls[1]
	require.Len(t, second.Messages, 4)
	assert.Equal(t, RoleSystem, second.Messages[0].Role)
	assert.Equal(t, wellnessSystemPrompt, second.Messages[0].Content)
	assert.Equal(t, "first", second.Messages[1].Content)
	assert.Equal(t, RoleAssistant, second.Messages[2].Role)
	assert.Equal(t, "second", second.Messages[3].Content)
	assert.Equal(t, int32(1000), second.MaxTokens)
	assert.InDelta(t, 0.7, second.Temperature, 0.0001)
}

func TestSessionSendRejectsEmptyMessage(t *testing.T) {
	llm := &stubLLM{reply: "ok"}
	mgr, quota := newTestManager(t, llm)
	session := mgr.Session("patient-1")

	_, err := session.Send(context.Background(), "   \n\t ")
	require.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, session.Transcript())
	assert.Zero(t, llm.callCount())

	used, err := quota.Used(context.Background(), "patient-1")
	require.NoError(t, err)
	assert.Zero(t, used)
}

func TestSessionSendRollsBackOnFailure(t *testing.T) {
	llm := &stubLLM{err: errors.New("model overloaded")}
	mgr, quota := newTestManager(t, llm)
	session := mgr.Session("patient-1")

	_, err := session.Send(context.Background(), "hello")
	require.ErrorIs(t, err, ErrAssistantUnavailable)

	// The failed user turn leaves no trace in either view of the
	// conversation, and the message does not count against the quota.
	assert.Empty(t, session.Transcript())
	used, err := quota.Used(context.Background(), "patient-1")
	require.NoError(t, err)
	assert.Zero(t, used)

	// The session is usable again once the backend recovers.
	llm.err = nil
	llm.reply = "recovered"
	reply, err := session.Send(context.Background(), "hello again")
	require.NoError(t, err)
	assert.Equal(t, "recovered", reply.Content)
	require.Len(t, llm.calls, 2)
	lastCall := llm.calls[1]
	require.Len(t, lastCall.Messages, 2)
	assert.Equal(t, "hello again", lastCall.Messages[1].Content)
}

func TestSessionSendEnforcesDailyQuota(t *testing.T) {
	llm := &stubLLM{reply: "ok"}
	mgr, quota := newTestManager(t, llm)
	session := mgr.Session("patient-1")

	require.NoError(t, quota.Record(context.Background(), "patient-1", 10))

	_, err := session.Send(context.Background(), "one more")
	require.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Zero(t, llm.callCount())
	assert.Empty(t, session.Transcript())
}

func TestSessionQuotaResetsNextDay(t *testing.T) {
	llm := &stubLLM{reply: "ok"}
	mgr, quota := newTestManager(t, llm)
	session := mgr.Session("patient-1")

	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	quota.now = func() time.Time { return yesterday }
	require.NoError(t, quota.Record(context.Background(), "patient-1", 10))
	quota.now = time.Now

	// Yesterday's exhausted count reads back as a fresh allowance.
	remaining, err := session.Remaining(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, remaining)

	_, err = session.Send(context.Background(), "good morning")
	require.NoError(t, err)
	used, err := quota.Used(context.Background(), "patient-1")
	require.NoError(t, err)
	assert.Equal(t, 1, used)
}

func TestSessionSendRejectsConcurrentSend(t *testing.T) {
	release := make(chan struct{})
	llm := &stubLLM{reply: "slow", release: release}
	mgr, _ := newTestManager(t, llm)
	session := mgr.Session("patient-1")

	firstDone := make(chan error, 1)
	go func() {
		_, err := session.Send(context.Background(), "first")
		firstDone <- err
	}()

	// Wait until the first send is inside the LLM call.
	require.Eventually(t, func() bool {
		return llm.callCount() == 1
	}, time.Second, 5*time.Millisecond)

	_, err := session.Send(context.Background(), "second")
	require.ErrorIs(t, err, ErrSendInFlight)

	close(release)
	require.NoError(t, <-firstDone)
	assert.Len(t, session.Transcript(), 2)
}

func TestSessionManagerReturnsSameSessionPerPatient(t *testing.T) {
	mgr, _ := newTestManager(t, &stubLLM{reply: "ok"})

	a := mgr.Session("patient-1")
	b := mgr.Session("patient-1")
	c := mgr.Session("patient-2")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}
