package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenhealth/patient-portal/internal/identity"
	"github.com/havenhealth/patient-portal/pkg/logging"
)

func newTestHandler(t *testing.T, llm LLMClient) (*Handler, *QuotaStore) {
	t.Helper()
	mgr, quota := newTestManager(t, llm)
	return NewHandler(mgr, logging.Default()), quota
}

func doChatRequest(h *Handler, method, body, patientID string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "/", reader)
	if patientID != "" {
		req = req.WithContext(identity.WithPatientID(req.Context(), patientID))
	}
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func TestSendMessageReturnsReplyAndRemaining(t *testing.T) {
	h, _ := newTestHandler(t, &stubLLM{reply: "Take a short walk."})

	rec := doChatRequest(h, http.MethodPost, `{"message":"I feel stressed"}`, "patient-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp sendMessageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "assistant", resp.Reply.Role)
	assert.Equal(t, "Take a short walk.", resp.Reply.Content)
	assert.Equal(t, 9, resp.Remaining)
}

func TestSendMessageRequiresIdentity(t *testing.T) {
	h, _ := newTestHandler(t, &stubLLM{reply: "ok"})

	rec := doChatRequest(h, http.MethodPost, `{"message":"hi"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSendMessageRejectsEmptyBody(t *testing.T) {
	h, _ := newTestHandler(t, &stubLLM{reply: "ok"})

	rec := doChatRequest(h, http.MethodPost, `{"message":"   "}`, "patient-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageQuotaExhausted(t *testing.T) {
	llm := &stubLLM{reply: "ok"}
	h, quota := newTestHandler(t, llm)
	require.NoError(t, quota.Record(context.Background(), "patient-1", 10))

	rec := doChatRequest(h, http.MethodPost, `{"message":"hello"}`, "patient-1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Zero(t, llm.callCount())
}

func TestSendMessageBackendFailure(t *testing.T) {
	h, _ := newTestHandler(t, &stubLLM{err: errors.New("timeout")})

	rec := doChatRequest(h, http.MethodPost, `{"message":"hello"}`, "patient-1")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGetConversationReturnsTranscript(t *testing.T) {
	h, _ := newTestHandler(t, &stubLLM{reply: "Sleep eight hours."})

	rec := doChatRequest(h, http.MethodPost, `{"message":"any tips?"}`, "patient-1")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doChatRequest(h, http.MethodGet, "", "patient-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp conversationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Transcript, 2)
	assert.Equal(t, "any tips?", resp.Transcript[0].Content)
	assert.Equal(t, "Sleep eight hours.", resp.Transcript[1].Content)
	assert.Equal(t, 9, resp.Remaining)
	assert.Equal(t, 10, resp.Limit)
}

func TestGetConversationEmptySession(t *testing.T) {
	h, _ := newTestHandler(t, &stubLLM{reply: "ok"})

	rec := doChatRequest(h, http.MethodGet, "", "patient-9")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp conversationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotNil(t, resp.Transcript)
	assert.Empty(t, resp.Transcript)
	assert.Equal(t, 10, resp.Remaining)
}
