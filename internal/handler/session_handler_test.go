package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"scope-chat-go/internal/middleware"
	"scope-chat-go/internal/model"
	"scope-chat-go/internal/service"
	"scope-chat-go/pkg/token"
)

// stubSessionService 返回预设结果并记录收到的会话 ID。
type stubSessionService struct {
	lastSessionID string
	view          *service.SessionView
	submitResult  *service.SubmitResult
	submitErr     error
	summaryErr    error
}

func (s *stubSessionService) CreateSession(_ context.Context) (*service.SessionView, error) {
	return s.view, nil
}

func (s *stubSessionService) GetSession(_ context.Context, sessionID string) (*service.SessionView, error) {
	s.lastSessionID = sessionID
	return s.view, nil
}

func (s *stubSessionService) SubmitMessage(_ context.Context, sessionID, _ string, _ []service.ImageAttachment) (*service.SubmitResult, error) {
	s.lastSessionID = sessionID
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return s.submitResult, nil
}

func (s *stubSessionService) UpdateContact(_ context.Context, sessionID, email, contactInfo string) (model.ContactSlot, error) {
	s.lastSessionID = sessionID
	if email != "" && !service.ValidEmail(email) {
		return model.ContactSlot{}, service.ErrInvalidRequest
	}
	return model.ContactSlot{Email: email, ContactInfo: contactInfo}, nil
}

func (s *stubSessionService) SendSummary(_ context.Context, sessionID, _ string, _ []service.QuestionAnswer) (*service.SummaryResult, error) {
	s.lastSessionID = sessionID
	if s.summaryErr != nil {
		return nil, s.summaryErr
	}
	return &service.SummaryResult{Overview: "done"}, nil
}

func sessionRouter(stub *stubSessionService, jwtManager *token.JWTManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewSessionHandler(stub, jwtManager)

	sessions := r.Group("/api/v1/sessions")
	sessions.POST("", h.Create)

	authed := sessions.Group("/")
	authed.Use(middleware.SessionAuthMiddleware(jwtManager))
	{
		authed.GET("/me", h.Get)
		authed.POST("/messages", h.SubmitMessage)
		authed.PUT("/contact", h.UpdateContact)
		authed.POST("/summary", h.SendSummary)
	}
	return r
}

func newTestJWTManager() *token.JWTManager {
	return token.NewJWTManager("test-secret", 7, 12)
}

func defaultSessionStub() *stubSessionService {
	return &stubSessionService{
		view: &service.SessionView{
			SessionID: "session-1",
			Messages:  []model.ChatMessage{model.TextMessage(model.RoleAssistant, "Hi!")},
		},
		submitResult: &service.SubmitResult{
			Messages: []model.ChatMessage{
				model.TextMessage(model.RoleAssistant, "Hi!"),
				model.TextMessage(model.RoleUser, "hello"),
				model.TextMessage(model.RoleAssistant, "sure"),
			},
		},
	}
}

func authedRequest(t *testing.T, r *gin.Engine, method, path, tokenString, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tokenString)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateSessionIssuesToken(t *testing.T) {
	jwtManager := newTestJWTManager()
	stub := defaultSessionStub()
	r := sessionRouter(stub, jwtManager)

	w := postJSON(t, r, "/api/v1/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		SessionID string `json:"sessionId"`
		Token     string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "session-1", resp.SessionID)

	// 签发的令牌是绑定该会话的 session 令牌
	claims, err := jwtManager.VerifyToken(resp.Token)
	require.NoError(t, err)
	require.Equal(t, token.KindSession, claims.Kind)
	require.Equal(t, "session-1", claims.SessionID)
}

func TestSessionRoutesRequireToken(t *testing.T) {
	jwtManager := newTestJWTManager()
	r := sessionRouter(defaultSessionStub(), jwtManager)

	req := httptest.NewRequest("GET", "/api/v1/sessions/me", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = authedRequest(t, r, "GET", "/api/v1/sessions/me", "not-a-token", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionRoutesRejectAdminToken(t *testing.T) {
	jwtManager := newTestJWTManager()
	r := sessionRouter(defaultSessionStub(), jwtManager)

	adminToken, err := jwtManager.GenerateAdminToken("admin")
	require.NoError(t, err)

	w := authedRequest(t, r, "GET", "/api/v1/sessions/me", adminToken, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetSessionUsesSessionIDFromToken(t *testing.T) {
	jwtManager := newTestJWTManager()
	stub := defaultSessionStub()
	r := sessionRouter(stub, jwtManager)

	sessionToken, err := jwtManager.GenerateSessionToken("session-1")
	require.NoError(t, err)

	w := authedRequest(t, r, "GET", "/api/v1/sessions/me", sessionToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "session-1", stub.lastSessionID)
}

func TestSubmitMessageMapsBusyToConflict(t *testing.T) {
	jwtManager := newTestJWTManager()
	stub := defaultSessionStub()
	stub.submitErr = service.ErrSessionBusy
	r := sessionRouter(stub, jwtManager)

	sessionToken, _ := jwtManager.GenerateSessionToken("session-1")
	w := authedRequest(t, r, "POST", "/api/v1/sessions/messages", sessionToken, `{"text":"hello"}`)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestSubmitMessageMapsInvalidRequest(t *testing.T) {
	jwtManager := newTestJWTManager()
	stub := defaultSessionStub()
	stub.submitErr = service.ErrInvalidRequest
	r := sessionRouter(stub, jwtManager)

	sessionToken, _ := jwtManager.GenerateSessionToken("session-1")
	w := authedRequest(t, r, "POST", "/api/v1/sessions/messages", sessionToken, `{"text":""}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateContactMapsInvalidEmail(t *testing.T) {
	jwtManager := newTestJWTManager()
	r := sessionRouter(defaultSessionStub(), jwtManager)

	sessionToken, _ := jwtManager.GenerateSessionToken("session-1")
	w := authedRequest(t, r, "PUT", "/api/v1/sessions/contact", sessionToken, `{"email":"nope"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = authedRequest(t, r, "PUT", "/api/v1/sessions/contact", sessionToken, `{"email":"jane@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSendSummaryMapsNotReadyToConflict(t *testing.T) {
	jwtManager := newTestJWTManager()
	stub := defaultSessionStub()
	stub.summaryErr = service.ErrSummaryNotReady
	r := sessionRouter(stub, jwtManager)

	sessionToken, _ := jwtManager.GenerateSessionToken("session-1")
	w := authedRequest(t, r, "POST", "/api/v1/sessions/summary", sessionToken, "")
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestSendSummaryAcceptsEmptyBody(t *testing.T) {
	jwtManager := newTestJWTManager()
	stub := defaultSessionStub()
	r := sessionRouter(stub, jwtManager)

	sessionToken, _ := jwtManager.GenerateSessionToken("session-1")
	w := authedRequest(t, r, "POST", "/api/v1/sessions/summary", sessionToken, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, true, resp["success"])
}
