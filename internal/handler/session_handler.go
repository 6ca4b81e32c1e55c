package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"scope-chat-go/internal/middleware"
	"scope-chat-go/internal/service"
	"scope-chat-go/pkg/log"
	"scope-chat-go/pkg/token"
)

// 估算失败时展示给访客的通用重试文案。
const genericRetryMessage = "The assistant is temporarily unavailable. Please try again in a moment."

// SessionHandler 负责处理聊天会话相关的 API 请求。
type SessionHandler struct {
	sessionService service.SessionService
	jwtManager     *token.JWTManager
}

// NewSessionHandler 创建一个新的 SessionHandler 实例。
func NewSessionHandler(sessionService service.SessionService, jwtManager *token.JWTManager) *SessionHandler {
	return &SessionHandler{sessionService: sessionService, jwtManager: jwtManager}
}

// Create 处理 POST /api/v1/sessions：创建新会话并签发会话令牌。
func (h *SessionHandler) Create(c *gin.Context) {
	view, err := h.sessionService.CreateSession(c.Request.Context())
	if err != nil {
		log.Error("创建会话失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create a session"})
		return
	}

	tokenString, err := h.jwtManager.GenerateSessionToken(view.SessionID)
	if err != nil {
		log.Error("签发会话令牌失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue a session token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId": view.SessionID,
		"token":     tokenString,
		"messages":  view.Messages,
	})
}

// Get 处理 GET /api/v1/sessions/me：返回会话状态快照。
func (h *SessionHandler) Get(c *gin.Context) {
	sessionID := c.GetString(middleware.CtxSessionID)

	view, err := h.sessionService.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		log.Error("读取会话状态失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load the session"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// SubmitMessageRequest 定义了消息提交的请求体结构。
type SubmitMessageRequest struct {
	Text   string                    `json:"text"`
	Images []service.ImageAttachment `json:"images,omitempty"`
}

// SubmitMessage 处理 POST /api/v1/sessions/messages：提交一轮用户输入。
func (h *SessionHandler) SubmitMessage(c *gin.Context) {
	sessionID := c.GetString(middleware.CtxSessionID)

	var req SubmitMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be valid JSON"})
		return
	}

	result, err := h.sessionService.SubmitMessage(c.Request.Context(), sessionID, req.Text, req.Images)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrSessionBusy):
			c.JSON(http.StatusConflict, gin.H{"error": "an estimate is already being prepared for this session"})
		default:
			log.Error("消息提交处理失败", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": genericRetryMessage})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// UpdateContactRequest 定义了联系方式更新的请求体结构。
type UpdateContactRequest struct {
	Email       string `json:"email"`
	ContactInfo string `json:"contactInfo"`
}

// UpdateContact 处理 PUT /api/v1/sessions/contact。
func (h *SessionHandler) UpdateContact(c *gin.Context) {
	sessionID := c.GetString(middleware.CtxSessionID)

	var req UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be valid JSON"})
		return
	}

	contact, err := h.sessionService.UpdateContact(c.Request.Context(), sessionID, req.Email, req.ContactInfo)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Error("联系方式更新失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update contact details"})
		return
	}
	c.JSON(http.StatusOK, contact)
}

// SendSummaryRequest 定义了摘要发送的请求体结构。
type SendSummaryRequest struct {
	ContactInfo     string                   `json:"contactInfo,omitempty"`
	QuestionAnswers []service.QuestionAnswer `json:"questionAnswers,omitempty"`
}

// SendSummary 处理 POST /api/v1/sessions/summary。
func (h *SessionHandler) SendSummary(c *gin.Context) {
	sessionID := c.GetString(middleware.CtxSessionID)

	var req SendSummaryRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be valid JSON"})
			return
		}
	}

	result, err := h.sessionService.SendSummary(c.Request.Context(), sessionID, req.ContactInfo, req.QuestionAnswers)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSummaryNotReady):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			log.Error("摘要发送处理失败", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send the summary"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"overview":     result.Overview,
		"estimate":     result.Estimate,
		"emailContent": result.EmailContent,
	})
}
