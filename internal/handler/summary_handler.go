package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"scope-chat-go/internal/model"
	"scope-chat-go/internal/service"
	"scope-chat-go/pkg/log"
	"scope-chat-go/pkg/records"
)

// SummaryHandler 负责处理无状态的摘要与通知代理端点。
type SummaryHandler struct {
	summaryService service.SummaryService
}

// NewSummaryHandler 创建一个新的 SummaryHandler 实例。
func NewSummaryHandler(summaryService service.SummaryService) *SummaryHandler {
	return &SummaryHandler{summaryService: summaryService}
}

// SummaryRequest 定义了摘要端点的请求体结构。
type SummaryRequest struct {
	Messages        []model.ChatMessage      `json:"messages"`
	Estimate        *model.Estimate          `json:"estimate,omitempty"`
	UserEmail       string                   `json:"userEmail,omitempty"`
	ContactInfo     string                   `json:"contactInfo,omitempty"`
	QuestionAnswers []service.QuestionAnswer `json:"questionAnswers,omitempty"`
}

// SummaryResponse 定义了摘要端点的响应体结构。
// emailContent 返回给调用方自行决定是否投递，本服务不发送邮件。
type SummaryResponse struct {
	Success      bool                 `json:"success"`
	Overview     string               `json:"overview"`
	Estimate     model.Estimate       `json:"estimate"`
	EmailContent service.EmailContent `json:"emailContent"`
}

// Summarize 处理 POST /api/v1/scope/summary。
func (h *SummaryHandler) Summarize(c *gin.Context) {
	var req SummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be valid JSON with a messages array"})
		return
	}
	if len(req.Messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messages must be a non-empty array"})
		return
	}

	result, err := h.summaryService.Summarize(c.Request.Context(), service.SummaryRequest{
		Messages:        req.Messages,
		Estimate:        req.Estimate,
		UserEmail:       req.UserEmail,
		ContactInfo:     req.ContactInfo,
		QuestionAnswers: req.QuestionAnswers,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, records.ErrNotConfigured):
			log.Error("记录服务未配置", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "record store is not configured"})
		default:
			log.Error("摘要请求处理失败", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build and deliver the summary"})
		}
		return
	}

	c.JSON(http.StatusOK, SummaryResponse{
		Success:      true,
		Overview:     result.Overview,
		Estimate:     result.Estimate,
		EmailContent: result.EmailContent,
	})
}
