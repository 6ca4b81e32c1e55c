// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"scope-chat-go/internal/model"
	"scope-chat-go/internal/service"
	"scope-chat-go/pkg/log"
)

// EstimateHandler 负责处理无状态的范围估算代理端点。
type EstimateHandler struct {
	estimateService service.EstimateService
}

// NewEstimateHandler 创建一个新的 EstimateHandler 实例。
func NewEstimateHandler(estimateService service.EstimateService) *EstimateHandler {
	return &EstimateHandler{estimateService: estimateService}
}

// EstimateRequest 定义了估算端点的请求体结构。
type EstimateRequest struct {
	Messages []model.ChatMessage `json:"messages"`
}

// EstimateResponse 定义了估算端点的响应体结构。
type EstimateResponse struct {
	Message            string   `json:"message"`
	BudgetRange        string   `json:"budgetRange"`
	RecommendedPackage string   `json:"recommendedPackage,omitempty"`
	NextSteps          []string `json:"nextSteps"`
	MissingInfo        []string `json:"missingInfo"`
}

// Estimate 处理 POST /api/v1/scope/estimate。
// 入参非法时直接返回 400，不发起任何外部调用。
func (h *EstimateHandler) Estimate(c *gin.Context) {
	var req EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be valid JSON with a messages array"})
		return
	}
	if len(req.Messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messages must be a non-empty array"})
		return
	}

	result, err := h.estimateService.Estimate(c.Request.Context(), "", req.Messages)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Error("估算请求处理失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "estimate failed",
			"message": service.FallbackReply,
		})
		return
	}

	c.JSON(http.StatusOK, EstimateResponse{
		Message:            result.Message,
		BudgetRange:        result.Estimate.BudgetRange,
		RecommendedPackage: result.Estimate.RecommendedPackage,
		NextSteps:          result.Estimate.NextSteps,
		MissingInfo:        result.Estimate.MissingInfo,
	})
}
