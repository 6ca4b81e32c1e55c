package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"scope-chat-go/internal/service"
	"scope-chat-go/pkg/log"
)

// AdminHandler 负责处理管理端的 API 请求。
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// LoginRequest 定义了管理员登录的请求体结构。
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 处理 POST /api/v1/admin/login。
func (h *AdminHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	tokenString, err := h.adminService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		log.Error("管理员登录失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": tokenString})
}

// ListEstimates 处理 GET /api/v1/admin/estimates，按时间倒序分页。
func (h *AdminHandler) ListEstimates(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	logs, total, err := h.adminService.ListEstimates(c.Request.Context(), page, pageSize)
	if err != nil {
		log.Error("列出估算记录失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list estimates"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total": total,
		"page":  page,
		"items": logs,
	})
}

// SearchSummaries 处理 GET /api/v1/admin/summaries/search?q=。
func (h *AdminHandler) SearchSummaries(c *gin.Context) {
	query := c.Query("q")
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	docs, err := h.adminService.SearchSummaries(c.Request.Context(), query, size)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Error("摘要搜索失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search summaries"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": docs})
}
