package service

import (
	"context"
	"errors"
	"fmt"

	"scope-chat-go/internal/config"
	"scope-chat-go/internal/model"
	"scope-chat-go/internal/repository"
	"scope-chat-go/pkg/hash"
	"scope-chat-go/pkg/token"
)

// ErrUnauthorized 表示管理员凭证校验失败。
var ErrUnauthorized = errors.New("invalid credentials")

// SummarySearcher 在摘要索引上执行全文检索。
type SummarySearcher func(ctx context.Context, query string, size int) ([]model.SummaryDocument, error)

// AdminService 定义了管理端的业务接口。
type AdminService interface {
	// Login 校验管理员凭证并签发访问令牌。
	Login(ctx context.Context, username, password string) (string, error)
	// ListEstimates 按时间倒序分页列出估算轮次记录。
	ListEstimates(ctx context.Context, page, pageSize int) ([]model.EstimateLog, int64, error)
	// SearchSummaries 在已归档的对话摘要上做全文检索。
	SearchSummaries(ctx context.Context, query string, size int) ([]model.SummaryDocument, error)
}

type adminService struct {
	cfg        config.AdminConfig
	jwtManager *token.JWTManager
	auditRepo  repository.AuditRepository
	searcher   SummarySearcher
}

// NewAdminService 创建一个新的 AdminService 实例。searcher 可为 nil。
func NewAdminService(cfg config.AdminConfig, jwtManager *token.JWTManager, auditRepo repository.AuditRepository, searcher SummarySearcher) AdminService {
	return &adminService{
		cfg:        cfg,
		jwtManager: jwtManager,
		auditRepo:  auditRepo,
		searcher:   searcher,
	}
}

func (s *adminService) Login(ctx context.Context, username, password string) (string, error) {
	if s.cfg.Username == "" || s.cfg.PasswordHash == "" {
		return "", fmt.Errorf("admin account is not configured")
	}
	if username != s.cfg.Username || !hash.CheckPasswordHash(password, s.cfg.PasswordHash) {
		return "", ErrUnauthorized
	}
	return s.jwtManager.GenerateAdminToken(username)
}

func (s *adminService) ListEstimates(ctx context.Context, page, pageSize int) ([]model.EstimateLog, int64, error) {
	return s.auditRepo.ListEstimateLogs(ctx, page, pageSize)
}

func (s *adminService) SearchSummaries(ctx context.Context, query string, size int) ([]model.SummaryDocument, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", ErrInvalidRequest)
	}
	if s.searcher == nil {
		return nil, fmt.Errorf("summary search is not configured")
	}
	return s.searcher(ctx, query, size)
}
