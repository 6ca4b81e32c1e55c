package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"scope-chat-go/internal/model"
)

// AuditRepository 定义了估算与通知审计记录的落库接口。
type AuditRepository interface {
	SaveEstimateLog(ctx context.Context, entry *model.EstimateLog) error
	SaveNotificationLog(ctx context.Context, entry *model.NotificationLog) error
	ListEstimateLogs(ctx context.Context, page, pageSize int) ([]model.EstimateLog, int64, error)
}

type gormAuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository 创建一个新的 AuditRepository 实例。
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &gormAuditRepository{db: db}
}

// SaveEstimateLog 落库一条估算轮次记录。
func (r *gormAuditRepository) SaveEstimateLog(ctx context.Context, entry *model.EstimateLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to save estimate log: %w", err)
	}
	return nil
}

// SaveNotificationLog 落库一条摘要通知记录。
func (r *gormAuditRepository) SaveNotificationLog(ctx context.Context, entry *model.NotificationLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to save notification log: %w", err)
	}
	return nil
}

// ListEstimateLogs 按时间倒序分页列出估算记录。
func (r *gormAuditRepository) ListEstimateLogs(ctx context.Context, page, pageSize int) ([]model.EstimateLog, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&model.EstimateLog{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count estimate logs: %w", err)
	}

	var logs []model.EstimateLog
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&logs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list estimate logs: %w", err)
	}
	return logs, total, nil
}
