// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"scope-chat-go/internal/model"
)

// 会话状态的保留时长，与令牌有效期同量级。
const sessionTTL = 7 * 24 * time.Hour

// 估算进行中标志的保护时长：防止调用方异常退出后会话永久锁死。
const estimatingTTL = 2 * time.Minute

// SessionRepository 定义了会话状态三个持久化槽位
//（消息、最近估算、联系方式）及进行中标志的操作接口。
type SessionRepository interface {
	GetMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
	SaveMessages(ctx context.Context, sessionID string, messages []model.ChatMessage) error
	GetEstimate(ctx context.Context, sessionID string) (*model.Estimate, error)
	SaveEstimate(ctx context.Context, sessionID string, estimate *model.Estimate) error
	GetContact(ctx context.Context, sessionID string) (model.ContactSlot, error)
	SaveContact(ctx context.Context, sessionID string, contact model.ContactSlot) error

	// TryBeginEstimation 以原子方式设置估算进行中标志；
	// 返回 false 表示该会话已有一次估算在途。
	TryBeginEstimation(ctx context.Context, sessionID string) (bool, error)
	EndEstimation(ctx context.Context, sessionID string) error

	// MarkSummarySent 写入摘要已发送的瞬态标记，供前端展示成功状态。
	MarkSummarySent(ctx context.Context, sessionID string, ttl time.Duration) error
	SummarySent(ctx context.Context, sessionID string) (bool, error)
}

type redisSessionRepository struct {
	redisClient *redis.Client
}

// NewSessionRepository 创建一个新的 SessionRepository 实例。
func NewSessionRepository(redisClient *redis.Client) SessionRepository {
	return &redisSessionRepository{redisClient: redisClient}
}

func messagesKey(sessionID string) string { return fmt.Sprintf("session:%s:messages", sessionID) }
func estimateKey(sessionID string) string { return fmt.Sprintf("session:%s:estimate", sessionID) }
func contactKey(sessionID string) string  { return fmt.Sprintf("session:%s:contact", sessionID) }
func estimatingKey(sessionID string) string {
	return fmt.Sprintf("session:%s:estimating", sessionID)
}
func summarySentKey(sessionID string) string {
	return fmt.Sprintf("session:%s:summary_sent", sessionID)
}

// GetMessages 从 Redis 读取会话的消息历史，缺失时返回空列表。
func (r *redisSessionRepository) GetMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	jsonData, err := r.redisClient.Get(ctx, messagesKey(sessionID)).Result()
	if err == redis.Nil {
		return []model.ChatMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session messages: %w", err)
	}
	var messages []model.ChatMessage
	if err := json.Unmarshal([]byte(jsonData), &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session messages: %w", err)
	}
	return messages, nil
}

// SaveMessages 以 JSON 整体覆盖会话的消息历史。
func (r *redisSessionRepository) SaveMessages(ctx context.Context, sessionID string, messages []model.ChatMessage) error {
	jsonData, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal session messages: %w", err)
	}
	if err := r.redisClient.Set(ctx, messagesKey(sessionID), jsonData, sessionTTL).Err(); err != nil {
		return fmt.Errorf("failed to set session messages: %w", err)
	}
	return nil
}

// GetEstimate 读取最近一次估算结果，缺失时返回 nil。
func (r *redisSessionRepository) GetEstimate(ctx context.Context, sessionID string) (*model.Estimate, error) {
	jsonData, err := r.redisClient.Get(ctx, estimateKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session estimate: %w", err)
	}
	var estimate model.Estimate
	if err := json.Unmarshal([]byte(jsonData), &estimate); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session estimate: %w", err)
	}
	return &estimate, nil
}

// SaveEstimate 覆盖最近一次估算结果。
func (r *redisSessionRepository) SaveEstimate(ctx context.Context, sessionID string, estimate *model.Estimate) error {
	if estimate == nil {
		return nil
	}
	jsonData, err := json.Marshal(estimate)
	if err != nil {
		return fmt.Errorf("failed to marshal session estimate: %w", err)
	}
	if err := r.redisClient.Set(ctx, estimateKey(sessionID), jsonData, sessionTTL).Err(); err != nil {
		return fmt.Errorf("failed to set session estimate: %w", err)
	}
	return nil
}

// GetContact 读取会话的联系方式槽位，缺失时返回零值。
func (r *redisSessionRepository) GetContact(ctx context.Context, sessionID string) (model.ContactSlot, error) {
	jsonData, err := r.redisClient.Get(ctx, contactKey(sessionID)).Result()
	if err == redis.Nil {
		return model.ContactSlot{}, nil
	}
	if err != nil {
		return model.ContactSlot{}, fmt.Errorf("failed to get session contact: %w", err)
	}
	var contact model.ContactSlot
	if err := json.Unmarshal([]byte(jsonData), &contact); err != nil {
		return model.ContactSlot{}, fmt.Errorf("failed to unmarshal session contact: %w", err)
	}
	return contact, nil
}

// SaveContact 覆盖会话的联系方式槽位。
func (r *redisSessionRepository) SaveContact(ctx context.Context, sessionID string, contact model.ContactSlot) error {
	jsonData, err := json.Marshal(contact)
	if err != nil {
		return fmt.Errorf("failed to marshal session contact: %w", err)
	}
	if err := r.redisClient.Set(ctx, contactKey(sessionID), jsonData, sessionTTL).Err(); err != nil {
		return fmt.Errorf("failed to set session contact: %w", err)
	}
	return nil
}

// TryBeginEstimation 用 SETNX 抢占估算进行中标志。
func (r *redisSessionRepository) TryBeginEstimation(ctx context.Context, sessionID string) (bool, error) {
	ok, err := r.redisClient.SetNX(ctx, estimatingKey(sessionID), "1", estimatingTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set estimating flag: %w", err)
	}
	return ok, nil
}

// EndEstimation 清除估算进行中标志。
func (r *redisSessionRepository) EndEstimation(ctx context.Context, sessionID string) error {
	if err := r.redisClient.Del(ctx, estimatingKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear estimating flag: %w", err)
	}
	return nil
}

// MarkSummarySent 写入摘要已发送的瞬态标记。
func (r *redisSessionRepository) MarkSummarySent(ctx context.Context, sessionID string, ttl time.Duration) error {
	if err := r.redisClient.Set(ctx, summarySentKey(sessionID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to set summary sent flag: %w", err)
	}
	return nil
}

// SummarySent 查询摘要已发送标记是否仍然有效。
func (r *redisSessionRepository) SummarySent(ctx context.Context, sessionID string) (bool, error) {
	_, err := r.redisClient.Get(ctx, summarySentKey(sessionID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get summary sent flag: %w", err)
	}
	return true, nil
}
