package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"scope-chat-go/internal/config"
	"scope-chat-go/internal/model"
	"scope-chat-go/internal/repository"
	"scope-chat-go/pkg/log"
)

// 单条消息的附件规则。
const (
	maxImagesPerMessage = 3
	maxImageBytes       = 20 << 20 // 20MB
)

// 摘要发送成功状态的展示时长。
const summarySentTTL = 2 * time.Minute

// 会话开场白的默认文案，可被配置覆盖。
const defaultGreeting = "Hi! I'm the scoping assistant. Tell me a bit about your project — what are you looking to build?"

var allowedImageMimes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
	"image/gif":  true,
}

// 会话事件类型，经 WebSocket 推送给订阅的前端。
const (
	EventEstimateDone = "estimate_done"
	EventSummarySent  = "summary_sent"
)

// Notifier 把会话事件推送给订阅的连接，实现方为 hub。
type Notifier interface {
	Publish(sessionID, eventType string)
}

// ImageAttachment 是一次提交中随消息附带的一张图片。
type ImageAttachment struct {
	URI       string `json:"uri"`
	MimeType  string `json:"mimeType,omitempty"`
	SizeBytes int64  `json:"sizeBytes,omitempty"`
}

// SubmitResult 是一次消息提交的产出。
type SubmitResult struct {
	Messages     []model.ChatMessage `json:"messages"`
	LastEstimate *model.Estimate     `json:"lastEstimate,omitempty"`
	Contact      model.ContactSlot   `json:"contact"`
	// Warning 是附件截断等非致命问题的用户可见提示。
	Warning string `json:"warning,omitempty"`
}

// SessionView 是会话状态的完整只读快照。
type SessionView struct {
	SessionID      string              `json:"sessionId"`
	Messages       []model.ChatMessage `json:"messages"`
	LastEstimate   *model.Estimate     `json:"lastEstimate,omitempty"`
	Contact        model.ContactSlot   `json:"contact"`
	CanSendSummary bool                `json:"canSendSummary"`
	SummarySent    bool                `json:"summarySent"`
}

// SessionService 定义了聊天会话的业务接口。
type SessionService interface {
	// CreateSession 创建一个以固定开场白起始的新会话。
	CreateSession(ctx context.Context) (*SessionView, error)
	// GetSession 返回会话状态；没有持久化数据时回退到仅含开场白的状态。
	GetSession(ctx context.Context, sessionID string) (*SessionView, error)
	// SubmitMessage 提交一轮用户输入（文本和/或图片）并触发估算。
	SubmitMessage(ctx context.Context, sessionID, text string, images []ImageAttachment) (*SubmitResult, error)
	// UpdateContact 更新显式联系方式；邮箱要么为空要么必须语法合法。
	UpdateContact(ctx context.Context, sessionID, email, contactInfo string) (model.ContactSlot, error)
	// SendSummary 在前置条件满足时生成摘要并推送外部通知。
	SendSummary(ctx context.Context, sessionID, contactInfo string, answers []QuestionAnswer) (*SummaryResult, error)
}

type sessionService struct {
	sessionRepo     repository.SessionRepository
	estimateService EstimateService
	summaryService  SummaryService
	notifier        Notifier
	greeting        string
}

// NewSessionService 创建一个新的 SessionService 实例。notifier 可为 nil。
func NewSessionService(
	sessionRepo repository.SessionRepository,
	estimateService EstimateService,
	summaryService SummaryService,
	notifier Notifier,
	catalog config.CatalogConfig,
) SessionService {
	greeting := catalog.Greeting
	if greeting == "" {
		greeting = defaultGreeting
	}
	return &sessionService{
		sessionRepo:     sessionRepo,
		estimateService: estimateService,
		summaryService:  summaryService,
		notifier:        notifier,
		greeting:        greeting,
	}
}

func (s *sessionService) CreateSession(ctx context.Context) (*SessionView, error) {
	sessionID := uuid.NewString()
	messages := []model.ChatMessage{model.TextMessage(model.RoleAssistant, s.greeting)}
	if err := s.sessionRepo.SaveMessages(ctx, sessionID, messages); err != nil {
		return nil, fmt.Errorf("failed to persist new session: %w", err)
	}
	return &SessionView{SessionID: sessionID, Messages: messages}, nil
}

func (s *sessionService) GetSession(ctx context.Context, sessionID string) (*SessionView, error) {
	messages, estimate, contact, err := s.loadState(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sent, err := s.sessionRepo.SummarySent(ctx, sessionID)
	if err != nil {
		log.Warnf("读取摘要发送标记失败: %v", err)
		sent = false
	}
	return &SessionView{
		SessionID:      sessionID,
		Messages:       messages,
		LastEstimate:   estimate,
		Contact:        contact,
		CanSendSummary: canSendSummary(messages, estimate, contact),
		SummarySent:    sent,
	}, nil
}

func (s *sessionService) SubmitMessage(ctx context.Context, sessionID, text string, images []ImageAttachment) (*SubmitResult, error) {
	text = strings.TrimSpace(text)
	if text == "" && len(images) == 0 {
		return nil, fmt.Errorf("%w: a message needs text or at least one image", ErrInvalidRequest)
	}

	// 附件规则：类型与大小校验、按 URI 去重、上限 3 张
	set := NewAttachmentSet(nil)
	for _, img := range images {
		if err := set.Add(img); err != nil {
			return nil, err
		}
	}
	warning := set.Warning()

	// 同一会话不允许并发估算
	ok, err := s.sessionRepo.TryBeginEstimation(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire estimation slot: %w", err)
	}
	if !ok {
		return nil, ErrSessionBusy
	}
	defer func() {
		if err := s.sessionRepo.EndEstimation(ctx, sessionID); err != nil {
			log.Warnf("清除估算标志失败: %v", err)
		}
	}()

	messages, _, contact, err := s.loadState(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	messages = append(messages, buildUserMessage(text, set.Images()))
	// 先持久化用户消息：即使估算失败，已渲染的历史也不能丢
	if err := s.sessionRepo.SaveMessages(ctx, sessionID, messages); err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}

	result, err := s.estimateService.Estimate(ctx, sessionID, messages)
	if err != nil {
		// 不追加助手消息，调用方展示通用重试文案
		return nil, fmt.Errorf("estimation failed: %w", err)
	}

	messages = append(messages, model.TextMessage(model.RoleAssistant, result.Message))
	if err := s.sessionRepo.SaveMessages(ctx, sessionID, messages); err != nil {
		return nil, fmt.Errorf("failed to persist assistant reply: %w", err)
	}
	if err := s.sessionRepo.SaveEstimate(ctx, sessionID, &result.Estimate); err != nil {
		log.Warnf("持久化估算结果失败: %v", err)
	}

	contact = s.applyContactUpdates(ctx, sessionID, contact, result.Autofill, messages)

	if s.notifier != nil {
		s.notifier.Publish(sessionID, EventEstimateDone)
	}

	return &SubmitResult{
		Messages:     messages,
		LastEstimate: &result.Estimate,
		Contact:      contact,
		Warning:      warning,
	}, nil
}

func (s *sessionService) UpdateContact(ctx context.Context, sessionID, email, contactInfo string) (model.ContactSlot, error) {
	if email != "" && !ValidEmail(email) {
		return model.ContactSlot{}, fmt.Errorf("%w: email address is not valid", ErrInvalidRequest)
	}
	contact := model.ContactSlot{Email: email, ContactInfo: contactInfo}
	if err := s.sessionRepo.SaveContact(ctx, sessionID, contact); err != nil {
		return model.ContactSlot{}, fmt.Errorf("failed to persist contact: %w", err)
	}
	return contact, nil
}

func (s *sessionService) SendSummary(ctx context.Context, sessionID, contactInfo string, answers []QuestionAnswer) (*SummaryResult, error) {
	messages, estimate, contact, err := s.loadState(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !canSendSummary(messages, estimate, contact) {
		return nil, fmt.Errorf("%w: need a conversation, a complete estimate and a valid email", ErrSummaryNotReady)
	}

	if contactInfo == "" {
		contactInfo = contact.ContactInfo
	}

	result, err := s.summaryService.Summarize(ctx, SummaryRequest{
		SessionID:       sessionID,
		Messages:        messages,
		Estimate:        estimate,
		UserEmail:       contact.Email,
		ContactInfo:     contactInfo,
		QuestionAnswers: answers,
	})
	if err != nil {
		return nil, err
	}

	if err := s.sessionRepo.MarkSummarySent(ctx, sessionID, summarySentTTL); err != nil {
		log.Warnf("写入摘要发送标记失败: %v", err)
	}
	if s.notifier != nil {
		s.notifier.Publish(sessionID, EventSummarySent)
	}
	return result, nil
}

// loadState 读取会话三个槽位；消息槽位缺失时回退到仅含开场白的初始状态。
func (s *sessionService) loadState(ctx context.Context, sessionID string) ([]model.ChatMessage, *model.Estimate, model.ContactSlot, error) {
	messages, err := s.sessionRepo.GetMessages(ctx, sessionID)
	if err != nil {
		return nil, nil, model.ContactSlot{}, fmt.Errorf("failed to load session messages: %w", err)
	}
	if len(messages) == 0 {
		messages = []model.ChatMessage{model.TextMessage(model.RoleAssistant, s.greeting)}
	}

	estimate, err := s.sessionRepo.GetEstimate(ctx, sessionID)
	if err != nil {
		log.Warnf("读取会话估算槽位失败: %v", err)
		estimate = nil
	}
	contact, err := s.sessionRepo.GetContact(ctx, sessionID)
	if err != nil {
		log.Warnf("读取会话联系方式槽位失败: %v", err)
		contact = model.ContactSlot{}
	}
	return messages, estimate, contact, nil
}

// applyContactUpdates 依次应用模型回填建议与被动邮箱扫描，
// 显式合法的邮箱值永远不被覆盖。
func (s *sessionService) applyContactUpdates(ctx context.Context, sessionID string, contact model.ContactSlot, autofill *model.ContactSlot, messages []model.ChatMessage) model.ContactSlot {
	changed := false

	if autofill != nil {
		if !ValidEmail(contact.Email) && ValidEmail(autofill.Email) {
			contact.Email = autofill.Email
			changed = true
		}
		if contact.ContactInfo == "" && autofill.ContactInfo != "" {
			contact.ContactInfo = autofill.ContactInfo
			changed = true
		}
	}

	// 被动扫描在每次消息变化后运行，后出现的匹配胜出
	if !ValidEmail(contact.Email) {
		if email := ExtractLastUserEmail(messages); email != "" && ValidEmail(email) {
			contact.Email = email
			changed = true
		}
	}

	if changed {
		if err := s.sessionRepo.SaveContact(ctx, sessionID, contact); err != nil {
			log.Warnf("持久化联系方式失败: %v", err)
		}
	}
	return contact
}

// canSendSummary 判断摘要发送的前置条件：
// 对话已越过开场白、估算同时具备预算与档位、存在合法邮箱。
func canSendSummary(messages []model.ChatMessage, estimate *model.Estimate, contact model.ContactSlot) bool {
	return len(messages) > 1 && estimate.Complete() && ValidEmail(contact.Email)
}

// buildUserMessage 把文本与图片合并为一条用户消息：
// 只有文本时内容为纯字符串，带图片时为分片数组。
func buildUserMessage(text string, images []ImageAttachment) model.ChatMessage {
	if len(images) == 0 {
		return model.TextMessage(model.RoleUser, text)
	}
	parts := make([]model.ContentPart, 0, len(images)+1)
	if text != "" {
		parts = append(parts, model.ContentPart{Type: model.PartTypeText, Text: text})
	}
	for _, img := range images {
		parts = append(parts, model.ContentPart{
			Type:     model.PartTypeImage,
			ImageURL: &model.ImageRef{URL: img.URI},
		})
	}
	return model.ChatMessage{Role: model.RoleUser, Content: parts}
}
