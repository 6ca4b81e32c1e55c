package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"scope-chat-go/internal/config"
	"scope-chat-go/internal/model"
	"scope-chat-go/internal/repository"
	"scope-chat-go/pkg/imagedata"
	"scope-chat-go/pkg/llm"
	"scope-chat-go/pkg/log"
	"scope-chat-go/pkg/records"
	"scope-chat-go/pkg/tasks"
)

// 摘要不可用时写入下游的固定兜底句子，保证概览永远不缺失。
const fallbackOverview = "A client submitted a project scoping conversation, but an automatic summary could not be generated. Please review the full conversation transcript below."

// 模型在无法生成摘要时被要求返回的哨兵串。
const summaryFailedSentinel = "SUMMARY_UNAVAILABLE"

// 记录字段的默认占位值。
const (
	noEmailPlaceholder = "No email provided"
	noTierPlaceholder  = "Not specified"
)

// 附件上传的并发上限。
const attachmentWorkers = 4

// QuestionAnswer 是问卷中的一问一答。
type QuestionAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// SummaryRequest 是一次摘要与通知请求的全部入参。
type SummaryRequest struct {
	SessionID       string
	Messages        []model.ChatMessage
	Estimate        *model.Estimate
	UserEmail       string
	ContactInfo     string
	QuestionAnswers []QuestionAnswer
}

// SummaryResult 是摘要与通知流程的产出。
type SummaryResult struct {
	Overview         string
	Estimate         model.Estimate
	EmailContent     EmailContent
	RecordID         string
	AttachmentTotal  int
	AttachmentFailed int
}

// SummaryIndexer 把摘要文档写入搜索索引，失败不致命。
type SummaryIndexer func(ctx context.Context, doc model.SummaryDocument) error

// ArchiveProducer 把图片归档任务投递到消息队列，失败不致命。
type ArchiveProducer func(task tasks.ImageArchiveTask) error

// SummaryService 定义了对话摘要与外部通知的业务接口。
type SummaryService interface {
	Summarize(ctx context.Context, req SummaryRequest) (*SummaryResult, error)
}

type summaryService struct {
	llmClient     llm.Client
	recordsClient records.Client
	llmCfg        config.LLMConfig
	emailCfg      config.EmailConfig
	auditRepo     repository.AuditRepository
	indexer       SummaryIndexer
	archiver      ArchiveProducer
}

// NewSummaryService 创建一个新的 SummaryService 实例。
// auditRepo、indexer、archiver 均可为 nil，对应的旁路功能被关闭。
func NewSummaryService(
	llmClient llm.Client,
	recordsClient records.Client,
	llmCfg config.LLMConfig,
	emailCfg config.EmailConfig,
	auditRepo repository.AuditRepository,
	indexer SummaryIndexer,
	archiver ArchiveProducer,
) SummaryService {
	return &summaryService{
		llmClient:     llmClient,
		recordsClient: recordsClient,
		llmCfg:        llmCfg,
		emailCfg:      emailCfg,
		auditRepo:     auditRepo,
		indexer:       indexer,
		archiver:      archiver,
	}
}

func (s *summaryService) Summarize(ctx context.Context, req SummaryRequest) (*SummaryResult, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("%w: messages must be a non-empty array", ErrInvalidRequest)
	}

	// 1. 压平对话并生成概览
	transcript := FlattenTranscript(req.Messages)
	overview, err := s.summarize(ctx, transcript)
	if err != nil {
		return nil, fmt.Errorf("summarization failed: %w", err)
	}

	// 2. 确定邮箱：显式合法值优先，否则扫描最近一条用户消息
	email := s.identifyEmail(req)

	// 3. 组装邮件内容
	estimate := model.Estimate{NextSteps: []string{}, MissingInfo: []string{}}
	if req.Estimate != nil {
		estimate = *req.Estimate
		if estimate.NextSteps == nil {
			estimate.NextSteps = []string{}
		}
		if estimate.MissingInfo == nil {
			estimate.MissingInfo = []string{}
		}
	}

	displayEmail := email
	if displayEmail == "" {
		displayEmail = noEmailPlaceholder
	}
	tier := estimate.RecommendedPackage
	if tier == "" {
		tier = noTierPlaceholder
	}
	subject := s.buildSubject(email, tier)

	questionnaire := questionnaireText(req.QuestionAnswers, estimate.MissingInfo)
	nextSteps := numberedList(estimate.NextSteps)

	content := buildEmailContent(emailContentInput{
		Subject:           subject,
		Overview:          overview,
		Email:             displayEmail,
		ContactInfo:       req.ContactInfo,
		BudgetRange:       orPlaceholder(estimate.BudgetRange, noTierPlaceholder),
		Tier:              tier,
		NextStepsText:     nextSteps,
		QuestionnaireText: questionnaire,
		ConversationText:  transcript,
		To:                s.emailCfg.To,
		ReplyTo:           email,
	})

	// 两个版本都必须逐字包含概览文本；违反只记错误日志，不使请求失败
	if !strings.Contains(content.Text, overview) || !strings.Contains(content.HTML, html.EscapeString(overview)) {
		log.Errorw("邮件内容缺失概览原文", "subject", subject)
	}

	// 4. 创建外部记录
	recordID, err := s.recordsClient.CreateRecord(ctx, map[string]interface{}{
		"Email":         displayEmail,
		"Contact Info":  req.ContactInfo,
		"Subject":       subject,
		"Overview":      overview,
		"Budget Range":  estimate.BudgetRange,
		"Tier":          tier,
		"Next Steps":    nextSteps,
		"Questionnaire": questionnaire,
		"Conversation":  transcript,
	})
	if err != nil {
		return nil, fmt.Errorf("record creation failed: %w", err)
	}

	// 5. 并发上传附件，部分失败不影响请求成功
	imageURIs := model.CollectImageURIs(req.Messages)
	failed := s.uploadAttachments(ctx, recordID, imageURIs)

	// 旁路：搜索索引、归档队列、审计库，全部尽力而为
	s.sideEffects(req, recordID, email, tier, estimate.BudgetRange, overview, transcript, imageURIs, failed)

	return &SummaryResult{
		Overview:         overview,
		Estimate:         estimate,
		EmailContent:     content,
		RecordID:         recordID,
		AttachmentTotal:  len(imageURIs),
		AttachmentFailed: failed,
	}, nil
}

// summarize 请求外部模型生成 2-4 段的英文概览。
// 模型返回空串或哨兵串时使用固定兜底句子，概览永远不缺失。
func (s *summaryService) summarize(ctx context.Context, transcript string) (string, error) {
	prompt := "Summarize the following project scoping conversation in 2-4 plain-English paragraphs. " +
		"Cover: what the client wants, their expectations, relevant context, and the key discussion points. " +
		"If you cannot produce a summary, reply with exactly " + summaryFailedSentinel + ".\n\n" + transcript

	raw, err := s.llmClient.Complete(ctx, llm.CompletionRequest{
		Model: s.llmCfg.Model,
		Messages: []llm.Message{
			{Role: model.RoleSystem, Content: "You write concise project summaries for a freelance web developer."},
			{Role: model.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}

	overview := strings.TrimSpace(raw)
	if overview == "" || strings.Contains(overview, summaryFailedSentinel) {
		log.Warnf("摘要生成返回空结果或失败哨兵，使用兜底文案")
		return fallbackOverview, nil
	}
	return overview, nil
}

// identifyEmail 优先返回语法合法的显式邮箱；
// 否则从最近一条用户消息中取最后一个邮箱匹配。
func (s *summaryService) identifyEmail(req SummaryRequest) string {
	if ValidEmail(req.UserEmail) {
		return req.UserEmail
	}
	if m, ok := LatestUserMessage(req.Messages); ok {
		if email := ExtractEmailFromMessage(m); email != "" {
			return email
		}
	}
	return ""
}

func (s *summaryService) buildSubject(email, tier string) string {
	prefix := s.emailCfg.SubjectPrefix
	if prefix == "" {
		prefix = "New project inquiry"
	}
	subject := prefix
	if email != "" {
		subject += " from " + email
	}
	if tier != "" && tier != noTierPlaceholder {
		subject += " — " + tier
	}
	return subject
}

// uploadAttachments 解析并上传所有图片引用，返回失败数量。
// 上传以有上限的并发执行，单个失败只告警并计数。
func (s *summaryService) uploadAttachments(ctx context.Context, recordID string, imageURIs []string) int {
	if len(imageURIs) == 0 {
		return 0
	}
	if recordID == "" {
		log.Warnf("记录创建未返回 ID，跳过 %d 个附件上传", len(imageURIs))
		return len(imageURIs)
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	sem := make(chan struct{}, attachmentWorkers)

	for _, uri := range imageURIs {
		wg.Add(1)
		sem <- struct{}{}
		go func(uri string) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.uploadOne(ctx, recordID, uri); err != nil {
				log.Warnw("附件上传失败，已跳过", "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(uri)
	}
	wg.Wait()

	if failed > 0 {
		log.Warnf("附件上传部分失败: %d/%d", failed, len(imageURIs))
	}
	return failed
}

func (s *summaryService) uploadOne(ctx context.Context, recordID, uri string) error {
	resolved, err := imagedata.Resolve(ctx, uri)
	if err != nil {
		return fmt.Errorf("resolve image: %w", err)
	}
	filename := imagedata.SanitizeFilename(resolved.Filename)
	if err := s.recordsClient.UploadAttachment(ctx, recordID, filename, resolved.ContentType, resolved.Data); err != nil {
		return fmt.Errorf("upload attachment %s: %w", filename, err)
	}
	return nil
}

// sideEffects 执行全部旁路动作：搜索索引、归档任务、审计落库。
// 均使用后台上下文并只记日志，绝不影响主流程结果。
func (s *summaryService) sideEffects(req SummaryRequest, recordID, email, tier, budget, overview, transcript string, imageURIs []string, failed int) {
	bg := context.Background()

	if s.indexer != nil {
		doc := model.SummaryDocument{
			DocID:            uuid.NewString(),
			SessionID:        req.SessionID,
			Email:            email,
			Tier:             tier,
			BudgetRange:      budget,
			Overview:         overview,
			ConversationText: transcript,
			CreatedAt:        time.Now(),
		}
		if err := s.indexer(bg, doc); err != nil {
			log.Errorf("摘要文档索引失败: %v", err)
		}
	}

	if s.archiver != nil {
		for i, uri := range imageURIs {
			task := tasks.ImageArchiveTask{
				SessionID: req.SessionID,
				ImageURI:  uri,
				Filename:  fmt.Sprintf("attachment-%d", i+1),
			}
			if err := s.archiver(task); err != nil {
				log.Errorf("图片归档任务投递失败: %v", err)
			}
		}
	}

	if s.auditRepo != nil {
		entry := &model.NotificationLog{
			SessionID:        req.SessionID,
			Email:            email,
			Tier:             tier,
			BudgetRange:      budget,
			RecordID:         recordID,
			AttachmentTotal:  len(imageURIs),
			AttachmentFailed: failed,
		}
		if err := s.auditRepo.SaveNotificationLog(bg, entry); err != nil {
			log.Errorf("通知审计记录落库失败: %v", err)
		}
	}
}

// FlattenTranscript 把对话压平为纯文本转写：
// "User:"/"Assistant:" 行，图片分片转为内联计数注记，不嵌入图片数据。
func FlattenTranscript(messages []model.ChatMessage) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		label := "Assistant"
		if m.Role == model.RoleUser {
			label = "User"
		}
		text := m.PlainText()
		imgs := m.ImageCount()
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(text)
		if imgs > 0 {
			if text != "" {
				b.WriteString(" ")
			}
			b.WriteString(fmt.Sprintf("[%d image(s) attached]", imgs))
		}
	}
	return b.String()
}

// questionnaireText 把问卷问答与待补充信息合并为编号文本块。
func questionnaireText(answers []QuestionAnswer, missingInfo []string) string {
	var items []string
	for _, qa := range answers {
		items = append(items, fmt.Sprintf("%s — %s", qa.Question, qa.Answer))
	}
	for _, mi := range missingInfo {
		items = append(items, fmt.Sprintf("Still missing: %s", mi))
	}
	return numberedList(items)
}

func orPlaceholder(s, placeholder string) string {
	if s == "" {
		return placeholder
	}
	return s
}
