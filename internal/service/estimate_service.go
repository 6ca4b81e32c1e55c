package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"scope-chat-go/internal/config"
	"scope-chat-go/internal/model"
	"scope-chat-go/internal/repository"
	"scope-chat-go/pkg/llm"
	"scope-chat-go/pkg/log"
)

// FallbackReply 是估算失败时返回给前端的降级话术，
// 与正常回复可区分，便于调用方识别传输层故障。
const FallbackReply = "Sorry, I couldn't put together an estimate just now. Please try again in a moment."

// EstimateResult 是一次估算轮次的完整产出。
type EstimateResult struct {
	Message  string
	Estimate model.Estimate
	// Autofill 是模型建议回填的联系方式，仅当邮箱语法合法时由调用方采纳。
	Autofill *model.ContactSlot
	// ModelUsed 记录本轮实际选用的模型，供审计。
	ModelUsed string
}

// EstimateService 定义了范围估算的业务接口。
type EstimateService interface {
	// Estimate 将一段对话发给外部模型并返回结构化估算。
	// sessionID 可为空（无状态代理端点）；非空时轮次会写入审计库。
	Estimate(ctx context.Context, sessionID string, messages []model.ChatMessage) (*EstimateResult, error)
}

type estimateService struct {
	llmClient llm.Client
	llmCfg    config.LLMConfig
	catalog   config.CatalogConfig
	auditRepo repository.AuditRepository
}

// NewEstimateService 创建一个新的 EstimateService 实例。
// auditRepo 可为 nil，此时不落审计库。
func NewEstimateService(llmClient llm.Client, llmCfg config.LLMConfig, catalog config.CatalogConfig, auditRepo repository.AuditRepository) EstimateService {
	return &estimateService{
		llmClient: llmClient,
		llmCfg:    llmCfg,
		catalog:   catalog,
		auditRepo: auditRepo,
	}
}

// defaultCatalog 是配置缺失时使用的内置报价目录。
var defaultCatalog = []config.ServiceOffering{
	{Name: "Landing Page", StartingPrice: "$750", Description: "Single-page site with a contact section, built to convert."},
	{Name: "Business Website", StartingPrice: "$1,500", Description: "Multi-page marketing site with forms and basic SEO."},
	{Name: "E-commerce Store", StartingPrice: "$3,000", Description: "Online store with products, cart and checkout."},
	{Name: "Web Application", StartingPrice: "$5,000", Description: "Custom functionality: accounts, dashboards, integrations."},
	{Name: "Care Plan", StartingPrice: "$75/mo", Description: "Ongoing hosting, updates and small changes."},
}

// estimateOutput 与结构化输出的 JSON Schema 对应。
type estimateOutput struct {
	Reply              string   `json:"reply"`
	BudgetRange        string   `json:"budgetRange"`
	RecommendedPackage string   `json:"recommendedPackage"`
	NextSteps          []string `json:"nextSteps"`
	MissingInfo        []string `json:"missingInfo"`
	Autofill           *struct {
		Email       string `json:"email"`
		ContactInfo string `json:"contactInfo"`
	} `json:"autofill"`
}

func (s *estimateService) Estimate(ctx context.Context, sessionID string, messages []model.ChatMessage) (*EstimateResult, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: messages must be a non-empty array", ErrInvalidRequest)
	}

	// 模型选择只看是否存在图片分片，不做内容分析
	modelName := s.llmCfg.Model
	if model.AnyImage(messages) {
		modelName = s.llmCfg.VisionModel
	}

	llmMessages := make([]llm.Message, 0, len(messages)+1)
	llmMessages = append(llmMessages, llm.Message{Role: model.RoleSystem, Content: s.buildSystemPrompt()})
	for _, m := range messages {
		llmMessages = append(llmMessages, llm.Message{Role: m.Role, Content: mapContent(m)})
	}

	raw, err := s.llmClient.Complete(ctx, llm.CompletionRequest{
		Model:    modelName,
		Messages: llmMessages,
		Schema:   &llm.ResponseSchema{Name: "scope_estimate", Schema: estimateSchema()},
	})
	if err != nil {
		return nil, fmt.Errorf("estimate call failed: %w", err)
	}

	var out estimateOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		log.Errorw("估算结构化输出解析失败", "raw", raw, "error", err)
		return nil, fmt.Errorf("estimate output is not valid JSON: %w", err)
	}
	if out.Reply == "" || out.BudgetRange == "" {
		log.Errorw("估算结构化输出缺少必填字段", "raw", raw)
		return nil, fmt.Errorf("estimate output is missing required fields")
	}

	// 数组字段永远返回空数组而不是 null
	if out.NextSteps == nil {
		out.NextSteps = []string{}
	}
	if out.MissingInfo == nil {
		out.MissingInfo = []string{}
	}

	result := &EstimateResult{
		Message: out.Reply,
		Estimate: model.Estimate{
			BudgetRange:        out.BudgetRange,
			RecommendedPackage: out.RecommendedPackage,
			NextSteps:          out.NextSteps,
			MissingInfo:        out.MissingInfo,
		},
		ModelUsed: modelName,
	}
	if out.Autofill != nil && (out.Autofill.Email != "" || out.Autofill.ContactInfo != "") {
		result.Autofill = &model.ContactSlot{
			Email:       out.Autofill.Email,
			ContactInfo: out.Autofill.ContactInfo,
		}
	}

	s.audit(sessionID, messages, result)
	return result, nil
}

// audit 把本轮估算写入审计库，失败只记日志。
func (s *estimateService) audit(sessionID string, messages []model.ChatMessage, result *EstimateResult) {
	if s.auditRepo == nil {
		return
	}
	question := ""
	if m, ok := LatestUserMessage(messages); ok {
		question = m.PlainText()
	}
	entry := &model.EstimateLog{
		SessionID:          sessionID,
		Question:           question,
		Reply:              result.Message,
		BudgetRange:        result.Estimate.BudgetRange,
		RecommendedPackage: result.Estimate.RecommendedPackage,
		Model:              result.ModelUsed,
	}
	// 与请求生命周期解耦，请求取消不影响审计落库
	if err := s.auditRepo.SaveEstimateLog(context.Background(), entry); err != nil {
		log.Errorf("估算审计记录落库失败: %v", err)
	}
}

// buildSystemPrompt 构建嵌入报价目录与行为准则的系统提示。
func (s *estimateService) buildSystemPrompt() string {
	services := s.catalog.Services
	if len(services) == 0 {
		services = defaultCatalog
	}

	var b strings.Builder
	b.WriteString("You are a friendly project scoping assistant for a freelance web developer. ")
	b.WriteString("Help visitors describe their project and map it to one of the service packages below.\n\n")
	b.WriteString("Service packages (starting prices):\n")
	for _, svc := range services {
		b.WriteString(fmt.Sprintf("- %s — from %s. %s\n", svc.Name, svc.StartingPrice, svc.Description))
	}
	b.WriteString("\nGuidelines:\n")
	b.WriteString("- Be concise and conversational.\n")
	b.WriteString("- Always provide a budget range and the nearest package, even from partial information.\n")
	b.WriteString("- Ask for the details that are still missing.\n")
	b.WriteString("- If the visitor shares an email address or phone number, return it in the autofill field.\n")
	return b.String()
}

// mapContent 将内部消息内容映射为外部 API 的多模态格式：
// 字符串原样透传；分片数组过滤出合法的文本/图片分片，
// 引用非法的图片分片被丢弃（不致命）；过滤后只剩单个文本分片时压平为字符串。
func mapContent(m model.ChatMessage) interface{} {
	if s, ok := m.TextContent(); ok {
		return s
	}
	parts, ok := m.ContentParts()
	if !ok {
		return ""
	}

	filtered := make([]model.ContentPart, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case model.PartTypeText:
			if p.Text != "" {
				filtered = append(filtered, p)
			}
		case model.PartTypeImage:
			if p.ImageURL != nil && model.ValidImageRef(p.ImageURL.URL) {
				filtered = append(filtered, p)
			} else {
				log.Warnf("丢弃引用非法的图片分片")
			}
		}
	}

	if len(filtered) == 1 && filtered[0].Type == model.PartTypeText {
		return filtered[0].Text
	}
	return filtered
}

// estimateSchema 是估算结构化输出的 JSON Schema，
// reply 与 budgetRange 必填，其余可选。
func estimateSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"reply":              map[string]interface{}{"type": "string"},
			"budgetRange":        map[string]interface{}{"type": "string"},
			"recommendedPackage": map[string]interface{}{"type": "string"},
			"nextSteps": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
			"missingInfo": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
			"autofill": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"email":       map[string]interface{}{"type": "string"},
					"contactInfo": map[string]interface{}{"type": "string"},
				},
			},
		},
		"required": []string{"reply", "budgetRange"},
	}
}
