package model

import "time"

// Estimate 是一次估算轮次产出的结构化结果。
type Estimate struct {
	BudgetRange        string   `json:"budgetRange"`
	RecommendedPackage string   `json:"recommendedPackage,omitempty"`
	NextSteps          []string `json:"nextSteps"`
	MissingInfo        []string `json:"missingInfo"`
}

// Complete 判断估算是否同时具备预算区间与推荐档位，
// 摘要发送的前置条件之一。
func (e *Estimate) Complete() bool {
	return e != nil && e.BudgetRange != "" && e.RecommendedPackage != ""
}

// EstimateLog 是落库到 MySQL 的估算轮次审计记录。
type EstimateLog struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	SessionID          string    `gorm:"index;size:64" json:"sessionId"`
	Question           string    `gorm:"type:text" json:"question"`
	Reply              string    `gorm:"type:text" json:"reply"`
	BudgetRange        string    `gorm:"size:128" json:"budgetRange"`
	RecommendedPackage string    `gorm:"size:128" json:"recommendedPackage"`
	Model              string    `gorm:"size:64" json:"model"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (EstimateLog) TableName() string {
	return "estimate_logs"
}

// NotificationLog 是落库到 MySQL 的摘要通知审计记录。
type NotificationLog struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	SessionID         string    `gorm:"index;size:64" json:"sessionId"`
	Email             string    `gorm:"size:255" json:"email"`
	Tier              string    `gorm:"size:128" json:"tier"`
	BudgetRange       string    `gorm:"size:128" json:"budgetRange"`
	RecordID          string    `gorm:"size:64" json:"recordId"`
	AttachmentTotal   int       `json:"attachmentTotal"`
	AttachmentFailed  int       `json:"attachmentFailed"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (NotificationLog) TableName() string {
	return "notification_logs"
}

// SummaryDocument 是索引到 Elasticsearch 的对话摘要文档。
type SummaryDocument struct {
	DocID            string    `json:"doc_id"`
	SessionID        string    `json:"session_id"`
	Email            string    `json:"email"`
	Tier             string    `json:"tier"`
	BudgetRange      string    `json:"budget_range"`
	Overview         string    `json:"overview"`
	ConversationText string    `json:"conversation_text"`
	CreatedAt        time.Time `json:"created_at"`
}
