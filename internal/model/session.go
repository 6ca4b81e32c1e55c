package model

// ContactSlot 是会话中留存的联系方式：显式填写的邮箱优先，
// 从消息文本中扫描到的邮箱仅在显式值无效时作为建议采用。
type ContactSlot struct {
	Email       string `json:"email"`
	ContactInfo string `json:"contactInfo"`
}

// SessionState 是一个聊天会话的完整状态快照，
// 对应存储层的三个持久化槽位（消息、最近估算、联系方式）。
type SessionState struct {
	ID           string        `json:"sessionId"`
	Messages     []ChatMessage `json:"messages"`
	LastEstimate *Estimate     `json:"lastEstimate,omitempty"`
	Contact      ContactSlot   `json:"contact"`
}
