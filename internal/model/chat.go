// Package model 包含了应用的数据模型定义。
package model

import (
	"encoding/json"
	"strings"
)

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// 内容分片类型，与 OpenAI 兼容接口的多模态消息格式对齐。
const (
	PartTypeText  = "text"
	PartTypeImage = "image_url"
)

// ImageRef 是图片分片中的图片引用。
type ImageRef struct {
	URL string `json:"url"`
}

// ContentPart 是消息内容的一个分片：纯文本或图片引用。
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageRef `json:"image_url,omitempty"`
}

// ChatMessage 代表一条对话消息。
// Content 要么是纯字符串，要么是 []ContentPart（文本与图片混排）。
type ChatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// UnmarshalJSON 将 content 解码为 string 或 []ContentPart 两种形态之一。
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = raw.Role
	m.Content = nil
	if len(raw.Content) == 0 {
		return nil
	}

	var s string
	if err := json.Unmarshal(raw.Content, &s); err == nil {
		m.Content = s
		return nil
	}
	var parts []ContentPart
	if err := json.Unmarshal(raw.Content, &parts); err == nil {
		m.Content = parts
		return nil
	}
	// 其余形态原样保留，由上游校验拒绝
	var v interface{}
	if err := json.Unmarshal(raw.Content, &v); err != nil {
		return err
	}
	m.Content = v
	return nil
}

// TextContent 返回 content 为纯字符串时的文本，否则返回空串。
func (m ChatMessage) TextContent() (string, bool) {
	s, ok := m.Content.(string)
	return s, ok
}

// ContentParts 返回 content 为分片数组时的分片列表。
func (m ChatMessage) ContentParts() ([]ContentPart, bool) {
	parts, ok := m.Content.([]ContentPart)
	return parts, ok
}

// PlainText 将消息内容压平为纯文本：字符串原样返回，
// 分片数组拼接其中的文本分片，图片分片忽略。
func (m ChatMessage) PlainText() string {
	if s, ok := m.TextContent(); ok {
		return s
	}
	parts, ok := m.ContentParts()
	if !ok {
		return ""
	}
	var b strings.Builder
	for _, p := range parts {
		if p.Type == PartTypeText && p.Text != "" {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// HasImage 判断消息内容中是否包含图片分片。
func (m ChatMessage) HasImage() bool {
	parts, ok := m.ContentParts()
	if !ok {
		return false
	}
	for _, p := range parts {
		if p.Type == PartTypeImage && p.ImageURL != nil && p.ImageURL.URL != "" {
			return true
		}
	}
	return false
}

// ImageCount 返回消息中图片分片的数量。
func (m ChatMessage) ImageCount() int {
	parts, ok := m.ContentParts()
	if !ok {
		return 0
	}
	n := 0
	for _, p := range parts {
		if p.Type == PartTypeImage && p.ImageURL != nil && p.ImageURL.URL != "" {
			n++
		}
	}
	return n
}

// ImageURIs 收集消息中所有图片引用（不做合法性过滤）。
func (m ChatMessage) ImageURIs() []string {
	parts, ok := m.ContentParts()
	if !ok {
		return nil
	}
	var uris []string
	for _, p := range parts {
		if p.Type == PartTypeImage && p.ImageURL != nil && p.ImageURL.URL != "" {
			uris = append(uris, p.ImageURL.URL)
		}
	}
	return uris
}

// TextMessage 构造一条纯文本消息。
func TextMessage(role, text string) ChatMessage {
	return ChatMessage{Role: role, Content: text}
}

// ValidImageRef 校验图片引用是否合法：
// data:image/ 前缀的内联数据，或 http(s) 绝对地址。
func ValidImageRef(uri string) bool {
	if strings.HasPrefix(uri, "data:image/") {
		return true
	}
	return strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://")
}

// AnyImage 判断消息列表中是否存在图片分片。
func AnyImage(messages []ChatMessage) bool {
	for _, m := range messages {
		if m.HasImage() {
			return true
		}
	}
	return false
}

// CollectImageURIs 收集整个消息列表中的所有图片引用，保持出现顺序。
func CollectImageURIs(messages []ChatMessage) []string {
	var uris []string
	for _, m := range messages {
		uris = append(uris, m.ImageURIs()...)
	}
	return uris
}
