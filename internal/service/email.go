package service

import (
	"regexp"

	"scope-chat-go/internal/model"
)

// 邮箱模式匹配是尽力而为的建议机制：显式填写的邮箱字段始终是最终判定依据。
var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

var emailExactPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidEmail 判断整个字符串是否是一个语法合法的邮箱地址。
func ValidEmail(s string) bool {
	return s != "" && emailExactPattern.MatchString(s)
}

// lastEmailIn 返回文本中最后一个邮箱样式的匹配，没有则返回空串。
func lastEmailIn(text string) string {
	matches := emailPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1]
}

// ExtractEmailFromMessage 扫描单条消息的文本内容，返回最后一个邮箱匹配。
func ExtractEmailFromMessage(m model.ChatMessage) string {
	return lastEmailIn(m.PlainText())
}

// ExtractLastUserEmail 按时间顺序扫描所有用户消息，最后出现的匹配胜出。
func ExtractLastUserEmail(messages []model.ChatMessage) string {
	found := ""
	for _, m := range messages {
		if m.Role != model.RoleUser {
			continue
		}
		if email := ExtractEmailFromMessage(m); email != "" {
			found = email
		}
	}
	return found
}

// LatestUserMessage 返回最近的一条用户消息。
func LatestUserMessage(messages []model.ChatMessage) (model.ChatMessage, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == model.RoleUser {
			return messages[i], true
		}
	}
	return model.ChatMessage{}, false
}
