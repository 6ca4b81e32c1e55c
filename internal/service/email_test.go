package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"scope-chat-go/internal/model"
)

func TestValidEmail(t *testing.T) {
	require.True(t, ValidEmail("jane@example.com"))
	require.True(t, ValidEmail("jane.doe+tag@sub.example.co"))
	require.False(t, ValidEmail(""))
	require.False(t, ValidEmail("not-an-email"))
	require.False(t, ValidEmail("jane@example"))
	// 整串匹配：邮箱前后带文字的不算显式合法值
	require.False(t, ValidEmail("reach me at jane@example.com"))
}

func TestExtractEmailFromMessageLastMatchWins(t *testing.T) {
	m := model.TextMessage(model.RoleUser, "old: a@example.com, use b@example.com instead")
	require.Equal(t, "b@example.com", ExtractEmailFromMessage(m))

	require.Equal(t, "", ExtractEmailFromMessage(model.TextMessage(model.RoleUser, "no email here")))
}

func TestExtractLastUserEmail(t *testing.T) {
	messages := []model.ChatMessage{
		model.TextMessage(model.RoleAssistant, "what's your email?"),
		model.TextMessage(model.RoleUser, "it's first@example.com"),
		model.TextMessage(model.RoleAssistant, "assistant mentions bot@example.com"),
		model.TextMessage(model.RoleUser, "actually use second@example.com"),
	}
	// 只扫描用户消息，后出现的匹配胜出
	require.Equal(t, "second@example.com", ExtractLastUserEmail(messages))

	require.Equal(t, "", ExtractLastUserEmail([]model.ChatMessage{
		model.TextMessage(model.RoleAssistant, "only@example.com"),
	}))
}

func TestLatestUserMessage(t *testing.T) {
	messages := []model.ChatMessage{
		model.TextMessage(model.RoleAssistant, "hi"),
		model.TextMessage(model.RoleUser, "first"),
		model.TextMessage(model.RoleAssistant, "ok"),
		model.TextMessage(model.RoleUser, "second"),
	}
	m, ok := LatestUserMessage(messages)
	require.True(t, ok)
	require.Equal(t, "second", m.PlainText())

	_, ok = LatestUserMessage([]model.ChatMessage{model.TextMessage(model.RoleAssistant, "hi")})
	require.False(t, ok)
}
