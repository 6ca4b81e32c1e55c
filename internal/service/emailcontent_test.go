package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildEmailContentEscapesHTML(t *testing.T) {
	content := buildEmailContent(emailContentInput{
		Subject:          "New project inquiry",
		Overview:         `The client wants a <script>alert("x")</script> widget & more.`,
		Email:            "jane@example.com",
		BudgetRange:      "$1,500-$2,500",
		Tier:             "Business Website",
		ConversationText: "User: hello",
		To:               "owner@example.com",
	})

	// HTML 版本不得出现未转义的用户文本
	require.NotContains(t, content.HTML, "<script>")
	require.Contains(t, content.HTML, "&lt;script&gt;")
	require.Contains(t, content.HTML, "&amp; more.")

	// 纯文本版本保留原文
	require.Contains(t, content.Text, `<script>alert("x")</script> widget & more.`)
}

func TestBuildEmailContentContainsOverviewVerbatim(t *testing.T) {
	overview := "First paragraph.\n\nSecond paragraph with details."
	content := buildEmailContent(emailContentInput{
		Subject:  "New project inquiry",
		Overview: overview,
		Email:    "jane@example.com",
		To:       "owner@example.com",
	})

	require.Contains(t, content.Text, overview)
	// 概览不含需要转义的字符时，HTML 中也应逐字出现
	require.Contains(t, content.HTML, overview)
}

func TestBuildEmailContentOmitsEmptySections(t *testing.T) {
	content := buildEmailContent(emailContentInput{
		Subject:  "New project inquiry",
		Overview: "short overview",
		Email:    "jane@example.com",
		To:       "owner@example.com",
	})

	require.NotContains(t, content.HTML, "Next steps")
	require.NotContains(t, content.HTML, "Questionnaire")
	require.NotContains(t, content.Text, "NEXT STEPS")
	require.NotContains(t, content.Text, "QUESTIONNAIRE")
}

func TestBuildEmailContentIncludesOptionalSections(t *testing.T) {
	content := buildEmailContent(emailContentInput{
		Subject:           "New project inquiry",
		Overview:          "short overview",
		Email:             "jane@example.com",
		ContactInfo:       "+1 555 0100",
		NextStepsText:     "1. Book a call",
		QuestionnaireText: "1. Logo? — Yes",
		To:                "owner@example.com",
		ReplyTo:           "jane@example.com",
	})

	require.Contains(t, content.HTML, "Next steps")
	require.Contains(t, content.Text, "1. Book a call")
	require.Contains(t, content.Text, "+1 555 0100")
	require.Equal(t, "jane@example.com", content.ReplyTo)
}

func TestNumberedList(t *testing.T) {
	require.Equal(t, "", numberedList(nil))
	require.Equal(t, "1. one", numberedList([]string{"one"}))
	require.Equal(t, "1. one\n2. two", numberedList([]string{"one", "two"}))
	require.False(t, strings.HasSuffix(numberedList([]string{"one"}), "\n"))
}
