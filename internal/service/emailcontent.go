package service

import (
	"fmt"
	"html"
	"strings"
)

// EmailContent 是组装好的通知邮件内容，随响应返回给调用方，
// 本服务自身不做投递。
type EmailContent struct {
	HTML    string `json:"html"`
	Text    string `json:"text"`
	Subject string `json:"subject"`
	To      string `json:"to"`
	ReplyTo string `json:"replyTo,omitempty"`
}

// emailContentInput 汇总组装邮件所需的全部文本块。
// 所有字段均为未转义的原始文本，HTML 转义在组装时统一完成。
type emailContentInput struct {
	Subject           string
	Overview          string
	Email             string
	ContactInfo       string
	BudgetRange       string
	Tier              string
	NextStepsText     string
	QuestionnaireText string
	ConversationText  string
	To                string
	ReplyTo           string
}

// buildEmailContent 组装 HTML 与纯文本两个版本的邮件内容。
// 用户与模型产出的文本一律先做 HTML 转义再插值，防止注入。
// 概览文本放在单个 pre-wrap 容器内，保证转义后的原文逐字出现。
func buildEmailContent(in emailContentInput) EmailContent {
	esc := html.EscapeString

	var h strings.Builder
	h.WriteString("<!DOCTYPE html><html><body style=\"font-family:Arial,sans-serif;color:#1a1a1a;\">")
	h.WriteString(fmt.Sprintf("<h2 style=\"margin-bottom:4px;\">%s</h2>", esc(in.Subject)))

	h.WriteString("<h3>Contact</h3>")
	h.WriteString(fmt.Sprintf("<p><strong>Email:</strong> %s</p>", esc(in.Email)))
	if in.ContactInfo != "" {
		h.WriteString(fmt.Sprintf("<p><strong>Other contact info:</strong> %s</p>", esc(in.ContactInfo)))
	}

	h.WriteString("<h3>Overview</h3>")
	h.WriteString(fmt.Sprintf("<div style=\"white-space:pre-wrap;\">%s</div>", esc(in.Overview)))

	h.WriteString("<h3>Estimate</h3>")
	h.WriteString(fmt.Sprintf("<p><strong>Budget range:</strong> %s</p>", esc(in.BudgetRange)))
	h.WriteString(fmt.Sprintf("<p><strong>Recommended package:</strong> %s</p>", esc(in.Tier)))

	if in.NextStepsText != "" {
		h.WriteString("<h3>Next steps</h3>")
		h.WriteString(fmt.Sprintf("<div style=\"white-space:pre-wrap;\">%s</div>", esc(in.NextStepsText)))
	}
	if in.QuestionnaireText != "" {
		h.WriteString("<h3>Questionnaire</h3>")
		h.WriteString(fmt.Sprintf("<div style=\"white-space:pre-wrap;\">%s</div>", esc(in.QuestionnaireText)))
	}

	h.WriteString("<h3>Full conversation</h3>")
	h.WriteString(fmt.Sprintf("<pre style=\"white-space:pre-wrap;background:#f5f5f5;padding:12px;\">%s</pre>", esc(in.ConversationText)))
	h.WriteString("</body></html>")

	var t strings.Builder
	t.WriteString(in.Subject + "\n\n")
	t.WriteString("CONTACT\n")
	t.WriteString("Email: " + in.Email + "\n")
	if in.ContactInfo != "" {
		t.WriteString("Other contact info: " + in.ContactInfo + "\n")
	}
	t.WriteString("\nOVERVIEW\n")
	t.WriteString(in.Overview + "\n")
	t.WriteString("\nESTIMATE\n")
	t.WriteString("Budget range: " + in.BudgetRange + "\n")
	t.WriteString("Recommended package: " + in.Tier + "\n")
	if in.NextStepsText != "" {
		t.WriteString("\nNEXT STEPS\n" + in.NextStepsText + "\n")
	}
	if in.QuestionnaireText != "" {
		t.WriteString("\nQUESTIONNAIRE\n" + in.QuestionnaireText + "\n")
	}
	t.WriteString("\nFULL CONVERSATION\n" + in.ConversationText + "\n")

	return EmailContent{
		HTML:    h.String(),
		Text:    t.String(),
		Subject: in.Subject,
		To:      in.To,
		ReplyTo: in.ReplyTo,
	}
}

// numberedList 把若干条目拼为 "1. xxx" 形式的文本块。
func numberedList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("%d. %s", i+1, item))
	}
	return b.String()
}
