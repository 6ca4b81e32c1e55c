package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scope-chat-go/internal/config"
	"scope-chat-go/internal/model"
)

// memorySessionRepository 是 SessionRepository 的内存实现，供测试使用。
type memorySessionRepository struct {
	messages    map[string][]model.ChatMessage
	estimates   map[string]*model.Estimate
	contacts    map[string]model.ContactSlot
	estimating  map[string]bool
	summarySent map[string]bool
	saveErr     error
}

func newMemorySessionRepository() *memorySessionRepository {
	return &memorySessionRepository{
		messages:    make(map[string][]model.ChatMessage),
		estimates:   make(map[string]*model.Estimate),
		contacts:    make(map[string]model.ContactSlot),
		estimating:  make(map[string]bool),
		summarySent: make(map[string]bool),
	}
}

func (r *memorySessionRepository) GetMessages(_ context.Context, sessionID string) ([]model.ChatMessage, error) {
	return r.messages[sessionID], nil
}

func (r *memorySessionRepository) SaveMessages(_ context.Context, sessionID string, messages []model.ChatMessage) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.messages[sessionID] = messages
	return nil
}

func (r *memorySessionRepository) GetEstimate(_ context.Context, sessionID string) (*model.Estimate, error) {
	return r.estimates[sessionID], nil
}

func (r *memorySessionRepository) SaveEstimate(_ context.Context, sessionID string, estimate *model.Estimate) error {
	r.estimates[sessionID] = estimate
	return nil
}

func (r *memorySessionRepository) GetContact(_ context.Context, sessionID string) (model.ContactSlot, error) {
	return r.contacts[sessionID], nil
}

func (r *memorySessionRepository) SaveContact(_ context.Context, sessionID string, contact model.ContactSlot) error {
	r.contacts[sessionID] = contact
	return nil
}

func (r *memorySessionRepository) TryBeginEstimation(_ context.Context, sessionID string) (bool, error) {
	if r.estimating[sessionID] {
		return false, nil
	}
	r.estimating[sessionID] = true
	return true, nil
}

func (r *memorySessionRepository) EndEstimation(_ context.Context, sessionID string) error {
	delete(r.estimating, sessionID)
	return nil
}

func (r *memorySessionRepository) MarkSummarySent(_ context.Context, sessionID string, _ time.Duration) error {
	r.summarySent[sessionID] = true
	return nil
}

func (r *memorySessionRepository) SummarySent(_ context.Context, sessionID string) (bool, error) {
	return r.summarySent[sessionID], nil
}

// stubEstimateService 返回预设结果并记录调用次数。
type stubEstimateService struct {
	calls  int
	result *EstimateResult
	err    error
}

func (s *stubEstimateService) Estimate(_ context.Context, _ string, _ []model.ChatMessage) (*EstimateResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// stubSummaryService 返回预设结果并记录入参。
type stubSummaryService struct {
	calls   int
	lastReq SummaryRequest
	result  *SummaryResult
	err     error
}

func (s *stubSummaryService) Summarize(_ context.Context, req SummaryRequest) (*SummaryResult, error) {
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// recordingNotifier 记录发布的会话事件。
type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) Publish(_, eventType string) {
	n.events = append(n.events, eventType)
}

func completeEstimateResult() *EstimateResult {
	return &EstimateResult{
		Message: "That fits the Business Website package.",
		Estimate: model.Estimate{
			BudgetRange:        "$1,500-$2,500",
			RecommendedPackage: "Business Website",
			NextSteps:          []string{},
			MissingInfo:        []string{},
		},
	}
}

type sessionFixture struct {
	repo     *memorySessionRepository
	estimate *stubEstimateService
	summary  *stubSummaryService
	notifier *recordingNotifier
	svc      SessionService
}

func newSessionFixture() *sessionFixture {
	f := &sessionFixture{
		repo:     newMemorySessionRepository(),
		estimate: &stubEstimateService{result: completeEstimateResult()},
		summary:  &stubSummaryService{result: &SummaryResult{Overview: "done"}},
		notifier: &recordingNotifier{},
	}
	f.svc = NewSessionService(f.repo, f.estimate, f.summary, f.notifier, config.CatalogConfig{})
	return f
}

func TestCreateSessionStartsWithGreeting(t *testing.T) {
	f := newSessionFixture()

	view, err := f.svc.CreateSession(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, view.SessionID)
	require.Len(t, view.Messages, 1)
	require.Equal(t, model.RoleAssistant, view.Messages[0].Role)
	require.Equal(t, defaultGreeting, view.Messages[0].PlainText())

	// 开场白已持久化
	require.Len(t, f.repo.messages[view.SessionID], 1)
}

func TestGetSessionFallsBackToGreetingOnly(t *testing.T) {
	f := newSessionFixture()

	view, err := f.svc.GetSession(context.Background(), "expired-session")
	require.NoError(t, err)
	require.Len(t, view.Messages, 1)
	require.Equal(t, defaultGreeting, view.Messages[0].PlainText())
	require.False(t, view.CanSendSummary)
	require.False(t, view.SummarySent)
}

func TestSubmitMessageAppendsUserAndAssistantTurns(t *testing.T) {
	f := newSessionFixture()
	view, _ := f.svc.CreateSession(context.Background())

	result, err := f.svc.SubmitMessage(context.Background(), view.SessionID, "I need a site for my bakery", nil)
	require.NoError(t, err)

	require.Len(t, result.Messages, 3)
	require.Equal(t, model.RoleUser, result.Messages[1].Role)
	require.Equal(t, model.RoleAssistant, result.Messages[2].Role)
	require.Equal(t, "That fits the Business Website package.", result.Messages[2].PlainText())
	require.Equal(t, "$1,500-$2,500", result.LastEstimate.BudgetRange)

	// 估算结果与消息均已持久化，事件已发布
	require.NotNil(t, f.repo.estimates[view.SessionID])
	require.Len(t, f.repo.messages[view.SessionID], 3)
	require.Equal(t, []string{EventEstimateDone}, f.notifier.events)
}

func TestSubmitMessageRejectsEmptyInput(t *testing.T) {
	f := newSessionFixture()
	view, _ := f.svc.CreateSession(context.Background())

	_, err := f.svc.SubmitMessage(context.Background(), view.SessionID, "   ", nil)
	require.ErrorIs(t, err, ErrInvalidRequest)
	require.Zero(t, f.estimate.calls)
}

func TestSubmitMessageRejectsConcurrentEstimation(t *testing.T) {
	f := newSessionFixture()
	view, _ := f.svc.CreateSession(context.Background())

	// 模拟另一次估算在途
	f.repo.estimating[view.SessionID] = true

	_, err := f.svc.SubmitMessage(context.Background(), view.SessionID, "hello", nil)
	require.ErrorIs(t, err, ErrSessionBusy)
	require.Zero(t, f.estimate.calls)
}

func TestSubmitMessageKeepsUserMessageWhenEstimateFails(t *testing.T) {
	f := newSessionFixture()
	f.estimate.err = errors.New("upstream down")
	view, _ := f.svc.CreateSession(context.Background())

	_, err := f.svc.SubmitMessage(context.Background(), view.SessionID, "hello", nil)
	require.Error(t, err)

	// 用户消息在估算前已持久化，不追加助手消息
	persisted := f.repo.messages[view.SessionID]
	require.Len(t, persisted, 2)
	require.Equal(t, model.RoleUser, persisted[1].Role)

	// 估算标志已释放，下一次提交可以进行
	require.False(t, f.repo.estimating[view.SessionID])
}

func TestSubmitMessageCapsImagesAndWarns(t *testing.T) {
	f := newSessionFixture()
	view, _ := f.svc.CreateSession(context.Background())

	images := []ImageAttachment{
		{URI: pngDataURI("a")},
		{URI: pngDataURI("b")},
		{URI: pngDataURI("c")},
		{URI: pngDataURI("d")},
	}
	result, err := f.svc.SubmitMessage(context.Background(), view.SessionID, "mockups", images)
	require.NoError(t, err)

	require.Contains(t, result.Warning, "Maximum 3 images")
	userMessage := result.Messages[1]
	require.Equal(t, 3, userMessage.ImageCount())
}

func TestSubmitMessageImageOnlyBuildsPartsMessage(t *testing.T) {
	f := newSessionFixture()
	view, _ := f.svc.CreateSession(context.Background())

	result, err := f.svc.SubmitMessage(context.Background(), view.SessionID, "", []ImageAttachment{
		{URI: pngDataURI("only image")},
	})
	require.NoError(t, err)

	userMessage := result.Messages[1]
	require.Equal(t, 1, userMessage.ImageCount())
	require.Equal(t, "", userMessage.PlainText())
}

func TestSubmitMessageAdoptsAutofillContact(t *testing.T) {
	f := newSessionFixture()
	f.estimate.result.Autofill = &model.ContactSlot{Email: "jane@example.com", ContactInfo: "+1 555 0100"}
	view, _ := f.svc.CreateSession(context.Background())

	result, err := f.svc.SubmitMessage(context.Background(), view.SessionID, "jane@example.com here", nil)
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", result.Contact.Email)
	require.Equal(t, "+1 555 0100", result.Contact.ContactInfo)
	require.Equal(t, "jane@example.com", f.repo.contacts[view.SessionID].Email)
}

func TestSubmitMessageNeverOverwritesExplicitEmail(t *testing.T) {
	f := newSessionFixture()
	f.estimate.result.Autofill = &model.ContactSlot{Email: "model@example.com"}
	view, _ := f.svc.CreateSession(context.Background())

	_, err := f.svc.UpdateContact(context.Background(), view.SessionID, "explicit@example.com", "")
	require.NoError(t, err)

	result, err := f.svc.SubmitMessage(context.Background(), view.SessionID, "use scanned@example.com", nil)
	require.NoError(t, err)
	require.Equal(t, "explicit@example.com", result.Contact.Email)
}

func TestSubmitMessagePassivelyScansForEmail(t *testing.T) {
	f := newSessionFixture()
	view, _ := f.svc.CreateSession(context.Background())

	result, err := f.svc.SubmitMessage(context.Background(), view.SessionID, "you can reach me at jane@example.com", nil)
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", result.Contact.Email)
}

func TestUpdateContactValidatesEmail(t *testing.T) {
	f := newSessionFixture()
	view, _ := f.svc.CreateSession(context.Background())

	_, err := f.svc.UpdateContact(context.Background(), view.SessionID, "not-an-email", "")
	require.ErrorIs(t, err, ErrInvalidRequest)

	// 清空邮箱是合法操作
	contact, err := f.svc.UpdateContact(context.Background(), view.SessionID, "", "telegram: @jane")
	require.NoError(t, err)
	require.Equal(t, "telegram: @jane", contact.ContactInfo)
}

func TestSendSummaryRequiresPrerequisites(t *testing.T) {
	f := newSessionFixture()
	view, _ := f.svc.CreateSession(context.Background())

	// 仅有开场白：不满足
	_, err := f.svc.SendSummary(context.Background(), view.SessionID, "", nil)
	require.ErrorIs(t, err, ErrSummaryNotReady)
	require.Zero(t, f.summary.calls)

	// 有对话与估算，但无合法邮箱：仍不满足
	_, err = f.svc.SubmitMessage(context.Background(), view.SessionID, "a bakery site", nil)
	require.NoError(t, err)
	_, err = f.svc.SendSummary(context.Background(), view.SessionID, "", nil)
	require.ErrorIs(t, err, ErrSummaryNotReady)

	// 补上邮箱后满足
	_, err = f.svc.UpdateContact(context.Background(), view.SessionID, "jane@example.com", "")
	require.NoError(t, err)
	result, err := f.svc.SendSummary(context.Background(), view.SessionID, "", nil)
	require.NoError(t, err)
	require.Equal(t, "done", result.Overview)
	require.Equal(t, 1, f.summary.calls)
	require.Equal(t, "jane@example.com", f.summary.lastReq.UserEmail)

	require.True(t, f.repo.summarySent[view.SessionID])
	require.Contains(t, f.notifier.events, EventSummarySent)
}

func TestSendSummaryNotReadyWithIncompleteEstimate(t *testing.T) {
	f := newSessionFixture()
	f.estimate.result = &EstimateResult{
		Message:  "need more info",
		Estimate: model.Estimate{BudgetRange: "$750-$1,000"},
	}
	view, _ := f.svc.CreateSession(context.Background())

	_, err := f.svc.SubmitMessage(context.Background(), view.SessionID, "something small", nil)
	require.NoError(t, err)
	_, err = f.svc.UpdateContact(context.Background(), view.SessionID, "jane@example.com", "")
	require.NoError(t, err)

	// 估算缺少推荐档位，前置条件不成立
	_, err = f.svc.SendSummary(context.Background(), view.SessionID, "", nil)
	require.ErrorIs(t, err, ErrSummaryNotReady)
}

func TestGetSessionReportsCanSendSummary(t *testing.T) {
	f := newSessionFixture()
	view, _ := f.svc.CreateSession(context.Background())

	_, err := f.svc.SubmitMessage(context.Background(), view.SessionID, "bakery site, jane@example.com", nil)
	require.NoError(t, err)

	current, err := f.svc.GetSession(context.Background(), view.SessionID)
	require.NoError(t, err)
	require.True(t, current.CanSendSummary)
}
