package reasoner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eino_dealer_bot/internal/resilience"
	"eino_dealer_bot/pkg"
	conf "eino_dealer_bot/src/model"
)

// stubChatModel answers from a script and records the options it saw
type stubChatModel struct {
	replies []*schema.Message
	errs    []error
	calls   int
	opts    []*model.Options
}

func (s *stubChatModel) Generate(_ context.Context, _ []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	i := s.calls
	s.calls++
	s.opts = append(s.opts, model.GetCommonOptions(&model.Options{}, opts...))
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return schema.AssistantMessage("ok", nil), nil
}

func (s *stubChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func TestCompleteCleansAndReportsUsage(t *testing.T) {
	reply := schema.AssistantMessage("Assistente: Temos o Onix 2020. Quer ver?", nil)
	reply.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}}
	stub := &stubChatModel{replies: []*schema.Message{reply}}

	got, err := NewChatModelReasoner(stub).Complete(context.Background(), nil, Options{Temperature: Float32(0.9)})
	require.NoError(t, err)
	assert.Equal(t, "Temos o Onix 2020. Quer ver?", got.Content)
	require.NotNil(t, got.Usage)
	assert.Equal(t, 15, got.Usage.TotalTokens)

	require.Len(t, stub.opts, 1)
	require.NotNil(t, stub.opts[0].Temperature)
	assert.InDelta(t, 0.9, *stub.opts[0].Temperature, 1e-6)
	assert.Nil(t, stub.opts[0].MaxTokens)
}

func TestCompleteEmptyIsUpstreamError(t *testing.T) {
	stub := &stubChatModel{replies: []*schema.Message{schema.AssistantMessage("   ", nil)}}

	_, err := NewChatModelReasoner(stub).Complete(context.Background(), nil, Options{})
	var upstream *pkg.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "llm", upstream.Dependency)
}

func TestCompleteWrapsBackendError(t *testing.T) {
	stub := &stubChatModel{errs: []error{errors.New("error, status code: 503, message: overloaded")}}

	_, err := NewChatModelReasoner(stub).Complete(context.Background(), nil, Options{})
	var upstream *pkg.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.True(t, resilience.IsRetryable(err))
}

type instantTimer struct{ c chan time.Time }

func (t *instantTimer) Start(time.Duration) { t.c <- time.Time{} }
func (t *instantTimer) Stop()               {}
func (t *instantTimer) C() <-chan time.Time { return t.c }

func newTestGuard() *resilience.Guard {
	b := resilience.NewBreaker(resilience.NewMemoryRepository())
	return resilience.NewGuard(b, resilience.LLM,
		resilience.WithTimer(func() backoff.Timer { return &instantTimer{c: make(chan time.Time, 1)} }))
}

func TestGuardedReasonerRetriesTransientFailures(t *testing.T) {
	stub := &stubChatModel{errs: []error{errors.New("503 service unavailable"), nil}}
	g := NewGuardedReasoner(NewChatModelReasoner(stub), newTestGuard())

	got, err := g.Complete(context.Background(), nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Content)
	assert.Equal(t, 2, stub.calls)
}

func TestGuardedReasonerSurfacesUpstreamError(t *testing.T) {
	stub := &stubChatModel{errs: []error{errors.New("401 unauthorized")}}
	g := NewGuardedReasoner(NewChatModelReasoner(stub), newTestGuard())

	_, err := g.Complete(context.Background(), nil, Options{})
	var upstream *pkg.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, 1, stub.calls)
}

func TestNewChatModelUnknownProvider(t *testing.T) {
	_, err := NewChatModel(context.Background(), conf.LLMConfig{Provider: "gemini"})
	assert.ErrorContains(t, err, "unknown LLM provider")
}

func TestNewChatModelOllama(t *testing.T) {
	m, err := NewChatModel(context.Background(), conf.LLMConfig{Provider: "ollama", Model: "llama3.1"})
	require.NoError(t, err)
	assert.NotNil(t, m)
}
