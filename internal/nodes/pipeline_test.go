package nodes

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eino_dealer_bot/internal/config"
	"eino_dealer_bot/internal/core"
	"eino_dealer_bot/internal/policy"
	"eino_dealer_bot/internal/reasoner"
	"eino_dealer_bot/internal/rules"
	"eino_dealer_bot/internal/services"
	"eino_dealer_bot/pkg"
	"eino_dealer_bot/src/conversation"
)

type scriptedReasoner struct {
	mu       sync.Mutex
	replies  []string
	err      error
	calls    int
	messages [][]*schema.Message
}

func (r *scriptedReasoner) Complete(_ context.Context, msgs []*schema.Message, _ reasoner.Options) (*reasoner.Completion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.messages = append(r.messages, msgs)
	if r.err != nil {
		return nil, r.err
	}
	reply := r.replies[0]
	if len(r.replies) > 1 {
		r.replies = r.replies[1:]
	}
	return &reasoner.Completion{Content: reply, Usage: &reasoner.Usage{PromptTokens: 10, CompletionTokens: 5}}, nil
}

type sent struct {
	to   string
	text string
}

type recordingBus struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (b *recordingBus) Send(_ context.Context, to, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.sent = append(b.sent, sent{to: to, text: text})
	return nil
}

type failingInventory struct{}

func (failingInventory) Search(context.Context, pkg.CarFilters) ([]pkg.Car, error) {
	return nil, errors.New("inventory down")
}

type fixture struct {
	pipeline  *Pipeline
	reasoner  *scriptedReasoner
	bus       *recordingBus
	summaries *conversation.SummaryService
	history   *conversation.MemoryResponseHistory
	cfg       *config.BotConfig
}

var testNow = time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, r *scriptedReasoner, inventory services.CarRepository) *fixture {
	t.Helper()
	cfg := config.DefaultBotConfig()
	if inventory == nil {
		inventory = services.NewDemoInventoryService()
	}
	first := func(int) int { return 0 }

	f := &fixture{
		reasoner:  r,
		bus:       &recordingBus{},
		summaries: conversation.NewSummaryService(conversation.NewMemoryContextStore()),
		history:   conversation.NewMemoryResponseHistory(cfg.Policy.HistorySize),
		cfg:       cfg,
	}
	p, err := NewPipeline(Dependencies{
		Config:     cfg,
		Reasoner:   r,
		Inventory:  inventory,
		Summaries:  f.summaries,
		History:    f.history,
		Bus:        f.bus,
		Transcript: conversation.NewMemoryRepository(20),
		Gate:       rules.NewGate(cfg, rules.WithPicker(first)),
		Enforcer:   policy.NewEnforcer(r, cfg, policy.WithPicker(first)),
		Clock:      func() time.Time { return testNow },
	})
	require.NoError(t, err)
	f.pipeline = p
	return f
}

func (f *fixture) handle(t *testing.T, text string) *core.ProcessorOutput {
	t.Helper()
	out, err := f.pipeline.HandleMessage(context.Background(), pkg.InboundMessage{UserID: "5511999990000", Text: text, SenderName: "Maria Silva"})
	require.NoError(t, err)
	return out
}

func TestScriptedTurnsNeverCallReasoner(t *testing.T) {
	cfg := config.DefaultBotConfig()
	cases := []struct {
		name string
		text string
		want string
	}{
		{"greeting", "Oi, bom dia!", strings.ReplaceAll(cfg.Responses.Greetings[0], "{store}", cfg.Store.Name)},
		{"postpone", "amanhã a gente continua", cfg.Responses.Farewells[0]},
		{"exit", "não quero mais receber mensagens", cfg.Responses.Goodbyes[0]},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &scriptedReasoner{replies: []string{"nunca"}}
			f := newFixture(t, r, nil)

			out := f.handle(t, tc.text)
			assert.Equal(t, 0, r.calls)
			assert.Equal(t, core.SourceRule, out.Source)
			assert.Equal(t, tc.want, out.Response)
			assert.True(t, out.Delivered)
			require.Len(t, f.bus.sent, 1)
			assert.Equal(t, tc.want, f.bus.sent[0].text)
			assert.NotContains(t, out.ExecutionPath, "faq")
		})
	}
}

func TestExitMarksOptOut(t *testing.T) {
	f := newFixture(t, &scriptedReasoner{replies: []string{"nunca"}}, nil)
	f.handle(t, "para de me mandar mensagem")

	summary := f.summaries.Load(context.Background(), "5511999990000")
	assert.True(t, summary.OptedOut)
	assert.Equal(t, 1, summary.TurnCount)
}

func TestFAQAnswerGetsCallToAction(t *testing.T) {
	r := &scriptedReasoner{replies: []string{"nunca"}}
	f := newFixture(t, r, nil)

	out := f.handle(t, "os carros têm garantia?")
	assert.Equal(t, 0, r.calls)
	assert.Equal(t, core.SourceFAQ, out.Source)
	assert.True(t, strings.HasPrefix(out.Response, f.cfg.FAQ.Warranty))
	assert.True(t, policy.HasCTA(out.Response))
}

func TestReasonerTurnUsesInventory(t *testing.T) {
	reply := "Temos o Chevrolet Onix LT 2022 por R$ 72.900. Quer agendar uma visita para ver de perto?"
	r := &scriptedReasoner{replies: []string{reply}}
	f := newFixture(t, r, nil)

	out := f.handle(t, "Vocês têm Onix?")
	assert.Equal(t, core.SourceReasoner, out.Source)
	assert.Equal(t, reply, out.Response)
	assert.Equal(t, pkg.IntentCarSearch, out.Intent)
	assert.Equal(t, []string{"load", "classify", "rule", "faq", "inventory", "reasoner", "policy", "repetition", "persist", "deliver"}, out.ExecutionPath)

	require.Equal(t, 1, r.calls)
	system := r.messages[0][0].Content
	assert.Contains(t, system, "Chevrolet Onix LT 2022")

	summary := f.summaries.Load(context.Background(), "5511999990000")
	assert.Equal(t, "Onix", summary.PreferredModel)
	assert.Equal(t, "Maria", summary.CustomerName)
	assert.Equal(t, pkg.ActionCars, summary.LastAction)
	assert.Contains(t, summary.SlotsFilled, pkg.SlotModel)

	snap := f.pipeline.Counters().Snapshot()
	assert.EqualValues(t, 1, snap.ReasonerCalls)
	assert.EqualValues(t, 1, snap.InventorySearches)
	assert.EqualValues(t, 10, snap.PromptTokens)
}

func TestReasonerFailureFallsBack(t *testing.T) {
	r := &scriptedReasoner{err: &pkg.UpstreamError{Dependency: "llm", Err: errors.New("503")}}
	f := newFixture(t, r, nil)

	out := f.handle(t, "Vocês têm Onix?")
	assert.Equal(t, core.SourceFallback, out.Source)
	assert.Equal(t, f.cfg.Responses.Unavailable, out.Response)
	assert.True(t, out.Delivered)
	assert.NotContains(t, out.ExecutionPath, "policy")
	assert.EqualValues(t, 1, f.pipeline.Counters().Snapshot().ReasonerFailures)
}

func TestInventoryFailureStillAnswers(t *testing.T) {
	reply := "Vou confirmar a disponibilidade do Onix. Quer agendar uma visita para ver de perto?"
	r := &scriptedReasoner{replies: []string{reply}}
	f := newFixture(t, r, failingInventory{})

	out := f.handle(t, "Vocês têm Onix?")
	assert.Equal(t, core.SourceReasoner, out.Source)
	assert.Equal(t, reply, out.Response)
	require.NotEmpty(t, out.Errors)
	assert.Contains(t, out.Errors[0], "inventory")
	assert.Contains(t, r.messages[0][0].Content, "estoque está indisponível")
}

func TestNoCarsFoundSkipsReasoner(t *testing.T) {
	r := &scriptedReasoner{replies: []string{"nunca"}}
	f := newFixture(t, r, services.NewInventoryService(nil))

	out := f.handle(t, "Vocês têm Onix?")
	assert.Equal(t, 0, r.calls)
	assert.Equal(t, core.SourceRule, out.Source)
	assert.True(t, strings.HasPrefix(out.Response, f.cfg.Responses.NoCarsFound))
	assert.True(t, policy.HasCTA(out.Response))
}

func TestHandoffThenPassiveAcknowledgment(t *testing.T) {
	reply := "Vou chamar um vendedor para você agora. Fico à disposição para agendar sua visita."
	r := &scriptedReasoner{replies: []string{reply}}
	f := newFixture(t, r, nil)

	out := f.handle(t, "quero falar com um vendedor")
	assert.Equal(t, pkg.IntentSellerRequest, out.Intent)
	assert.Equal(t, reply, out.Response)

	summary := f.summaries.Load(context.Background(), "5511999990000")
	assert.True(t, summary.HandoffAt.Equal(testNow))
	assert.Equal(t, pkg.StageReady, summary.Stage)
	assert.Equal(t, pkg.ActionSeller, summary.LastAction)

	out = f.handle(t, "ok obrigado")
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, core.SourceRule, out.Source)
	assert.Equal(t, f.cfg.Responses.Engagement[0], out.Response)
}

func TestRepeatedReplyIsReformulated(t *testing.T) {
	previous := "Temos o Onix 2022 por R$ 72.900. Quer agendar uma visita?"
	fresh := "O Onix 2022 sai por R$ 72.900 e está revisado. Posso separar algumas fotos para você?"
	r := &scriptedReasoner{replies: []string{previous, fresh}}
	f := newFixture(t, r, nil)
	require.NoError(t, f.history.Append(context.Background(), "5511999990000", conversation.NewResponseRecord(previous, testNow.Add(-time.Minute))))

	out := f.handle(t, "Vocês têm Onix?")
	assert.Equal(t, 2, r.calls)
	assert.Equal(t, fresh, out.Response)

	records, err := f.history.Recent(context.Background(), "5511999990000")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, fresh, records[0].Text)
}

func TestDeliveryFailureIsCounted(t *testing.T) {
	f := newFixture(t, &scriptedReasoner{replies: []string{"nunca"}}, nil)
	f.bus.err = errors.New("channel closed")

	out := f.handle(t, "Oi, bom dia!")
	assert.False(t, out.Delivered)
	assert.EqualValues(t, 1, f.pipeline.Counters().Snapshot().DeliveryFailures)
	assert.Contains(t, out.Errors[len(out.Errors)-1], "channel closed")
}

func TestNewPipelineRequiresCollaborators(t *testing.T) {
	_, err := NewPipeline(Dependencies{})
	assert.Error(t, err)

	_, err = NewPipeline(Dependencies{Config: config.DefaultBotConfig()})
	assert.ErrorContains(t, err, "reasoner")
}
