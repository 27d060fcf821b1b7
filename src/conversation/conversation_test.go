package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eino_dealer_bot/pkg"
)

func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestLoadMissingSummary(t *testing.T) {
	client, _ := newTestClient(t)
	svc := NewSummaryService(NewRedisContextStore(client, 7*24*time.Hour))

	summary := svc.Load(context.Background(), "5511999990000")
	assert.Equal(t, 0, summary.TurnCount)
	assert.Equal(t, pkg.ActionNone, summary.LastAction)
	assert.Empty(t, summary.SlotsFilled)
	assert.Empty(t, summary.AskedSlots)
}

func TestSaveMergesAndIncrements(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	svc := NewSummaryService(NewRedisContextStore(client, 7*24*time.Hour))
	fixed := time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	first := svc.Save(ctx, "u1", svc.Load(ctx, "u1"), SummaryUpdate{
		Intent:      pkg.IntentCarSearch,
		Stage:       pkg.StageComparing,
		LastAction:  pkg.ActionCars,
		SlotsFilled: []pkg.Slot{pkg.SlotModel},
		AskedSlots:  []pkg.Slot{pkg.SlotBudget},
	})
	assert.Equal(t, 1, first.TurnCount)
	assert.Equal(t, 7*24*time.Hour, mr.TTL("turn_summary:u1"))

	loaded := svc.Load(ctx, "u1")
	assert.Equal(t, pkg.IntentCarSearch, loaded.Intent)
	assert.Equal(t, pkg.StageComparing, loaded.Stage)
	assert.Equal(t, []pkg.Slot{pkg.SlotModel}, loaded.SlotsFilled)
	assert.Equal(t, []pkg.Slot{pkg.SlotBudget}, loaded.AskedSlots)
	assert.True(t, fixed.Equal(loaded.UpdatedAt))

	// an empty update keeps every field and still counts the turn
	second := svc.Save(ctx, "u1", loaded, SummaryUpdate{NameUsed: true})
	assert.Equal(t, 2, second.TurnCount)
	assert.Equal(t, pkg.ActionCars, second.LastAction)
	require.NotNil(t, second.NameLastUsedTurn)
	assert.Equal(t, 2, *second.NameLastUsedTurn)
}

func TestLoadRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	svc := NewSummaryService(NewRedisContextStore(client, 7*24*time.Hour))

	svc.Save(ctx, "u1", svc.Load(ctx, "u1"), SummaryUpdate{})
	mr.FastForward(6 * 24 * time.Hour)
	svc.Load(ctx, "u1")
	assert.Equal(t, 7*24*time.Hour, mr.TTL("turn_summary:u1"))
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (*pkg.TurnSummary, error) {
	return nil, &pkg.StoreError{Op: "get", Key: "turn_summary:u1", Err: errors.New("redis down")}
}

func (failingStore) Peek(context.Context, string) (*pkg.TurnSummary, error) {
	return nil, &pkg.StoreError{Op: "get", Key: "turn_summary:u1", Err: errors.New("redis down")}
}

func (failingStore) Set(context.Context, string, *pkg.TurnSummary) error {
	return &pkg.StoreError{Op: "set", Key: "turn_summary:u1", Err: errors.New("redis down")}
}

func (failingStore) Scan(context.Context, func(string) error) error { return nil }

func TestStoreFailuresAreAbsorbed(t *testing.T) {
	ctx := context.Background()
	svc := NewSummaryService(failingStore{})

	summary := svc.Load(ctx, "u1")
	assert.Equal(t, 0, summary.TurnCount)

	saved := svc.Save(ctx, "u1", summary, SummaryUpdate{LastAction: pkg.ActionAsk})
	assert.Equal(t, 1, saved.TurnCount)
	assert.Equal(t, pkg.ActionAsk, saved.LastAction)
}

func TestSaveDoesNotMutateCurrent(t *testing.T) {
	svc := NewSummaryService(NewMemoryContextStore())
	current := pkg.NewTurnSummary()

	svc.Save(context.Background(), "u1", current, SummaryUpdate{SlotsFilled: []pkg.Slot{pkg.SlotYear}})
	assert.Equal(t, 0, current.TurnCount)
	assert.Empty(t, current.SlotsFilled)
}

func TestAskedSlots(t *testing.T) {
	summary := pkg.NewTurnSummary()

	MarkSlotAsked(summary, pkg.SlotBudget)
	MarkSlotAsked(summary, pkg.SlotBudget)
	MarkSlotAsked(summary, pkg.Slot("favorite_color"))
	assert.Equal(t, []pkg.Slot{pkg.SlotBudget}, summary.AskedSlots)
	assert.True(t, WasSlotAsked(summary, pkg.SlotBudget))
	assert.False(t, WasSlotAsked(summary, pkg.SlotYear))

	ClearAskedSlots(summary)
	assert.Empty(t, summary.AskedSlots)
}

func TestMergeClearBeforeMark(t *testing.T) {
	summary := pkg.NewTurnSummary()
	summary.AskedSlots = []pkg.Slot{pkg.SlotBudget, pkg.SlotYear}

	Merge(summary, SummaryUpdate{ClearAsked: true, AskedSlots: []pkg.Slot{pkg.SlotPayment}, OptOut: true})
	assert.Equal(t, []pkg.Slot{pkg.SlotPayment}, summary.AskedSlots)
	assert.True(t, summary.OptedOut)
}

func TestBuildContextSummary(t *testing.T) {
	summary := pkg.NewTurnSummary()
	summary.Stage = pkg.StageComparing
	summary.CustomerName = "Marcos"
	summary.SlotsFilled = []pkg.Slot{pkg.SlotModel, pkg.SlotBudget}
	summary.AskedSlots = []pkg.Slot{pkg.SlotTradeIn}
	summary.LastAction = pkg.ActionCars

	digest := BuildContextSummary(summary)
	assert.Contains(t, digest, "Etapa: comparing")
	assert.Contains(t, digest, "Nome: Marcos")
	assert.Contains(t, digest, "Já informado: modelo, orçamento")
	assert.Contains(t, digest, "Última ação: cars")
	assert.Contains(t, digest, "Já perguntado, não repita: carro na troca")
}

func TestRedisResponseHistoryRing(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	h := NewRedisResponseHistory(client, 5, 7*24*time.Hour)

	base := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	texts := []string{"um", "dois", "tres", "quatro", "cinco", "seis", "sete"}
	for i, text := range texts {
		require.NoError(t, h.Append(ctx, "u1", NewResponseRecord(text, base.Add(time.Duration(i)*time.Minute))))
	}

	records, err := h.Recent(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, "sete", records[0].Text)
	assert.Equal(t, "tres", records[4].Text)
	assert.NotEmpty(t, records[0].Hash)
	assert.Equal(t, 7*24*time.Hour, mr.TTL("responses:u1"))
}

func TestMemoryResponseHistoryRing(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryResponseHistory(2)
	now := time.Now()

	require.NoError(t, h.Append(ctx, "u1", NewResponseRecord("a", now)))
	require.NoError(t, h.Append(ctx, "u1", NewResponseRecord("b", now)))
	require.NoError(t, h.Append(ctx, "u1", NewResponseRecord("c", now)))

	records, err := h.Recent(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "c", records[0].Text)
	assert.Equal(t, "b", records[1].Text)
}

func TestRedisTranscript(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	repo := NewRedisRepository(client, time.Hour, 4)

	require.NoError(t, repo.AddMessages(ctx, "u1",
		schema.UserMessage("oi"),
		schema.AssistantMessage("Olá! Procura algum carro?", nil),
	))
	require.NoError(t, repo.AddMessages(ctx, "u1",
		schema.UserMessage("quero um onix"),
		schema.AssistantMessage("Temos o Onix 2020. Quer ver fotos?", nil),
		schema.UserMessage("sim"),
	))
	assert.True(t, mr.Exists("transcript:u1"))

	history, err := repo.Load(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history.Messages, 4)
	assert.Equal(t, "Olá! Procura algum carro?", history.Messages[0].Content)
	assert.Equal(t, schema.User, history.Messages[3].Role)

	selected, err := repo.GetContextForModel(ctx, "u1", NewReasonerContextStrategy(2))
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, "sim", selected[1].Content)
}

func TestReasonerContextStrategySkipsSystem(t *testing.T) {
	s := NewReasonerContextStrategy(10)
	got := s.Select([]*schema.Message{
		schema.SystemMessage("regras"),
		schema.UserMessage("oi"),
		schema.AssistantMessage("olá", nil),
	})
	require.Len(t, got, 2)
	assert.Equal(t, schema.User, got[0].Role)
	assert.Equal(t, 10, s.GetMaxTurns())
}

func TestMemoryContextStoreScan(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryContextStore()
	require.NoError(t, store.Set(ctx, "a", pkg.NewTurnSummary()))
	require.NoError(t, store.Set(ctx, "b", pkg.NewTurnSummary()))

	seen := map[string]bool{}
	require.NoError(t, store.Scan(ctx, func(id string) error {
		seen[id] = true
		return nil
	}))
	assert.Equal(t, map[string]bool{"a": true, "b": true}, seen)
}
