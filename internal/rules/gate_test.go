package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eino_dealer_bot/internal/config"
	"eino_dealer_bot/pkg"
)

var now = time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)

func newTestGate() *Gate {
	return NewGate(config.DefaultBotConfig(), WithPicker(func(int) int { return 0 }))
}

func TestEvaluateShortCircuits(t *testing.T) {
	g := newTestGate()

	cases := []struct {
		name    string
		message string
		prior   bool
		rule    string
		optOut  bool
	}{
		{"postpone", "Amanhã a gente continua, vou dormir", true, RulePostpone, false},
		{"postpone later", "depois te chamo", true, RulePostpone, false},
		{"exit", "Não quero mais, para de me mandar mensagem", true, RuleExit, true},
		{"exit unsubscribe", "me tira da lista", true, RuleExit, true},
		{"greeting first contact", "Oi, bom dia!", false, RuleGreeting, false},
		{"greeting single word", "Olá", false, RuleGreeting, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := g.Evaluate(Input{Message: tc.message, HasPriorBotMessage: tc.prior, Now: now})
			require.NotNil(t, d)
			assert.Equal(t, tc.rule, d.Rule)
			assert.True(t, d.SkipExternalCall)
			assert.NotEmpty(t, d.Response)
			assert.Equal(t, tc.optOut, d.OptOut)
		})
	}
}

func TestEvaluateGreetingRequiresNoPriorBotMessage(t *testing.T) {
	g := newTestGate()

	assert.Nil(t, g.Evaluate(Input{Message: "Oi", HasPriorBotMessage: true, Now: now}))
	// a greeting with a request is not a bare greeting
	assert.Nil(t, g.Evaluate(Input{Message: "Oi, quero um Onix", Now: now}))
}

func TestEvaluatePassiveWindow(t *testing.T) {
	g := newTestGate()

	summary := pkg.NewTurnSummary()
	summary.HandoffAt = now.Add(-10 * time.Minute)

	d := g.Evaluate(Input{Message: "ok, obrigado", Summary: summary, HasPriorBotMessage: true, Now: now})
	require.NotNil(t, d)
	assert.Equal(t, RulePassiveWindow, d.Rule)
	assert.True(t, d.SkipExternalCall)
	assert.Equal(t, config.DefaultBotConfig().Responses.Engagement[0], d.Response)

	// a real question goes on to the pipeline
	assert.Nil(t, g.Evaluate(Input{Message: "o onix tem multimídia?", Summary: summary, HasPriorBotMessage: true, Now: now}))

	// outside the window the ack is just conversation
	summary.HandoffAt = now.Add(-45 * time.Minute)
	assert.Nil(t, g.Evaluate(Input{Message: "ok", Summary: summary, HasPriorBotMessage: true, Now: now}))
}

func TestEvaluateTradeConfirmation(t *testing.T) {
	g := newTestGate()

	summary := pkg.NewTurnSummary()
	summary.TradeValuation = 42000

	d := g.Evaluate(Input{Message: "Pode mandar!", Summary: summary, HasPriorBotMessage: true, Now: now})
	require.NotNil(t, d)
	assert.Equal(t, RuleTradeConfirmation, d.Rule)
	assert.False(t, d.SkipExternalCall)
	assert.Equal(t, pkg.ActionCars, d.Action)
	require.NotNil(t, d.PriceFilter)
	assert.Equal(t, 42000, *d.PriceFilter)

	// without a valuation the affirmation is not special
	assert.Nil(t, g.Evaluate(Input{Message: "Pode mandar!", HasPriorBotMessage: true, Now: now}))
}

func TestEvaluateOrder(t *testing.T) {
	g := newTestGate()

	// postpone wins over the exit wording that follows it
	d := g.Evaluate(Input{Message: "amanhã a gente conversa, não quero mais mensagem hoje", HasPriorBotMessage: true, Now: now})
	require.NotNil(t, d)
	assert.Equal(t, RulePostpone, d.Rule)
}

func TestChooseReplacesStoreName(t *testing.T) {
	cfg := config.DefaultBotConfig()
	cfg.Store.Name = "Auto Center"
	g := NewGate(cfg, WithPicker(func(int) int { return 0 }))

	d := g.Evaluate(Input{Message: "oi", Now: now})
	require.NotNil(t, d)
	assert.Contains(t, d.Response, "Auto Center")
	assert.NotContains(t, d.Response, "{store}")
}
