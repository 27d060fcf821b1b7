// Package rules decides the turns that can be answered without the reasoner.
package rules

import (
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"eino_dealer_bot/internal/config"
	"eino_dealer_bot/internal/textsim"
	"eino_dealer_bot/pkg"
)

// Rule names reported in Decision.Rule
const (
	RulePassiveWindow     = "passive_window"
	RulePostpone          = "postpone"
	RuleExit              = "exit"
	RuleTradeConfirmation = "trade_confirmation"
	RuleGreeting          = "greeting"
)

// Input is everything the gate looks at for one turn
type Input struct {
	Message            string
	Intent             pkg.DetectedIntent
	Summary            *pkg.TurnSummary
	HasPriorBotMessage bool
	Now                time.Time
}

// Gate evaluates the short-circuit rules in a fixed order
type Gate struct {
	responses     config.Responses
	storeName     string
	handoffWindow time.Duration
	pick          func(n int) int
}

// Option customizes a Gate
type Option func(*Gate)

// WithPicker replaces the random picker, mostly for tests
func WithPicker(pick func(n int) int) Option {
	return func(g *Gate) { g.pick = pick }
}

var (
	ackRe = regexp.MustCompile(`^(ok|okay|okk|blz|beleza|ta|ta bom|ta certo|certo|combinado|obrigad[oa]|valeu|vlw|show|perfeito|otimo|aguardo|fico no aguardo|entendi|tranquilo|joia|sim|uhum|hum)([\s,!.]+(obrigad[oa]|valeu|vlw|entao|aguardo))?[\s!.,]*$`)

	postponeRe = regexp.MustCompile(`\b(amanha (a gente |nos |eu )?(continua\w*|convers\w*|fala\w*|vej\w*|te chamo|retomo|retorno)|continu\w* amanha|fala\w* amanha|depois (eu )?(te )?(chamo|falo|vejo|retorno)|vou dormir|indo dormir|hora de dormir|mais tarde (eu )?(te )?(chamo|falo|retorno)|outra hora (eu )?(te )?(chamo|falo)?)\b`)

	exitRe = regexp.MustCompile(`\b(nao quero mais|nao tenho (mais )?interesse|perdi o interesse|(para|pare|parar) de (me )?(mandar|enviar|chamar)|nao (me )?(mande|mandem|envie|enviem) mais|me (tira|tire|remove|remova) da lista|(remove|remova|apague|apaga) (o )?meu (numero|contato)|descadastr\w*|sair da lista|chega de mensage\w*)\b`)

	affirmRe = regexp.MustCompile(`^(sim|s|ss|pode ser|pode|bora|claro|quero|quero sim|fechado|fechou|manda|mostra|pode mandar|pode mostrar|ok|beleza|blz|isso|isso mesmo|com certeza|vamos|top|gostei)[\s!.,]*$`)

	greetingOnlyRe = regexp.MustCompile(`^((oi+e?|ola|opa|bom dia|boa tarde|boa noite|e ai|eai|salve|hey|hello|tudo bem|tudo bom|tudo certo|como vai)[\s!.,?]*)+$`)
)

// NewGate builds a gate over the configured scripted responses
func NewGate(cfg *config.BotConfig, opts ...Option) *Gate {
	g := &Gate{
		responses:     cfg.Responses,
		storeName:     cfg.Store.Name,
		handoffWindow: cfg.Policy.HandoffWindow(),
		pick:          rand.IntN,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate returns the first matching decision or nil when the pipeline
// should continue to the FAQ matcher
func (g *Gate) Evaluate(in Input) *pkg.Decision {
	summary := in.Summary
	if summary == nil {
		summary = pkg.NewTurnSummary()
	}
	folded := strings.TrimSpace(textsim.Fold(in.Message))

	if summary.HandoffActive(in.Now, g.handoffWindow) && ackRe.MatchString(folded) {
		return &pkg.Decision{
			Rule:             RulePassiveWindow,
			Action:           pkg.ActionInfo,
			Response:         g.choose(g.responses.Engagement),
			SkipExternalCall: true,
		}
	}

	if postponeRe.MatchString(folded) {
		return &pkg.Decision{
			Rule:             RulePostpone,
			Action:           pkg.ActionNone,
			Response:         g.choose(g.responses.Farewells),
			SkipExternalCall: true,
		}
	}

	if exitRe.MatchString(folded) {
		return &pkg.Decision{
			Rule:             RuleExit,
			Action:           pkg.ActionNone,
			Response:         g.choose(g.responses.Goodbyes),
			SkipExternalCall: true,
			OptOut:           true,
		}
	}

	if summary.TradeValuation > 0 && affirmRe.MatchString(folded) {
		valuation := summary.TradeValuation
		return &pkg.Decision{
			Rule:             RuleTradeConfirmation,
			Action:           pkg.ActionCars,
			SkipExternalCall: false,
			PriceFilter:      &valuation,
		}
	}

	if !in.HasPriorBotMessage && greetingOnlyRe.MatchString(folded) {
		return &pkg.Decision{
			Rule:             RuleGreeting,
			Action:           pkg.ActionGreeting,
			Response:         g.choose(g.responses.Greetings),
			SkipExternalCall: true,
		}
	}

	return nil
}

func (g *Gate) choose(options []string) string {
	if len(options) == 0 {
		return ""
	}
	text := options[g.pick(len(options))]
	return strings.ReplaceAll(text, "{store}", g.storeName)
}
