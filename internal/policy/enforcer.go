// Package policy repairs candidate replies until they fit the channel's
// voice: short, one question, no emoji, always a call-to-action.
package policy

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"

	"eino_dealer_bot/internal/config"
	"eino_dealer_bot/internal/reasoner"
	"eino_dealer_bot/internal/textsim"
	"eino_dealer_bot/pkg"
	"eino_dealer_bot/src/llm"
	"eino_dealer_bot/src/logger"
)

// Violation names reported in ValidationResult.Violations
const (
	ViolationHandoffQualification = "handoff_qualification"
	ViolationRepetition           = "repetition"
	ViolationLength               = "length"
	ViolationConversationKiller   = "conversation_killer"
	ViolationNameCooldown         = "name_cooldown"
	ViolationPassiveMode          = "passive_mode"
)

const defaultCTA = "Posso te ajudar com mais alguma coisa?"

var (
	// questions that qualify the lead: budget, trade-in, model, payment
	qualificationRe = regexp.MustCompile(`\b(orcamento|quanto (voce )?(pretende|quer|pode|gostaria de) (investir|pagar|gastar)|faixa de (preco|valor)|valor maximo|carro (na|para|pra) troca|(tem|possui) (algum )?(carro|veiculo)|(qual|que) (modelo|marca|ano|versao)|forma de pagamento|a vista ou (financiado|parcelado)|(financiado|parcelado) ou a vista|valor de entrada|quanto de entrada)\b`)

	// replies that carry no information and end the conversation
	killerRe = regexp.MustCompile(`^(ok|okay|certo|entendi|entendido|beleza|blz|combinado|perfeito|otimo|show|tudo bem|estou por aqui|to por aqui|estou aqui|fico no aguardo|disponha|de nada|por nada|qualquer coisa (e so )?(me )?(chamar|chama|falar))$`)

	comparisonRe = regexp.MustCompile(`\b(compara|comparar|comparacao|versus|vs|melhor que|pior que|diferenca entre)\b`)

	carAttributeRe = regexp.MustCompile(`\b(km|quilometragem|motor|cambio|automatico|manual|flex|consumo|cor|portas|versao|ipva|revisao|revisado|laudo|dono|multimidia|ar condicionado|direcao|airbag|teto|rodas|pneus|freio|potencia|cv)\b`)
)

// Input is one candidate reply with the context the checks need
type Input struct {
	Candidate      string
	UserMessage    string
	Summary        *pkg.TurnSummary
	Turn           int
	HandoffActive  bool
	Passive        bool
	LastBotMessage string
	StateChanged   bool
}

type check struct {
	name        string
	violated    func(text string, in Input) bool
	instruction func(text string, in Input) string
	repair      func(text string, in Input) string
}

// Enforcer runs the fixed repair pipeline. Each check may ask the reasoner
// for one rewrite; a rewrite that fails or still violates is repaired
// locally.
type Enforcer struct {
	reasoner  reasoner.Reasoner
	limits    config.PolicyLimits
	responses config.Responses
	pick      func(n int) int
	checks    []check
}

// Option customizes an Enforcer
type Option func(*Enforcer)

// WithPicker replaces the random choice of default CTAs
func WithPicker(pick func(n int) int) Option {
	return func(e *Enforcer) { e.pick = pick }
}

// NewEnforcer builds the enforcer. r may be nil, every check then repairs
// locally.
func NewEnforcer(r reasoner.Reasoner, cfg *config.BotConfig, opts ...Option) *Enforcer {
	e := &Enforcer{
		reasoner:  r,
		limits:    cfg.Policy,
		responses: cfg.Responses,
		pick:      rand.IntN,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.checks = []check{
		{
			name:     ViolationHandoffQualification,
			violated: func(text string, in Input) bool { return in.HandoffActive && HasQualificationQuestion(text) },
			instruction: func(string, Input) string {
				return "O cliente já foi encaminhado para um vendedor humano. Remova qualquer pergunta de qualificação (orçamento, troca, modelo, pagamento) e apenas confirme que o vendedor vai atender."
			},
			repair: e.dropQualificationQuestions,
		},
		{
			name: ViolationRepetition,
			violated: func(text string, in Input) bool {
				return in.LastBotMessage != "" && textsim.WordTrigramSimilarity(text, in.LastBotMessage) > e.limits.SimilarityThreshold
			},
			instruction: func(_ string, in Input) string {
				return fmt.Sprintf("A resposta repete a mensagem anterior (%q). Mude o ângulo, a estrutura e o vocabulário, mantendo o objetivo.", in.LastBotMessage)
			},
			repair: func(string, Input) string { return e.responses.RepetitionFallback },
		},
		{
			name:     ViolationLength,
			violated: func(text string, _ Input) bool { return runeLen(text) > e.limits.MaxChars },
			instruction: func(string, Input) string {
				return fmt.Sprintf("Encurte a resposta para no máximo %d caracteres, mantendo a pergunta final.", e.limits.MaxChars)
			},
			repair: func(text string, _ Input) string {
				return HardTruncate(text, e.limits.MaxChars-e.limits.TruncateMargin)
			},
		},
		{
			name:     ViolationConversationKiller,
			violated: func(text string, _ Input) bool { return IsConversationKiller(text) },
			instruction: func(string, Input) string {
				return "A resposta é genérica e encerra a conversa. Escreva uma continuação específica e envolvente, com uma pergunta sobre o interesse do cliente."
			},
			repair: func(string, Input) string { return e.responses.EngagingFallback },
		},
		{
			name: ViolationNameCooldown,
			violated: func(text string, in Input) bool {
				if in.Summary == nil || !ContainsName(text, in.Summary.CustomerName) {
					return false
				}
				return !NameAllowed(in.Summary, in.Turn, e.limits.NameCooldownTurns, in.StateChanged)
			},
			repair: func(text string, in Input) string { return StripName(text, in.Summary.CustomerName) },
		},
		{
			name: ViolationPassiveMode,
			violated: func(text string, in Input) bool {
				if !in.Passive || AsksRealQuestion(in.UserMessage) {
					return false
				}
				return runeLen(text) > e.limits.PassiveMaxChars || HasQualificationQuestion(text)
			},
			repair: func(string, Input) string { return e.responses.PassiveFallback },
		},
	}
	return e
}

// Enforce runs every check in order, then the final normalization and CTA
// guarantee
func (e *Enforcer) Enforce(ctx context.Context, in Input) pkg.ValidationResult {
	text := Normalize(in.Candidate)
	result := pkg.ValidationResult{}

	for _, c := range e.checks {
		if !c.violated(text, in) {
			continue
		}
		result.Violations = append(result.Violations, c.name)

		if c.instruction != nil {
			rewritten, err := e.reformulate(ctx, in, text, c.instruction(text, in))
			if err == nil && !c.violated(rewritten, in) {
				text = rewritten
				result.WasReformulated = true
				continue
			}
			if err == nil {
				text = rewritten
				result.WasReformulated = true
			}
			logger.Debug().
				AnErr("cause", err).
				Err(pkg.ErrValidationExhausted).
				Str("check", c.name).
				Msg("Reformulation did not fix the violation, repairing locally")
		}
		text = c.repair(text, in)
	}

	text = e.Finalize(text)
	result.Response = text
	result.Valid = len(result.Violations) == 0
	if in.Summary != nil {
		result.NameUsed = ContainsName(text, in.Summary.CustomerName)
	}
	return result
}

var errNoReasoner = errors.New("no reasoner configured")

func (e *Enforcer) reformulate(ctx context.Context, in Input, text, instruction string) (string, error) {
	if e.reasoner == nil {
		return "", errNoReasoner
	}

	messages, err := llm.FormatReformulation(ctx, instruction, in.UserMessage, text)
	if err != nil {
		return "", err
	}
	completion, err := e.reasoner.Complete(ctx, messages, reasoner.Options{})
	if err != nil {
		return "", err
	}
	rewritten := Normalize(completion.Content)
	if rewritten == "" {
		return "", llm.ErrEmptyOutput
	}
	return rewritten, nil
}

// Finalize applies the global constraints every outbound text must meet:
// normalized, one question at most, sentence cap, a call-to-action and the
// length budget
func (e *Enforcer) Finalize(text string) string {
	return e.finalize(text, e.limits.MaxChars)
}

// FinalizeWithNotices finalizes text and places notices verbatim before the
// closing call-to-action. Notices stay out of the sentence cap but share the
// length budget.
func (e *Enforcer) FinalizeWithNotices(text string, notices []string) string {
	extra := Normalize(strings.Join(notices, " "))
	if extra == "" {
		return e.Finalize(text)
	}

	limit := e.limits.MaxChars - runeLen(extra) - 1
	if limit < e.limits.MaxChars/2 {
		limit = e.limits.MaxChars / 2
	}
	sentences := SplitSentences(e.finalize(text, limit))
	if n := len(sentences); n > 0 && HasCTA(sentences[n-1]) {
		cta := sentences[n-1]
		sentences = append(sentences[:n-1], extra, cta)
	} else {
		sentences = append(sentences, extra)
	}
	return strings.Join(sentences, " ")
}

func (e *Enforcer) finalize(text string, maxChars int) string {
	maxSentences := e.limits.MaxSentences
	if maxSentences < 2 {
		maxSentences = 2
	}

	text = Normalize(text)
	text = repeatedQuestionRe.ReplaceAllString(text, "?")
	text = TruncateToOneQuestion(text)
	text = limitSentences(text, maxSentences)

	if !HasCTA(text) {
		cta := e.chooseCTA()
		body := closeSentence(limitSentences(text, maxSentences-1))
		body = HardTruncate(body, maxChars-runeLen(cta)-1)
		text = strings.TrimSpace(body + " " + cta)
	}

	text = e.fitLength(text, maxChars)
	return keepFirstQuestionMark(text)
}

// fitLength shortens the sentences around the call-to-action so the
// call-to-action itself survives the length budget
func (e *Enforcer) fitLength(text string, limit int) string {
	if runeLen(text) <= limit {
		return text
	}

	sentences := SplitSentences(text)
	ctaIdx := -1
	for i := len(sentences) - 1; i >= 0; i-- {
		if HasCTA(sentences[i]) {
			ctaIdx = i
			break
		}
	}
	if ctaIdx < 0 || runeLen(sentences[ctaIdx]) >= limit {
		return HardTruncate(text, limit-e.limits.TruncateMargin)
	}

	cta := sentences[ctaIdx]
	rest := append(append([]string{}, sentences[:ctaIdx]...), sentences[ctaIdx+1:]...)
	body := HardTruncate(strings.Join(rest, " "), limit-runeLen(cta)-1)
	return strings.TrimSpace(body + " " + cta)
}

func (e *Enforcer) chooseCTA() string {
	pool := append(append([]string{}, e.responses.QuestionCTAs...), e.responses.StatementCTAs...)
	if len(pool) == 0 {
		return defaultCTA
	}
	return pool[e.pick(len(pool))]
}

// dropQualificationQuestions removes qualification questions, falling back
// to the handoff confirmation when nothing is left
func (e *Enforcer) dropQualificationQuestions(text string, _ Input) string {
	var kept []string
	for _, s := range SplitSentences(text) {
		if strings.Contains(s, "?") && HasQualificationQuestion(s) {
			continue
		}
		kept = append(kept, s)
	}
	if len(kept) == 0 {
		return e.responses.HandoffConfirm
	}
	return strings.Join(kept, " ")
}

// Validate lists the global constraints text breaks
func (e *Enforcer) Validate(text string) []string {
	var problems []string
	if n := len(SplitSentences(text)); n > e.limits.MaxSentences && e.limits.MaxSentences >= 2 {
		problems = append(problems, fmt.Sprintf("%d sentences", n))
	}
	if n := strings.Count(text, "?"); n > 1 {
		problems = append(problems, fmt.Sprintf("%d question marks", n))
	}
	if HasEmoji(text) {
		problems = append(problems, "emoji")
	}
	if !HasCTA(text) {
		problems = append(problems, "no call-to-action")
	}
	if runeLen(text) > e.limits.MaxChars {
		problems = append(problems, fmt.Sprintf("%d chars", runeLen(text)))
	}
	return problems
}

// HasQualificationQuestion reports whether a question sentence of text
// asks for budget, trade-in, model or payment
func HasQualificationQuestion(text string) bool {
	for _, s := range SplitSentences(text) {
		if strings.Contains(s, "?") && qualificationRe.MatchString(textsim.Fold(s)) {
			return true
		}
	}
	return false
}

// IsConversationKiller reports whether text is a bare acknowledgment
func IsConversationKiller(text string) bool {
	folded := strings.Trim(textsim.Fold(text), " .!,")
	return killerRe.MatchString(folded)
}

// AsksRealQuestion reports whether the customer's message is a question,
// a comparison or about car attributes
func AsksRealQuestion(message string) bool {
	if strings.Contains(message, "?") {
		return true
	}
	folded := textsim.Fold(message)
	return comparisonRe.MatchString(folded) || carAttributeRe.MatchString(folded)
}
