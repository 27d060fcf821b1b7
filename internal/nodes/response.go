package nodes

import (
	"context"
	"strings"

	"eino_dealer_bot/internal/config"
	"eino_dealer_bot/internal/core"
	"eino_dealer_bot/internal/metrics"
	"eino_dealer_bot/internal/reasoner"
	"eino_dealer_bot/internal/services"
	"eino_dealer_bot/src/conversation"
	"eino_dealer_bot/src/llm"
	"eino_dealer_bot/src/logger"
)

// ReasonerNode asks the language model for a candidate reply. When the model
// is unavailable the turn falls back to the scripted unavailable text.
type ReasonerNode struct {
	reasoner reasoner.Reasoner
	cfg      *config.BotConfig
	counters *metrics.Counters
}

func NewReasonerNode(r reasoner.Reasoner, cfg *config.BotConfig, counters *metrics.Counters) *ReasonerNode {
	return &ReasonerNode{reasoner: r, cfg: cfg, counters: counters}
}

func (n *ReasonerNode) Execute(ctx context.Context, state *core.TurnState) (core.NodeOutput, error) {
	log := logger.ForTurn(state.Message.UserID, state.TurnID)

	inventory := make([]string, 0, len(state.Cars))
	for _, car := range state.Cars {
		inventory = append(inventory, services.FormatCar(car))
	}

	messages, err := llm.FormatResponse(ctx, llm.ResponseInput{
		StoreName: n.cfg.Store.Name,
		MaxChars:  n.cfg.Policy.MaxChars,
		Summary:   n.contextSummary(state),
		Inventory: inventory,
		History:   state.Transcript,
		Message:   state.Message.Text,
	})
	if err != nil {
		return core.NodeOutput{}, err
	}

	n.counters.ReasonerCalls.Add(1)
	completion, err := n.reasoner.Complete(ctx, messages, reasoner.Options{})
	if err != nil {
		n.counters.ReasonerFailures.Add(1)
		state.AddError(n.GetName(), err)
		log.Warn().Err(err).Msg("Reasoner unavailable, using fallback")
		state.Response = n.cfg.Responses.Unavailable
		state.Source = core.SourceFallback
		return core.NodeOutput{}, nil
	}

	if completion.Usage != nil {
		n.counters.PromptTokens.Add(int64(completion.Usage.PromptTokens))
		n.counters.CompletionTokens.Add(int64(completion.Usage.CompletionTokens))
	}
	state.Candidate = completion.Content
	state.Response = completion.Content
	state.Source = core.SourceReasoner

	log.Debug().Int("chars", len(completion.Content)).Msg("Candidate generated")
	return core.NodeOutput{}, nil
}

// contextSummary is the stored digest plus the facts of this turn
func (n *ReasonerNode) contextSummary(state *core.TurnState) string {
	var b strings.Builder
	b.WriteString(conversation.BuildContextSummary(state.Summary))
	if state.HandoffActive {
		b.WriteString("\nUm vendedor já foi acionado para este cliente. Não faça perguntas de qualificação.")
	}
	if state.SearchFailed {
		b.WriteString("\nO estoque está indisponível agora. Não cite carros nem preços.")
	}
	if state.Decision != nil && state.Decision.PriceFilter != nil {
		b.WriteString("\nO cliente aceitou ver carros até o valor da avaliação do carro dele.")
	}
	return b.String()
}

func (n *ReasonerNode) GetName() string { return "reasoner" }

func (n *ReasonerNode) GetType() core.NodeType { return core.NodeTypeReasoner }
