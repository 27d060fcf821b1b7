package nodes

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"eino_dealer_bot/internal/core"
	"eino_dealer_bot/internal/metrics"
	"eino_dealer_bot/internal/policy"
	"eino_dealer_bot/internal/rules"
	"eino_dealer_bot/internal/services"
	"eino_dealer_bot/pkg"
	"eino_dealer_bot/src/conversation"
	"eino_dealer_bot/src/logger"
)

// PersistNode writes the turn back: summary, response record and transcript.
// Write failures are logged and the reply is still delivered.
type PersistNode struct {
	summaries  *conversation.SummaryService
	history    conversation.ResponseHistory
	transcript conversation.Repository
}

func NewPersistNode(summaries *conversation.SummaryService, history conversation.ResponseHistory, transcript conversation.Repository) *PersistNode {
	return &PersistNode{summaries: summaries, history: history, transcript: transcript}
}

func (n *PersistNode) Execute(ctx context.Context, state *core.TurnState) (core.NodeOutput, error) {
	userID := state.Message.UserID
	log := logger.ForTurn(userID, state.TurnID)

	state.Summary = n.summaries.Save(ctx, userID, state.Summary, buildUpdate(state))

	if state.Response != "" {
		if err := n.history.Append(ctx, userID, conversation.NewResponseRecord(state.Response, state.Now)); err != nil {
			log.Warn().Err(err).Msg("Failed to append response record")
			state.AddError(n.GetName(), err)
		}
	}

	if n.transcript != nil {
		messages := []*schema.Message{schema.UserMessage(state.Message.Text)}
		if state.Response != "" {
			messages = append(messages, schema.AssistantMessage(state.Response, nil))
		}
		if err := n.transcript.AddMessages(ctx, userID, messages...); err != nil {
			log.Warn().Err(err).Msg("Failed to append transcript")
			state.AddError(n.GetName(), err)
		}
	}

	state.Persisted = true
	return core.NodeOutput{}, nil
}

func (n *PersistNode) GetName() string { return "persist" }

func (n *PersistNode) GetType() core.NodeType { return core.NodeTypeStorage }

// buildUpdate collects what the turn learned about the customer
func buildUpdate(state *core.TurnState) conversation.SummaryUpdate {
	summary := state.Summary
	data := state.Intent.ExtractedData
	update := conversation.SummaryUpdate{
		Intent:      state.Intent.Type,
		Stage:       state.Stage,
		LastAction:  lastAction(state),
		SlotsFilled: filledSlots(state.Intent),
		ClearAsked:  state.ModelChanged,
		AskedSlots:  askedSlots(state.Response),
		NameUsed:    state.Validation.NameUsed,
	}

	if summary.CustomerName == "" {
		update.CustomerName = firstWord(state.Message.SenderName)
	}
	if data.CarModel != "" && state.Intent.Type != pkg.IntentTradeIn {
		update.PreferredModel = data.CarModel
	}
	if state.Intent.Type == pkg.IntentSellerRequest && !state.Passive {
		update.HandoffAt = state.Now
	}

	if state.Intent.Type == pkg.IntentTradeIn && data.HasPrice() {
		valuation := *pickPrice(data)
		update.TradeValuation = &valuation
	}
	if state.Decision != nil && state.Decision.Rule == rules.RuleTradeConfirmation {
		// the offer was accepted, do not confirm it twice
		cleared := 0
		update.TradeValuation = &cleared
	}
	if state.Decision != nil && state.Decision.OptOut {
		update.OptOut = true
	}
	return update
}

func lastAction(state *core.TurnState) pkg.Action {
	switch {
	case state.Decision != nil:
		return state.Decision.Action
	case state.Source == core.SourceFallback:
		return pkg.ActionNone
	case state.Source == core.SourceFAQ:
		return pkg.ActionInfo
	case state.Intent.Type == pkg.IntentSellerRequest:
		return pkg.ActionSeller
	case len(state.Cars) > 0:
		return pkg.ActionCars
	case policy.HasQualificationQuestion(state.Response):
		return pkg.ActionAsk
	}
	return pkg.ActionInfo
}

func pickPrice(data pkg.ExtractedData) *int {
	if data.PriceMax != nil {
		return data.PriceMax
	}
	return data.PriceMin
}

func firstWord(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// DeliverNode hands the reply to the message bus
type DeliverNode struct {
	bus      services.MessageBus
	counters *metrics.Counters
}

func NewDeliverNode(bus services.MessageBus, counters *metrics.Counters) *DeliverNode {
	return &DeliverNode{bus: bus, counters: counters}
}

func (n *DeliverNode) Execute(ctx context.Context, state *core.TurnState) (core.NodeOutput, error) {
	if state.Response == "" {
		return core.NodeOutput{Complete: true}, nil
	}
	if err := n.bus.Send(ctx, state.Message.UserID, state.Response); err != nil {
		n.counters.DeliveryFailures.Add(1)
		state.AddError(n.GetName(), err)
		log := logger.ForTurn(state.Message.UserID, state.TurnID)
		log.Error().Err(err).Msg("Failed to deliver reply")
		return core.NodeOutput{Complete: true}, nil
	}
	state.Delivered = true
	return core.NodeOutput{Complete: true}, nil
}

func (n *DeliverNode) GetName() string { return "deliver" }

func (n *DeliverNode) GetType() core.NodeType { return core.NodeTypeDelivery }
