package nodes

import (
	"context"

	"eino_dealer_bot/internal/config"
	"eino_dealer_bot/internal/core"
	"eino_dealer_bot/internal/intent"
	"eino_dealer_bot/pkg"
	"eino_dealer_bot/src/conversation"
	"eino_dealer_bot/src/logger"
)

// LoadNode reads the stored state of the customer: summary, recent
// responses and transcript. Store failures leave the defaults in place.
type LoadNode struct {
	summaries  *conversation.SummaryService
	history    conversation.ResponseHistory
	transcript conversation.Repository
	strategy   conversation.ContextStrategy
}

func NewLoadNode(summaries *conversation.SummaryService, history conversation.ResponseHistory, transcript conversation.Repository, strategy conversation.ContextStrategy) *LoadNode {
	return &LoadNode{summaries: summaries, history: history, transcript: transcript, strategy: strategy}
}

func (n *LoadNode) Execute(ctx context.Context, state *core.TurnState) (core.NodeOutput, error) {
	userID := state.Message.UserID
	log := logger.ForTurn(userID, state.TurnID)

	state.Summary = n.summaries.Load(ctx, userID)

	records, err := n.history.Recent(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load response history")
		state.AddError(n.GetName(), err)
	}
	state.History = records

	if n.transcript != nil {
		messages, err := n.transcript.GetContextForModel(ctx, userID, n.strategy)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load transcript")
			state.AddError(n.GetName(), err)
		}
		state.Transcript = messages
	}

	log.Debug().
		Int("turn_count", state.Summary.TurnCount).
		Int("history", len(state.History)).
		Int("transcript", len(state.Transcript)).
		Msg("Conversation state loaded")
	return core.NodeOutput{}, nil
}

func (n *LoadNode) GetName() string { return "load" }

func (n *LoadNode) GetType() core.NodeType { return core.NodeTypeLoad }

// ClassifyNode detects the intent and derives the funnel stage and the
// handoff flags of the turn
type ClassifyNode struct {
	classifier *intent.Classifier
	limits     config.PolicyLimits
}

func NewClassifyNode(classifier *intent.Classifier, limits config.PolicyLimits) *ClassifyNode {
	return &ClassifyNode{classifier: classifier, limits: limits}
}

func (n *ClassifyNode) Execute(_ context.Context, state *core.TurnState) (core.NodeOutput, error) {
	summary := state.Summary
	state.Intent = n.classifier.Classify(state.Message.Text)

	model := state.Intent.ExtractedData.CarModel
	state.ModelChanged = model != "" && summary.PreferredModel != "" && model != summary.PreferredModel

	state.Stage = deriveStage(summary.Stage, state.Intent, summary)
	state.StateChanged = state.Stage != summary.Stage || state.ModelChanged

	// passive mode only when the handoff happened on an earlier turn
	state.Passive = summary.HandoffActive(state.Now, n.limits.HandoffWindow())
	state.HandoffActive = state.Passive || state.Intent.Type == pkg.IntentSellerRequest

	log := logger.ForTurn(state.Message.UserID, state.TurnID)
	log.Debug().
		Str("intent", string(state.Intent.Type)).
		Str("confidence", string(state.Intent.Confidence)).
		Str("stage", string(state.Stage)).
		Bool("passive", state.Passive).
		Msg("Message classified")
	return core.NodeOutput{}, nil
}

func (n *ClassifyNode) GetName() string { return "classify" }

func (n *ClassifyNode) GetType() core.NodeType { return core.NodeTypeClassify }
