package nodes

import (
	"context"

	"eino_dealer_bot/internal/core"
	"eino_dealer_bot/internal/metrics"
	"eino_dealer_bot/internal/policy"
	"eino_dealer_bot/internal/repetition"
	"eino_dealer_bot/src/logger"
)

// PolicyNode runs the response policy on the reasoner candidate
type PolicyNode struct {
	enforcer *policy.Enforcer
	counters *metrics.Counters
}

func NewPolicyNode(enforcer *policy.Enforcer, counters *metrics.Counters) *PolicyNode {
	return &PolicyNode{enforcer: enforcer, counters: counters}
}

func (n *PolicyNode) Execute(ctx context.Context, state *core.TurnState) (core.NodeOutput, error) {
	result := n.enforcer.Enforce(ctx, policy.Input{
		Candidate:      state.Candidate,
		UserMessage:    state.Message.Text,
		Summary:        state.Summary,
		Turn:           state.Summary.TurnCount + 1,
		HandoffActive:  state.HandoffActive,
		Passive:        state.Passive,
		LastBotMessage: state.LastBotMessage(),
		StateChanged:   state.StateChanged,
	})

	state.Validation = result
	state.Response = result.Response
	n.counters.PolicyViolations.Add(int64(len(result.Violations)))
	if result.WasReformulated {
		n.counters.Reformulations.Add(1)
	}

	log := logger.ForTurn(state.Message.UserID, state.TurnID)
	if !result.Valid {
		log.Info().
			Strs("violations", result.Violations).
			Bool("reformulated", result.WasReformulated).
			Msg("Candidate repaired by policy")
	}
	if problems := n.enforcer.Validate(result.Response); len(problems) > 0 {
		log.Warn().Strs("problems", problems).Msg("Response still breaks global constraints")
	}
	return core.NodeOutput{}, nil
}

func (n *PolicyNode) GetName() string { return "policy" }

func (n *PolicyNode) GetType() core.NodeType { return core.NodeTypeGuardrail }

// RepetitionNode rewrites a reply that repeats a recent response
type RepetitionNode struct {
	guard    *repetition.Guard
	enforcer *policy.Enforcer
	counters *metrics.Counters
}

func NewRepetitionNode(guard *repetition.Guard, enforcer *policy.Enforcer, counters *metrics.Counters) *RepetitionNode {
	return &RepetitionNode{guard: guard, enforcer: enforcer, counters: counters}
}

func (n *RepetitionNode) Execute(ctx context.Context, state *core.TurnState) (core.NodeOutput, error) {
	result := n.guard.Check(ctx, state.Response, state.History)
	if !result.Reformulated {
		return core.NodeOutput{}, nil
	}

	n.counters.RepetitionRewrites.Add(1)
	state.Rewritten = true
	state.Response = n.enforcer.Finalize(result.Text)

	log := logger.ForTurn(state.Message.UserID, state.TurnID)
	log.Info().
		Bool("exact", result.ExactMatch).
		Float64("similarity", result.Similarity).
		Msg("Repeated reply rewritten")
	return core.NodeOutput{}, nil
}

func (n *RepetitionNode) GetName() string { return "repetition" }

func (n *RepetitionNode) GetType() core.NodeType { return core.NodeTypeGuardrail }

// FinalizeNode applies the global text constraints to replies that did not
// go through the policy
type FinalizeNode struct {
	enforcer *policy.Enforcer
}

func NewFinalizeNode(enforcer *policy.Enforcer) *FinalizeNode {
	return &FinalizeNode{enforcer: enforcer}
}

func (n *FinalizeNode) Execute(_ context.Context, state *core.TurnState) (core.NodeOutput, error) {
	state.Response = n.enforcer.FinalizeWithNotices(state.Response, state.Notices)
	return core.NodeOutput{}, nil
}

func (n *FinalizeNode) GetName() string { return "finalize" }

func (n *FinalizeNode) GetType() core.NodeType { return core.NodeTypeGuardrail }
