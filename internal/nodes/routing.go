package nodes

import (
	"context"

	"eino_dealer_bot/internal/core"
	"eino_dealer_bot/internal/faq"
	"eino_dealer_bot/internal/metrics"
	"eino_dealer_bot/internal/policy"
	"eino_dealer_bot/internal/rules"
	"eino_dealer_bot/pkg"
	"eino_dealer_bot/src/logger"
)

// RuleNode short-circuits the turns the rule gate can answer alone
type RuleNode struct {
	gate     *rules.Gate
	counters *metrics.Counters
}

func NewRuleNode(gate *rules.Gate, counters *metrics.Counters) *RuleNode {
	return &RuleNode{gate: gate, counters: counters}
}

func (n *RuleNode) Execute(_ context.Context, state *core.TurnState) (core.NodeOutput, error) {
	decision := n.gate.Evaluate(rules.Input{
		Message:            state.Message.Text,
		Intent:             state.Intent,
		Summary:            state.Summary,
		HasPriorBotMessage: len(state.History) > 0,
		Now:                state.Now,
	})
	if decision == nil {
		return core.NodeOutput{}, nil
	}
	state.Decision = decision

	log := logger.ForTurn(state.Message.UserID, state.TurnID)
	log.Info().Str("rule", decision.Rule).Bool("skip", decision.SkipExternalCall).Msg("Rule matched")

	if decision.PriceFilter != nil {
		state.Filters.PriceMax = *decision.PriceFilter
	}
	if decision.SkipExternalCall {
		n.counters.RuleShortCircuits.Add(1)
		// scripted texts are sent as written, farewells never get a CTA
		state.Response = policy.Normalize(decision.Response)
		state.Source = core.SourceRule
	}
	return core.NodeOutput{}, nil
}

func (n *RuleNode) GetName() string { return "rule" }

func (n *RuleNode) GetType() core.NodeType { return core.NodeTypeRule }

// FAQNode answers the recurring questions from configuration
type FAQNode struct {
	matcher  *faq.Matcher
	hours    faq.HoursProvider
	counters *metrics.Counters
}

func NewFAQNode(matcher *faq.Matcher, hours faq.HoursProvider, counters *metrics.Counters) *FAQNode {
	return &FAQNode{matcher: matcher, hours: hours, counters: counters}
}

func (n *FAQNode) Execute(_ context.Context, state *core.TurnState) (core.NodeOutput, error) {
	var hours faq.StoreHours
	if n.hours != nil {
		hours = n.hours.StoreHours(state.Now)
	}
	answer, ok := n.matcher.Match(state.Message.Text, hours)
	if !ok {
		return core.NodeOutput{}, nil
	}

	n.counters.FAQAnswers.Add(1)
	state.FAQCategory = string(answer.Category)
	state.Candidate = answer.String()
	state.Response = answer.Text
	state.Notices = answer.Notices
	state.Source = core.SourceFAQ

	log := logger.ForTurn(state.Message.UserID, state.TurnID)
	log.Info().Str("category", state.FAQCategory).Msg("FAQ answered")
	return core.NodeOutput{}, nil
}

func (n *FAQNode) GetName() string { return "faq" }

func (n *FAQNode) GetType() core.NodeType { return core.NodeTypeFAQ }

// searchWarranted tells whether the turn needs inventory data
func searchWarranted(state *core.TurnState) bool {
	if state.Decision != nil && state.Decision.PriceFilter != nil {
		return true
	}
	switch state.Intent.Type {
	case pkg.IntentCarSearch, pkg.IntentPriceQuery, pkg.IntentStockQuery:
		return true
	}
	return state.Intent.ExtractedData.CarModel != ""
}
