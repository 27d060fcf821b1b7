// Package metrics holds the best-effort process counters. They are owned by
// the entry point and passed to the components that bump them.
package metrics

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Counters are lost on restart and never drive behavior
type Counters struct {
	Turns              atomic.Int64
	RuleShortCircuits  atomic.Int64
	FAQAnswers         atomic.Int64
	InventorySearches  atomic.Int64
	InventoryFailures  atomic.Int64
	ReasonerCalls      atomic.Int64
	ReasonerFailures   atomic.Int64
	PolicyViolations   atomic.Int64
	Reformulations     atomic.Int64
	RepetitionRewrites atomic.Int64
	DeliveryFailures   atomic.Int64
	FollowUpsSent      atomic.Int64
	PromptTokens       atomic.Int64
	CompletionTokens   atomic.Int64
}

// New returns zeroed counters
func New() *Counters {
	return &Counters{}
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	Turns              int64 `json:"turns"`
	RuleShortCircuits  int64 `json:"rule_short_circuits"`
	FAQAnswers         int64 `json:"faq_answers"`
	InventorySearches  int64 `json:"inventory_searches"`
	InventoryFailures  int64 `json:"inventory_failures"`
	ReasonerCalls      int64 `json:"reasoner_calls"`
	ReasonerFailures   int64 `json:"reasoner_failures"`
	PolicyViolations   int64 `json:"policy_violations"`
	Reformulations     int64 `json:"reformulations"`
	RepetitionRewrites int64 `json:"repetition_rewrites"`
	DeliveryFailures   int64 `json:"delivery_failures"`
	FollowUpsSent      int64 `json:"follow_ups_sent"`
	PromptTokens       int64 `json:"prompt_tokens"`
	CompletionTokens   int64 `json:"completion_tokens"`
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Turns:              c.Turns.Load(),
		RuleShortCircuits:  c.RuleShortCircuits.Load(),
		FAQAnswers:         c.FAQAnswers.Load(),
		InventorySearches:  c.InventorySearches.Load(),
		InventoryFailures:  c.InventoryFailures.Load(),
		ReasonerCalls:      c.ReasonerCalls.Load(),
		ReasonerFailures:   c.ReasonerFailures.Load(),
		PolicyViolations:   c.PolicyViolations.Load(),
		Reformulations:     c.Reformulations.Load(),
		RepetitionRewrites: c.RepetitionRewrites.Load(),
		DeliveryFailures:   c.DeliveryFailures.Load(),
		FollowUpsSent:      c.FollowUpsSent.Load(),
		PromptTokens:       c.PromptTokens.Load(),
		CompletionTokens:   c.CompletionTokens.Load(),
	}
}

// MarshalZerologObject lets a snapshot be logged with Object
func (s Snapshot) MarshalZerologObject(e *zerolog.Event) {
	e.Int64("turns", s.Turns).
		Int64("rule_short_circuits", s.RuleShortCircuits).
		Int64("faq_answers", s.FAQAnswers).
		Int64("inventory_searches", s.InventorySearches).
		Int64("inventory_failures", s.InventoryFailures).
		Int64("reasoner_calls", s.ReasonerCalls).
		Int64("reasoner_failures", s.ReasonerFailures).
		Int64("policy_violations", s.PolicyViolations).
		Int64("reformulations", s.Reformulations).
		Int64("repetition_rewrites", s.RepetitionRewrites).
		Int64("delivery_failures", s.DeliveryFailures).
		Int64("follow_ups_sent", s.FollowUpsSent).
		Int64("prompt_tokens", s.PromptTokens).
		Int64("completion_tokens", s.CompletionTokens)
}
