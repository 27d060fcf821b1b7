package conversation

import (
	"github.com/cloudwego/eino/schema"
)

type ContextStrategy interface {
	Select(messages []*schema.Message) []*schema.Message
	GetMaxTurns() int
}

// ====================== Reasoner ======================
// ReasonerContextStrategy - user and assistant turns only, last N messages
type ReasonerContextStrategy struct {
	maxTurns int
}

func NewReasonerContextStrategy(maxTurns int) *ReasonerContextStrategy {
	if maxTurns <= 0 {
		maxTurns = 10
	}
	return &ReasonerContextStrategy{maxTurns: maxTurns}
}

func (s *ReasonerContextStrategy) GetMaxTurns() int {
	return s.maxTurns
}

func (s *ReasonerContextStrategy) Select(messages []*schema.Message) []*schema.Message {
	dialog := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case schema.User, schema.Assistant:
			dialog = append(dialog, msg)
		}
	}
	return trimTail(dialog, s.maxTurns)
}

// Helper function
func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if maxTurns <= 0 || len(messages) <= maxTurns {
		return messages
	}
	return messages[len(messages)-maxTurns:]
}
