package core

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"

	"eino_dealer_bot/pkg"
)

// Node represents a single processing unit in the turn flow
type Node interface {
	Execute(ctx context.Context, state *TurnState) (NodeOutput, error)
	GetName() string
	GetType() NodeType
}

// NodeType defines the different types of nodes in the graph
type NodeType string

const (
	NodeTypeLoad      NodeType = "load"
	NodeTypeClassify  NodeType = "classify"
	NodeTypeRule      NodeType = "rule"
	NodeTypeFAQ       NodeType = "faq"
	NodeTypeTools     NodeType = "tools"
	NodeTypeReasoner  NodeType = "reasoner"
	NodeTypeGuardrail NodeType = "guardrail"
	NodeTypeStorage   NodeType = "storage"
	NodeTypeDelivery  NodeType = "delivery"
)

// Source tells which step produced the outbound text
type Source string

const (
	SourceRule     Source = "rule"
	SourceFAQ      Source = "faq"
	SourceReasoner Source = "reasoner"
	SourceFallback Source = "fallback"
)

// TurnState is the data shared by the nodes of one turn. It is created per
// inbound message and never shared between turns.
type TurnState struct {
	TurnID  string
	Message pkg.InboundMessage
	Now     time.Time

	// loaded
	Summary    *pkg.TurnSummary
	History    []pkg.ResponseRecord
	Transcript []*schema.Message

	// classified
	Intent        pkg.DetectedIntent
	Stage         pkg.Stage
	StateChanged  bool
	ModelChanged  bool
	HandoffActive bool
	Passive       bool

	Decision    *pkg.Decision
	FAQCategory string

	// sent verbatim, outside the sentence cap
	Notices []string

	Filters       pkg.CarFilters
	Cars          []pkg.Car
	SearchFailed  bool
	SearchApplied bool

	Candidate  string
	Response   string
	Source     Source
	Validation pkg.ValidationResult
	Rewritten  bool

	Persisted bool
	Delivered bool
	Errors    []string
}

// AddError records a non-fatal problem of the turn
func (s *TurnState) AddError(node string, err error) {
	s.Errors = append(s.Errors, node+": "+err.Error())
}

// LastBotMessage is the newest delivered response, if any
func (s *TurnState) LastBotMessage() string {
	if len(s.History) == 0 {
		return ""
	}
	return s.History[0].Text
}

// NodeOutput tells the processor where to go next
type NodeOutput struct {
	NextNode string `json:"next_node,omitempty"`
	Complete bool   `json:"complete"`
}

// GraphProcessor orchestrates the execution of nodes in a graph flow
type GraphProcessor interface {
	Execute(ctx context.Context, state *TurnState) (*ProcessorOutput, error)
	AddNode(node Node) error
	GetNode(name string) (Node, error)
	SetFlow(flow GraphFlow) error
}

// ProcessorOutput is the main output from the graph processor
type ProcessorOutput struct {
	TurnID         string         `json:"turn_id"`
	Response       string         `json:"response"`
	Source         Source         `json:"source"`
	Intent         pkg.IntentType `json:"intent"`
	Delivered      bool           `json:"delivered"`
	ExecutionPath  []string       `json:"execution_path"`
	Errors         []string       `json:"errors,omitempty"`
	ProcessingTime int64          `json:"processing_time_ms"`
}

// GraphFlow defines the execution flow between nodes
type GraphFlow struct {
	StartNode string                 `json:"start_node"`
	Edges     map[string][]GraphEdge `json:"edges"` // node_name -> possible next nodes
}

// GraphEdge is a connection between two nodes, taken when Condition holds
type GraphEdge struct {
	To        string                `json:"to"`
	Condition func(*TurnState) bool `json:"-"`
	Priority  int                   `json:"priority"`
}

// Complete is the pseudo node that ends a flow
const Complete = "complete"
