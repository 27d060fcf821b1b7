package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"eino_dealer_bot/src/logger"
)

const tracerName = "eino_dealer_bot/internal/core"

// DefaultGraphProcessor implements the GraphProcessor interface
type DefaultGraphProcessor struct {
	nodes  map[string]Node
	flow   GraphFlow
	tracer trace.Tracer
}

// ProcessorOption customizes a DefaultGraphProcessor
type ProcessorOption func(*DefaultGraphProcessor)

// WithTracer replaces the global tracer
func WithTracer(tracer trace.Tracer) ProcessorOption {
	return func(g *DefaultGraphProcessor) { g.tracer = tracer }
}

// NewGraphProcessor creates a new graph processor
func NewGraphProcessor(flow GraphFlow, opts ...ProcessorOption) *DefaultGraphProcessor {
	processor := &DefaultGraphProcessor{
		nodes:  make(map[string]Node),
		flow:   flow,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(processor)
	}
	return processor
}

// Execute runs the flow over state, one span per node
func (g *DefaultGraphProcessor) Execute(ctx context.Context, state *TurnState) (*ProcessorOutput, error) {
	startTime := time.Now()
	log := logger.ForTurn(state.Message.UserID, state.TurnID)

	ctx, span := g.tracer.Start(ctx, "turn", trace.WithAttributes(
		attribute.String("turn.id", state.TurnID),
		attribute.String("user.id", state.Message.UserID),
	))
	defer span.End()

	log.Debug().Msg("Starting turn execution")

	output := &ProcessorOutput{TurnID: state.TurnID}
	currentNode := g.flow.StartNode
	// every node runs at most once per turn
	maxSteps := len(g.nodes) + 1

	for currentNode != "" && currentNode != Complete {
		if len(output.ExecutionPath) >= maxSteps {
			err := fmt.Errorf("flow did not complete after %d nodes", maxSteps)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		output.ExecutionPath = append(output.ExecutionPath, currentNode)

		node, exists := g.nodes[currentNode]
		if !exists {
			return nil, fmt.Errorf("node not found: %s", currentNode)
		}

		nodeOutput, err := g.executeNode(ctx, node, state)
		if err != nil {
			log.Error().Err(err).Str("node", currentNode).Msg("Node failed")
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("error executing node %s: %w", currentNode, err)
		}

		if nodeOutput.Complete {
			break
		}

		nextNode := nodeOutput.NextNode
		if nextNode == "" {
			nextNode = g.getNextNode(currentNode, state)
		}
		currentNode = nextNode
	}

	processingTime := time.Since(startTime)
	output.Response = state.Response
	output.Source = state.Source
	output.Intent = state.Intent.Type
	output.Delivered = state.Delivered
	output.Errors = state.Errors
	output.ProcessingTime = processingTime.Milliseconds()

	span.SetAttributes(
		attribute.String("turn.source", string(state.Source)),
		attribute.String("turn.intent", string(state.Intent.Type)),
		attribute.StringSlice("turn.path", output.ExecutionPath),
	)
	log.Info().
		Str("source", string(state.Source)).
		Str("intent", string(state.Intent.Type)).
		Strs("path", output.ExecutionPath).
		Dur("elapsed", processingTime).
		Msg("Turn completed")

	return output, nil
}

func (g *DefaultGraphProcessor) executeNode(ctx context.Context, node Node, state *TurnState) (NodeOutput, error) {
	ctx, span := g.tracer.Start(ctx, "node."+node.GetName(), trace.WithAttributes(
		attribute.String("node.name", node.GetName()),
		attribute.String("node.type", string(node.GetType())),
	))
	defer span.End()

	out, err := node.Execute(ctx, state)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

// AddNode adds a node to the processor
func (g *DefaultGraphProcessor) AddNode(node Node) error {
	if node == nil {
		return fmt.Errorf("node cannot be nil")
	}

	nodeName := node.GetName()
	if nodeName == "" {
		return fmt.Errorf("node name cannot be empty")
	}

	g.nodes[nodeName] = node
	return nil
}

// GetNode retrieves a node by name
func (g *DefaultGraphProcessor) GetNode(name string) (Node, error) {
	node, exists := g.nodes[name]
	if !exists {
		return nil, fmt.Errorf("node not found: %s", name)
	}
	return node, nil
}

// SetFlow sets the execution flow
func (g *DefaultGraphProcessor) SetFlow(flow GraphFlow) error {
	if flow.StartNode == "" {
		return fmt.Errorf("start node cannot be empty")
	}

	g.flow = flow
	return nil
}

// getNextNode takes the first edge, by priority, whose condition holds
func (g *DefaultGraphProcessor) getNextNode(currentNode string, state *TurnState) string {
	edges, exists := g.flow.Edges[currentNode]
	if !exists || len(edges) == 0 {
		return Complete
	}

	sorted := make([]GraphEdge, len(edges))
	copy(sorted, edges)
	// lower number = higher priority
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	for _, edge := range sorted {
		if edge.Condition == nil || edge.Condition(state) {
			return edge.To
		}
	}
	return Complete
}
