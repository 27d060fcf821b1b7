package nodes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"eino_dealer_bot/internal/config"
	"eino_dealer_bot/internal/core"
	"eino_dealer_bot/internal/faq"
	"eino_dealer_bot/internal/intent"
	"eino_dealer_bot/internal/metrics"
	"eino_dealer_bot/internal/policy"
	"eino_dealer_bot/internal/reasoner"
	"eino_dealer_bot/internal/repetition"
	"eino_dealer_bot/internal/rules"
	"eino_dealer_bot/internal/services"
	"eino_dealer_bot/pkg"
	"eino_dealer_bot/src/conversation"
	"eino_dealer_bot/src/logger"
)

// Dependencies are the collaborators of the turn pipeline. Config, Reasoner,
// Inventory, Summaries, History and Bus are required; the rest default from
// Config.
type Dependencies struct {
	Config    *config.BotConfig
	Reasoner  reasoner.Reasoner
	Inventory services.CarRepository
	Summaries *conversation.SummaryService
	History   conversation.ResponseHistory
	Bus       services.MessageBus

	Transcript conversation.Repository
	Strategy   conversation.ContextStrategy
	Hours      faq.HoursProvider
	Classifier *intent.Classifier
	Gate       *rules.Gate
	FAQ        *faq.Matcher
	Enforcer   *policy.Enforcer
	Repetition *repetition.Guard
	Counters   *metrics.Counters
	Tracer     trace.Tracer
	Clock      func() time.Time

	// RewriteTemperature is used by the repetition rewrite
	RewriteTemperature float32
}

// Pipeline turns one inbound message into at most one outbound message
type Pipeline struct {
	processor core.GraphProcessor
	bus       services.MessageBus
	cfg       *config.BotConfig
	counters  *metrics.Counters
	clock     func() time.Time
}

// NewPipeline validates deps, fills the defaults and builds the flow
func NewPipeline(deps Dependencies) (*Pipeline, error) {
	if err := deps.withDefaults(); err != nil {
		return nil, err
	}

	inventory, err := NewInventoryNode(deps.Inventory, deps.Config.Responses.NoCarsFound, deps.Counters)
	if err != nil {
		return nil, err
	}

	var opts []core.ProcessorOption
	if deps.Tracer != nil {
		opts = append(opts, core.WithTracer(deps.Tracer))
	}
	processor := core.NewGraphProcessor(TurnFlow(), opts...)

	for _, node := range []core.Node{
		NewLoadNode(deps.Summaries, deps.History, deps.Transcript, deps.Strategy),
		NewClassifyNode(deps.Classifier, deps.Config.Policy),
		NewRuleNode(deps.Gate, deps.Counters),
		NewFAQNode(deps.FAQ, deps.Hours, deps.Counters),
		inventory,
		NewReasonerNode(deps.Reasoner, deps.Config, deps.Counters),
		NewPolicyNode(deps.Enforcer, deps.Counters),
		NewRepetitionNode(deps.Repetition, deps.Enforcer, deps.Counters),
		NewFinalizeNode(deps.Enforcer),
		NewPersistNode(deps.Summaries, deps.History, deps.Transcript),
		NewDeliverNode(deps.Bus, deps.Counters),
	} {
		if err := processor.AddNode(node); err != nil {
			return nil, err
		}
	}

	return &Pipeline{
		processor: processor,
		bus:       deps.Bus,
		cfg:       deps.Config,
		counters:  deps.Counters,
		clock:     deps.Clock,
	}, nil
}

func (d *Dependencies) withDefaults() error {
	switch {
	case d.Config == nil:
		return errors.New("pipeline: config is required")
	case d.Reasoner == nil:
		return errors.New("pipeline: reasoner is required")
	case d.Inventory == nil:
		return errors.New("pipeline: inventory is required")
	case d.Summaries == nil:
		return errors.New("pipeline: summary service is required")
	case d.History == nil:
		return errors.New("pipeline: response history is required")
	case d.Bus == nil:
		return errors.New("pipeline: message bus is required")
	}

	if d.Strategy == nil {
		d.Strategy = conversation.NewReasonerContextStrategy(d.Config.Policy.HistorySize)
	}
	if d.Hours == nil {
		hours, err := faq.NewConfigHoursProvider(d.Config)
		if err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
		d.Hours = hours
	}
	if d.Classifier == nil {
		d.Classifier = intent.NewClassifier()
	}
	if d.Gate == nil {
		d.Gate = rules.NewGate(d.Config)
	}
	if d.FAQ == nil {
		d.FAQ = faq.NewMatcher(d.Config)
	}
	if d.Enforcer == nil {
		d.Enforcer = policy.NewEnforcer(d.Reasoner, d.Config)
	}
	if d.Repetition == nil {
		temperature := d.RewriteTemperature
		if temperature == 0 {
			temperature = 0.9
		}
		d.Repetition = repetition.NewGuard(d.Reasoner, d.Config.Policy.SimilarityThreshold, d.Config.Policy.HistorySize, temperature)
	}
	if d.Counters == nil {
		d.Counters = metrics.New()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return nil
}

// TurnFlow is the fixed order of a turn:
// load, classify, rule gate, FAQ, inventory, reasoner, policy, repetition,
// persist, deliver. Scripted and fallback replies skip straight to persist.
func TurnFlow() core.GraphFlow {
	scripted := func(s *core.TurnState) bool { return s.Decision != nil && s.Decision.SkipExternalCall }
	answered := func(s *core.TurnState) bool { return s.Source == core.SourceFAQ }
	fallback := func(s *core.TurnState) bool { return s.Source == core.SourceFallback }

	return core.GraphFlow{
		StartNode: "load",
		Edges: map[string][]core.GraphEdge{
			"load":     {{To: "classify"}},
			"classify": {{To: "rule"}},
			"rule": {
				{To: "persist", Priority: 0, Condition: scripted},
				{To: "inventory", Priority: 1, Condition: func(s *core.TurnState) bool { return s.Decision != nil }},
				{To: "faq", Priority: 2},
			},
			"faq": {
				{To: "finalize", Priority: 0, Condition: answered},
				{To: "inventory", Priority: 1, Condition: searchWarranted},
				{To: "reasoner", Priority: 2},
			},
			"inventory": {{To: "reasoner"}},
			"reasoner": {
				{To: "persist", Priority: 0, Condition: fallback},
				{To: "policy", Priority: 1},
			},
			"policy": {{To: "repetition"}},
			"finalize": {
				{To: "repetition", Priority: 0, Condition: answered},
				{To: "persist", Priority: 1},
			},
			"repetition": {{To: "persist"}},
			"persist":    {{To: "deliver"}},
		},
	}
}

// HandleMessage runs one turn. When the flow itself breaks, the customer
// still gets the unavailable text and the error is returned with it.
func (p *Pipeline) HandleMessage(ctx context.Context, msg pkg.InboundMessage) (*core.ProcessorOutput, error) {
	p.counters.Turns.Add(1)
	now := p.clock()
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = now
	}

	state := &core.TurnState{
		TurnID:  uuid.NewString(),
		Message: msg,
		Now:     now,
	}

	out, err := p.processor.Execute(ctx, state)
	if err == nil {
		return out, nil
	}

	log := logger.ForTurn(msg.UserID, state.TurnID)
	log.Error().Err(err).Msg("Turn failed, sending unavailable reply")

	fallback := &core.ProcessorOutput{
		TurnID:   state.TurnID,
		Response: p.cfg.Responses.Unavailable,
		Source:   core.SourceFallback,
		Intent:   state.Intent.Type,
		Errors:   append(state.Errors, err.Error()),
	}
	if sendErr := p.bus.Send(ctx, msg.UserID, fallback.Response); sendErr != nil {
		p.counters.DeliveryFailures.Add(1)
		log.Error().Err(sendErr).Msg("Failed to deliver unavailable reply")
	} else {
		fallback.Delivered = true
	}
	return fallback, err
}

// Counters exposes the counters the pipeline bumps
func (p *Pipeline) Counters() *metrics.Counters {
	return p.counters
}
