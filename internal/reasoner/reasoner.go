// Package reasoner is the boundary to the language model that writes the
// free-form replies.
package reasoner

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"eino_dealer_bot/internal/resilience"
	"eino_dealer_bot/pkg"
	"eino_dealer_bot/src/llm"
)

// Options override the model defaults for one call
type Options struct {
	Temperature *float32
	MaxTokens   *int
}

// Usage is the token accounting reported by the backend, when available
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is the cleaned reply of one call
type Completion struct {
	Content string
	Usage   *Usage
}

// Reasoner completes a conversation. Failures and empty replies are
// *pkg.UpstreamError.
type Reasoner interface {
	Complete(ctx context.Context, messages []*schema.Message, opts Options) (*Completion, error)
}

// ChatModelReasoner adapts an eino chat model
type ChatModelReasoner struct {
	model model.BaseChatModel
}

func NewChatModelReasoner(m model.BaseChatModel) *ChatModelReasoner {
	return &ChatModelReasoner{model: m}
}

func (r *ChatModelReasoner) Complete(ctx context.Context, messages []*schema.Message, opts Options) (*Completion, error) {
	var modelOpts []model.Option
	if opts.Temperature != nil {
		modelOpts = append(modelOpts, model.WithTemperature(*opts.Temperature))
	}
	if opts.MaxTokens != nil {
		modelOpts = append(modelOpts, model.WithMaxTokens(*opts.MaxTokens))
	}

	resp, err := r.model.Generate(ctx, messages, modelOpts...)
	if err != nil {
		// keep context errors visible to the retrier
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &pkg.UpstreamError{Dependency: resilience.DependencyLLM, Err: err}
	}
	if resp == nil {
		return nil, &pkg.UpstreamError{Dependency: resilience.DependencyLLM, Err: llm.ErrEmptyOutput}
	}

	content, err := llm.ParseResponse(resp.Content)
	if err != nil {
		return nil, &pkg.UpstreamError{Dependency: resilience.DependencyLLM, Err: err}
	}

	completion := &Completion{Content: content}
	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		u := resp.ResponseMeta.Usage
		completion.Usage = &Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	return completion, nil
}

// GuardedReasoner runs every call through the llm breaker and retrier
type GuardedReasoner struct {
	inner Reasoner
	guard *resilience.Guard
}

func NewGuardedReasoner(inner Reasoner, guard *resilience.Guard) *GuardedReasoner {
	return &GuardedReasoner{inner: inner, guard: guard}
}

// Complete returns the breaker rejection or the terminal retry error as a
// *pkg.UpstreamError so callers handle both the same way
func (g *GuardedReasoner) Complete(ctx context.Context, messages []*schema.Message, opts Options) (*Completion, error) {
	completion, err := resilience.Do(ctx, g.guard, func(ctx context.Context) (*Completion, error) {
		return g.inner.Complete(ctx, messages, opts)
	})
	if err != nil {
		var upstream *pkg.UpstreamError
		if errors.As(err, &upstream) {
			return nil, err
		}
		return nil, &pkg.UpstreamError{Dependency: g.guard.Name, Err: err}
	}
	return completion, nil
}

// Float32 returns a pointer to v, for Options
func Float32(v float32) *float32 {
	return &v
}
