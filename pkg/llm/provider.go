package llm

import (
	"context"
)

// Message is one turn in a conversation, provider-agnostic.
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Option carries optional generation parameters.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // override the provider default
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// LLMProvider is the stateless chat-completion contract. The thread manager
// uses it as the fallback path when the stateful thread service is down.
type LLMProvider interface {
	// Chat sends a message history to the model and returns the reply.
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt (convenience wrapper over Chat).
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}
