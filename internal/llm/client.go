// Package llm provides the reasoning backends that decision providers and chat
// consult. It supports OpenAI (and OpenAI-compatible endpoints such as ollama),
// Anthropic, and Gemini, plus a mock for tests.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Prompt is a single system+user exchange sent to a backend.
type Prompt struct {
	// System sets the persona and strategy.
	System string

	// User carries the round context and the task.
	User string

	// Temperature is passed through when non-zero.
	Temperature float64

	// MaxTokens caps the reply length when non-zero.
	MaxTokens int
}

// ClientConfig configures a reasoning backend.
type ClientConfig struct {
	// Provider identifies the backend: "openai", "ollama", "anthropic", "gemini", or "" for none.
	Provider string `json:"provider" yaml:"provider"`

	// APIKey is the API key for the provider (not used for ollama).
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the API endpoint. Used for ollama or custom OpenAI-compatible endpoints.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Model is the model identifier to use for requests.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// Timeout is the maximum duration to wait for a response.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultConfig returns a ClientConfig with sensible defaults.
func DefaultConfig() ClientConfig {
	return ClientConfig{
		Provider: "",
		Timeout:  60 * time.Second,
	}
}

// Reasoner turns a prompt into free text.
type Reasoner interface {
	// Complete sends the prompt and returns the reply text.
	Complete(ctx context.Context, p Prompt) (string, error)

	// Available returns true if the backend is configured and ready to handle requests.
	Available() bool

	// Name identifies the backend in logs and exports.
	Name() string
}

// Closer is an optional interface for reasoners that hold resources requiring cleanup.
// Consumers should type-assert and call Close when done: if c, ok := r.(Closer); ok { c.Close() }
type Closer interface {
	Close() error
}

// NewReasoner builds the backend named by cfg.Provider. An empty provider returns
// (nil, nil): callers fall back to scripted decisions.
func NewReasoner(ctx context.Context, cfg ClientConfig) (Reasoner, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "openai":
		return NewOpenAIClient(cfg), nil
	case "ollama":
		if cfg.BaseURL == "" {
			cfg.BaseURL = "http://localhost:11434/v1"
		}
		if cfg.Model == "" {
			cfg.Model = "llama3.1"
		}
		return NewOpenAIClient(cfg), nil
	case "anthropic":
		return NewAnthropicClient(cfg), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
}
