// Package llm generates answers from rendered prompts. The only production
// backend speaks the OpenAI-compatible chat completions protocol, which also
// covers local servers such as Ollama and llama.cpp.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Supported provider names.
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// Client generates a completion for a prompt. Generate blocks until the
// backend responds or ctx is done.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Config selects and parameterizes the generation backend.
type Config struct {
	Provider    string        `yaml:"provider" default:"openai" validate:"oneof=openai mock"`
	BaseURL     string        `yaml:"base_url" default:"https://api.openai.com/v1"`
	Model       string        `yaml:"model" default:"gpt-4o-mini"`
	APIKey      string        `yaml:"api_key"`
	MaxTokens   int           `yaml:"max_tokens" default:"1024" validate:"gt=0"`
	Temperature float64       `yaml:"temperature" default:"0.1" validate:"gte=0,lte=2"`
	Timeout     time.Duration `yaml:"timeout" default:"60s"`
}

// New constructs the client named by cfg.Provider.
func New(cfg Config) (Client, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(cfg), nil
	case ProviderMock:
		return NewMockClient(cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}
