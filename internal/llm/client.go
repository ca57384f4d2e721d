package llm

import (
	"context"
	"errors"
)

// Client is a local model runtime: it embeds text and generates completions.
// Load and Unload exist for runtimes that manage model residency per
// configuration (the benchmark swaps thread counts between loads); providers
// without that notion implement them as no-ops.
type Client interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	Load(ctx context.Context, threads int) error
	Unload(ctx context.Context) error
}

// GenerateOptions are the sampling parameters for one completion.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float32
	TopP        float32
	Stop        []string
	Threads     int
}

// Provider is enumeration of supported runtime providers
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
	ProviderStub   Provider = "stub"
)

// ClientConfig holds configuration for runtime clients
type ClientConfig struct {
	Provider   Provider
	BaseURL    string
	APIKey     string
	EmbedModel string
	GenModel   string
	Threads    int
	Dim        int // stub only
}

// NewClient creates a new runtime client based on configuration
func NewClient(config *ClientConfig) (Client, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	switch config.Provider {
	case ProviderOllama:
		return NewOllamaClient(config), nil
	case ProviderOpenAI:
		return NewOpenAIClient(config), nil
	case ProviderStub:
		return NewStubClient(config.Dim), nil
	default:
		return nil, errors.New("unsupported provider: " + string(config.Provider))
	}
}
