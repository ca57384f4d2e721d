package llm

import (
	"context"
	"errors"
	"sort"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient drives any OpenAI-compatible completion API. Pointing BaseURL
// at a llama-server --api endpoint keeps everything local; left empty it
// talks to the hosted API.
type OpenAIClient struct {
	api        *openai.Client
	embedModel string
	genModel   string
}

// NewOpenAIClient creates a client for an OpenAI-compatible runtime.
func NewOpenAIClient(config *ClientConfig) *OpenAIClient {
	embedModel := config.EmbedModel
	if embedModel == "" {
		embedModel = string(openai.SmallEmbedding3)
	}

	cfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}

	return &OpenAIClient{
		api:        openai.NewClientWithConfig(cfg),
		embedModel: embedModel,
		genModel:   config.GenModel,
	}
}

// Embed generates one vector per input text, in input order.
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts to embed")
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.embedModel),
		Input: texts,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, errors.New("embedding count does not match input count")
	}

	// The API may return items out of order; Index restores input order.
	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// Generate produces a completion for the prompt under the given sampling
// parameters.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	resp, err := c.api.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       c.genModel,
		Prompt:      prompt,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		Stop:        opts.Stop,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned")
	}
	return resp.Choices[0].Text, nil
}

// Load is a no-op: the server side owns model residency.
func (c *OpenAIClient) Load(ctx context.Context, threads int) error { return nil }

// Unload is a no-op: the server side owns model residency.
func (c *OpenAIClient) Unload(ctx context.Context) error { return nil }
