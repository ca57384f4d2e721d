package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// OllamaClient talks to a local Ollama-compatible runtime. Generation uses raw
// mode: prompts already carry the instruct-format markers, so the runtime must
// not apply its own chat template.
type OllamaClient struct {
	baseURL    string
	embedModel string
	genModel   string
	threads    int
	http       *http.Client
}

// NewOllamaClient creates a runtime client for a local Ollama server.
func NewOllamaClient(config *ClientConfig) *OllamaClient {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	// No overall timeout: a CPU-bound generation legitimately takes minutes.
	return &OllamaClient{
		baseURL:    baseURL,
		embedModel: config.EmbedModel,
		genModel:   config.GenModel,
		threads:    config.Threads,
		http:       &http.Client{},
	}
}

type ollamaGenerateRequest struct {
	Model     string         `json:"model"`
	Prompt    string         `json:"prompt"`
	Raw       bool           `json:"raw"`
	Stream    bool           `json:"stream"`
	KeepAlive *int           `json:"keep_alive,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

type ollamaEmbeddingsRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingsResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed generates one vector per input text, in input order. The embeddings
// endpoint takes a single prompt, so batches are sent sequentially.
func (c *OllamaClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i, text := range texts {
		var resp ollamaEmbeddingsResponse
		err := c.post(ctx, "/api/embeddings", ollamaEmbeddingsRequest{
			Model:  c.embedModel,
			Prompt: text,
		}, &resp)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		if len(resp.Embedding) == 0 {
			return nil, fmt.Errorf("embed text %d: empty embedding", i)
		}
		out = append(out, resp.Embedding)
	}
	return out, nil
}

// Generate produces a completion for the prompt under the given sampling
// parameters.
func (c *OllamaClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	options := map[string]any{}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	options["temperature"] = opts.Temperature
	options["top_p"] = opts.TopP
	if len(opts.Stop) > 0 {
		options["stop"] = opts.Stop
	}
	threads := opts.Threads
	if threads == 0 {
		threads = c.threads
	}
	if threads > 0 {
		options["num_thread"] = threads
	}

	var resp ollamaGenerateResponse
	err := c.post(ctx, "/api/generate", ollamaGenerateRequest{
		Model:   c.genModel,
		Prompt:  prompt,
		Raw:     true,
		Stream:  false,
		Options: options,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Response, nil
}

// Load forces the runtime to load the generation model with the given thread
// count resident. An empty prompt triggers a load without generating.
func (c *OllamaClient) Load(ctx context.Context, threads int) error {
	keep := -1
	var resp ollamaGenerateResponse
	return c.post(ctx, "/api/generate", ollamaGenerateRequest{
		Model:     c.genModel,
		Stream:    false,
		KeepAlive: &keep,
		Options:   map[string]any{"num_thread": threads},
	}, &resp)
}

// Unload releases the generation model from runtime memory.
func (c *OllamaClient) Unload(ctx context.Context) error {
	keep := 0
	var resp ollamaGenerateResponse
	return c.post(ctx, "/api/generate", ollamaGenerateRequest{
		Model:     c.genModel,
		Stream:    false,
		KeepAlive: &keep,
	}, &resp)
}

func (c *OllamaClient) post(ctx context.Context, path string, payload, into any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("runtime request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("runtime error %d: %s", resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(into)
}
