package llm

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

const stubDim = 384

// StubClient is a deterministic offline implementation of the Client
// interface, used in tests and when no runtime is available. Embeddings are
// derived from token hashes so that identical texts map to identical vectors.
type StubClient struct {
	dim int
}

// NewStubClient creates a new StubClient
func NewStubClient(dim int) *StubClient {
	if dim <= 0 {
		dim = stubDim
	}
	return &StubClient{dim: dim}
}

// Embed implements the embedding functionality
func (s *StubClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, s.dim)
		for _, tok := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			h.Write([]byte(tok))
			vec[int(h.Sum32())%s.dim] += 1
		}
		normalize(vec)
		out[i] = vec
	}
	return out, nil
}

// Generate echoes a short canned answer derived from the prompt.
func (s *StubClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	words := strings.Fields(prompt)
	n := opts.MaxTokens
	if n <= 0 || n > len(words) {
		n = len(words)
	}
	return "stub completion: " + strings.Join(words[len(words)-n:], " "), nil
}

// Load implements the Client interface
func (s *StubClient) Load(ctx context.Context, threads int) error { return nil }

// Unload implements the Client interface
func (s *StubClient) Unload(ctx context.Context) error { return nil }

func normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}
