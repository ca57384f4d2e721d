package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minidefi/localrag/internal/docstore"
	"github.com/minidefi/localrag/internal/llm"
)

// MockClient implements the llm.Client interface for testing
type MockClient struct {
	EmbedFunc    func(ctx context.Context, texts []string) ([][]float32, error)
	GenerateFunc func(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error)
	EmbedCalls   int
}

func (m *MockClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.EmbedCalls++
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, texts)
	}
	return llm.NewStubClient(0).Embed(ctx, texts)
}

func (m *MockClient) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, opts)
	}
	return "", nil
}

func (m *MockClient) Load(ctx context.Context, threads int) error { return nil }
func (m *MockClient) Unload(ctx context.Context) error            { return nil }

func TestBuildIsIdempotent(t *testing.T) {
	client := &MockClient{}
	svc := NewService(client, "")

	require.NoError(t, svc.Build(context.Background()))
	size := svc.Size()
	assert.Equal(t, len(docstore.KnowledgeBase), size)
	callsAfterFirst := client.EmbedCalls

	require.NoError(t, svc.Build(context.Background()))
	assert.Equal(t, size, svc.Size(), "second build must not grow the index")
	assert.Equal(t, callsAfterFirst, client.EmbedCalls, "second build must not re-embed")
}

func TestBuildFailureLeavesNoIndexAndRetries(t *testing.T) {
	fail := true
	client := &MockClient{
		EmbedFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			if fail {
				return nil, errors.New("runtime unavailable")
			}
			return llm.NewStubClient(0).Embed(ctx, texts)
		},
	}
	svc := NewService(client, "")

	err := svc.Build(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, svc.Size())

	fail = false
	require.NoError(t, svc.Build(context.Background()))
	assert.Equal(t, len(docstore.KnowledgeBase), svc.Size())
}

func TestRetrieveTopK(t *testing.T) {
	svc := NewService(&MockClient{}, "")

	results, err := svc.Retrieve(context.Background(), "how do I borrow assets", 3)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 3)
	assert.NotEmpty(t, results)

	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Score, results[i-1].Score, "results must be in descending score order")
	}
	for _, r := range results {
		assert.NotEmpty(t, r.Content)
		assert.NotEmpty(t, r.Metadata.Title)
		assert.LessOrEqual(t, float64(r.Score), 1.0+1e-5)
		assert.GreaterOrEqual(t, float64(r.Score), -1.0-1e-5)
	}
}

func TestRetrieveBuildsLazily(t *testing.T) {
	client := &MockClient{}
	svc := NewService(client, "")
	assert.Equal(t, 0, svc.Size())

	_, err := svc.Retrieve(context.Background(), "health factor", 2)
	require.NoError(t, err)
	assert.Equal(t, len(docstore.KnowledgeBase), svc.Size())
}

func TestRetrieveKLargerThanChunkCount(t *testing.T) {
	svc := NewService(&MockClient{}, "")

	results, err := svc.Retrieve(context.Background(), "liquidation", len(docstore.KnowledgeBase)+50)
	require.NoError(t, err)
	assert.Len(t, results, len(docstore.KnowledgeBase))
}

func TestRetrieveEmbedError(t *testing.T) {
	built := false
	client := &MockClient{
		EmbedFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			if !built {
				built = true
				return llm.NewStubClient(0).Embed(ctx, texts)
			}
			return nil, errors.New("embed failed")
		},
	}
	svc := NewService(client, "")
	require.NoError(t, svc.Build(context.Background()))

	_, err := svc.Retrieve(context.Background(), "anything", 3)
	assert.ErrorContains(t, err, "embed failed")
}

func TestRetrieveFindsRelevantChunk(t *testing.T) {
	svc := NewService(&MockClient{}, "")

	results, err := svc.Retrieve(context.Background(), "health factor liquidation collateral", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	// Token-overlap embeddings must surface one of the health/liquidation docs.
	assert.Contains(t, []string{"Health Factor Explained", "Liquidation", "How to Borrow", "Collateral Factor"}, results[0].Metadata.Title)
}
