// Package retrieval embeds queries and answers top-k similarity searches over
// the document store.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/minidefi/localrag/internal/docstore"
	"github.com/minidefi/localrag/internal/index"
	"github.com/minidefi/localrag/internal/llm"
	"github.com/minidefi/localrag/pkg/models"
)

// Service owns the chunk list and vector index for the process lifetime.
// Build runs at most once; until it succeeds the next Retrieve re-attempts
// the full build from scratch.
type Service struct {
	client  llm.Client
	docsDir string

	mu     sync.Mutex
	idx    *index.Flat
	chunks []models.Chunk
}

// NewService creates a retrieval service backed by the given runtime client.
func NewService(client llm.Client, docsDir string) *Service {
	return &Service{client: client, docsDir: docsDir}
}

// Build constructs the document store and vector index. It is idempotent: a
// second call while already built is a no-op.
func (s *Service) Build(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildLocked(ctx)
}

func (s *Service) buildLocked(ctx context.Context) error {
	if s.idx != nil {
		return nil
	}

	chunks := docstore.Load(s.docsDir)
	if len(chunks) == 0 {
		return errors.New("document store is empty")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	embeddings, err := s.client.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return errors.New("embedding count does not match chunk count")
	}

	idx, err := index.NewFlat(len(embeddings[0]))
	if err != nil {
		return err
	}
	if err := idx.Add(embeddings); err != nil {
		return err
	}

	s.chunks = chunks
	s.idx = idx
	log.Info().Int("chunks", len(chunks)).Int("dim", idx.Dim()).Msg("vector store built")
	return nil
}

// Retrieve returns up to topK chunks for the query, best match first,
// building the index on first use.
func (s *Service) Retrieve(ctx context.Context, query string, topK int) ([]models.RetrievalResult, error) {
	if topK < 1 {
		topK = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.buildLocked(ctx); err != nil {
		return nil, err
	}

	embeddings, err := s.client.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	q := embeddings[0]
	index.Normalize(q)

	scores, ids := s.idx.Search(q, topK)

	results := make([]models.RetrievalResult, 0, len(ids))
	for i, id := range ids {
		if id < 0 || id >= len(s.chunks) {
			continue
		}
		chunk := s.chunks[id]
		results = append(results, models.RetrievalResult{
			Content: chunk.Text,
			Score:   scores[i],
			Metadata: models.ChunkMeta{
				Title:  chunk.Title,
				Source: chunk.Source,
			},
		})
	}
	return results, nil
}

// Size reports the number of indexed chunks, or zero before the first build.
func (s *Service) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx == nil {
		return 0
	}
	return s.idx.Size()
}
