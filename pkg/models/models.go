package models

// Chunk sources.
const (
	SourceBuiltin = "builtin"
	SourceDocs    = "docs"
)

// Chunk is a titled unit of retrievable text. Its position in the chunk list
// ties it to the matching row of the vector index.
type Chunk struct {
	Text   string `json:"text"`
	Title  string `json:"title"`
	Source string `json:"source"`
}

// ChunkMeta is the per-result metadata returned by the retrieval API.
type ChunkMeta struct {
	Title  string `json:"title"`
	Source string `json:"source"`
}

// RetrievalResult is one scored match for a query. Score is the inner product
// of L2-normalized vectors, so it stays in roughly [-1, 1].
type RetrievalResult struct {
	Content  string    `json:"content"`
	Score    float32   `json:"score"`
	Metadata ChunkMeta `json:"metadata"`
}
