package domain

import "time"

// Chunk is a bounded slice of a document's text together with its embedding
// vector. ChunkIndex preserves the original position within the document so
// context order can be reconstructed. An embedding, once written, is never
// mutated; chunks only go away when their document is deleted.
type Chunk struct {
	ID         string
	DocumentID string
	Content    string
	Embedding  []float32
	ChunkIndex int
	CreatedAt  time.Time
}

// ScoredChunk is a retrieval hit: chunk content plus its cosine similarity to
// the query embedding, expressed as 1 - cosine_distance.
type ScoredChunk struct {
	ChunkIndex int
	Content    string
	Similarity float64
}
