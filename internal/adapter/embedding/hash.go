package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"rfprag/internal/adapter/analyzer"
	"rfprag/internal/port"
)

// HashEmbedder is an offline embedder: it hashes each normalised term into
// one of dimension buckets and L2-normalises the counts. Texts sharing
// vocabulary land close together, which is enough for local runs and tests.
type HashEmbedder struct {
	dimension int
	tokenizer *analyzer.Tokenizer
}

var _ port.EmbeddingService = (*HashEmbedder)(nil)

func NewHashEmbedder(dimension int, tokenizer *analyzer.Tokenizer) *HashEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &HashEmbedder{dimension: dimension, tokenizer: tokenizer}
}

func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = e.embed(text)
	}
	return embeddings, nil
}

func (e *HashEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.dimension)
	for _, term := range e.tokenizer.Terms(text) {
		h := fnv.New32a()
		h.Write([]byte(term))
		vec[h.Sum32()%uint32(e.dimension)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashEmbedder) ModelName() string {
	return "hash"
}
