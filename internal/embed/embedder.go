// Package embed converts text to dense and sparse vectors for the
// hybrid index. The dense side is delegated to an external embedding
// provider; the sparse side is computed locally so the provider
// contract stays a pure batch embed call.
package embed

import "context"

// Embedder is the embedding provider boundary: order-preserving, one
// vector per input string, deterministic for identical input.
type Embedder interface {
	// EmbedBatch returns one Dims()-sized vector per input text, in
	// input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dims returns the fixed vector dimension.
	Dims() int
}

// SparseVector is a keyword-weight vector in index/value form, as
// consumed by the store's sparse side.
type SparseVector struct {
	Indices []uint32
	Values  []float32
}
