// Package retriever provides document retrievers that return ranked
// passages with their provenance.
package retriever

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmbedding is returned when the query or a passage cannot be embedded.
var ErrEmbedding = errors.New("embedding failed")

// Embedder converts texts into vectors, one per input in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Passage is a chunk of a source document ready for indexing.
type Passage struct {
	ID       string
	SourceID string
	Text     string
}

// Indexer stores passages so a retriever can find them later.
type Indexer interface {
	AddPassages(ctx context.Context, passages []Passage) error
}

func embedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(vecs) == 0 {
		return nil, ErrEmbedding
	}
	return vecs[0], nil
}
