package retriever

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"discharge-assistant/pkg"
)

// MemoryStore keeps passage embeddings in memory and ranks them by cosine
// similarity.  It suits local development and tests.
type MemoryStore struct {
	embedder Embedder

	mu       sync.RWMutex
	passages []storedPassage
}

type storedPassage struct {
	Passage
	embedding []float32
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(embedder Embedder) *MemoryStore {
	return &MemoryStore{embedder: embedder}
}

// AddPassages embeds and stores the passages.  A passage whose ID is
// already stored replaces the old entry.
func (s *MemoryStore) AddPassages(ctx context.Context, passages []Passage) error {
	if len(passages) == 0 {
		return nil
	}
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(vecs) != len(passages) {
		return fmt.Errorf("%w: got %d vectors for %d passages", ErrEmbedding, len(vecs), len(passages))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	index := make(map[string]int, len(s.passages))
	for i, p := range s.passages {
		index[p.ID] = i
	}
	for i, p := range passages {
		sp := storedPassage{Passage: p, embedding: vecs[i]}
		if j, ok := index[p.ID]; ok && p.ID != "" {
			s.passages[j] = sp
			continue
		}
		index[p.ID] = len(s.passages)
		s.passages = append(s.passages, sp)
	}
	return nil
}

// Len reports how many passages are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.passages)
}

// Query returns up to k passages most similar to text, best first.
func (s *MemoryStore) Query(ctx context.Context, text string, k int) ([]pkg.EvidenceItem, error) {
	if k <= 0 {
		k = 3
	}
	s.mu.RLock()
	empty := len(s.passages) == 0
	s.mu.RUnlock()
	if empty {
		return nil, nil
	}

	queryVec, err := embedOne(ctx, s.embedder, text)
	if err != nil {
		return nil, err
	}

	type scored struct {
		score float64
		p     Passage
	}
	s.mu.RLock()
	results := make([]scored, 0, len(s.passages))
	for _, sp := range s.passages {
		results = append(results, scored{score: cosineSimilarity(queryVec, sp.embedding), p: sp.Passage})
	}
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})
	if len(results) > k {
		results = results[:k]
	}

	out := make([]pkg.EvidenceItem, len(results))
	for i, r := range results {
		out[i] = pkg.EvidenceItem{SourceID: r.p.SourceID, Text: r.p.Text}
	}
	return out, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
