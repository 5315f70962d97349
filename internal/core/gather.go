package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"discharge-assistant/internal/metrics"
	"discharge-assistant/pkg"
)

// Retriever returns the passages most relevant to text, best first.
type Retriever interface {
	Query(ctx context.Context, text string, k int) ([]pkg.EvidenceItem, error)
}

// Gatherer fetches and trims evidence for a clinical question.
type Gatherer struct {
	Retriever Retriever
	TopK      int
	MaxChars  int
	Timeout   time.Duration
	Metrics   *metrics.TurnMetrics
	Logger    *zap.Logger
}

// NewGatherer constructs a Gatherer with TopK 3 and MaxChars 800.  Gather
// also applies those values when the fields are not positive.
func NewGatherer(r Retriever, logger *zap.Logger) *Gatherer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gatherer{Retriever: r, TopK: 3, MaxChars: 800, Logger: logger}
}

// Gather queries the retriever once.  A failed or timed-out call and an
// empty result all yield ErrInsufficientEvidence.
func (g *Gatherer) Gather(ctx context.Context, query string) ([]pkg.EvidenceItem, error) {
	if g.Retriever == nil {
		return nil, ErrInsufficientEvidence
	}
	k := g.TopK
	if k <= 0 {
		k = 3
	}
	maxChars := g.MaxChars
	if maxChars <= 0 {
		maxChars = 800
	}
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	start := time.Now()
	items, err := g.Retriever.Query(ctx, query, k)
	g.Metrics.ObserveCall("retriever", time.Since(start).Seconds(), err)
	if err != nil {
		g.logger().Warn("retriever query failed", zap.Error(err))
		return nil, fmt.Errorf("%w: retriever: %w", ErrInsufficientEvidence, err)
	}

	out := make([]pkg.EvidenceItem, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.Text) == "" {
			continue
		}
		it.Text = truncateRunes(it.Text, maxChars)
		out = append(out, it)
		if len(out) == k {
			break
		}
	}
	if len(out) == 0 {
		return nil, ErrInsufficientEvidence
	}
	return out, nil
}

func (g *Gatherer) logger() *zap.Logger {
	if g.Logger == nil {
		return zap.NewNop()
	}
	return g.Logger
}

// truncateRunes keeps at most limit characters of s.  limit <= 0 disables it.
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
