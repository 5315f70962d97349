package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"discharge-assistant/internal/audit"
	"discharge-assistant/internal/metrics"
	"discharge-assistant/internal/websearch"
	"discharge-assistant/pkg"
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Composer turns a question and its evidence into a reply.  With evidence it
// asks the generator for a grounded answer; without it the composer reports
// what the web search fallback found and never calls the generator.
type Composer struct {
	Generator     Generator
	Web           websearch.Provider
	Audit         audit.Recorder
	MaxWebResults int
	SnippetChars  int
	Timeout       time.Duration
	Metrics       *metrics.TurnMetrics
	Logger        *zap.Logger
}

// NewComposer constructs a Composer with 3 web results of 400 characters.
// web may be nil, which behaves like an unconfigured provider.
func NewComposer(gen Generator, web websearch.Provider, recorder audit.Recorder, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{
		Generator:     gen,
		Web:           web,
		Audit:         recorder,
		MaxWebResults: 3,
		SnippetChars:  400,
		Logger:        logger,
	}
}

// Compose answers query.  The only error it returns is a *GenerationError.
func (c *Composer) Compose(ctx context.Context, query string, evidence []pkg.EvidenceItem) (pkg.ComposedReply, error) {
	if len(evidence) == 0 {
		return c.webFallback(ctx, query), nil
	}
	if c.Generator == nil {
		return pkg.ComposedReply{}, &GenerationError{Err: errors.New("no generator configured")}
	}

	prompt := BuildGroundedPrompt(query, evidence)
	callCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	text, err := c.Generator.Generate(callCtx, prompt)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty completion")
	}
	c.Metrics.ObserveCall("generation", time.Since(start).Seconds(), err)
	if err != nil {
		return pkg.ComposedReply{}, &GenerationError{Err: err}
	}
	return pkg.ComposedReply{Text: text, Citations: citations(evidence)}, nil
}

// BuildGroundedPrompt renders the instruction, one [SOURCE: id] block per
// evidence item and the question.
func BuildGroundedPrompt(query string, evidence []pkg.EvidenceItem) string {
	blocks := make([]string, 0, len(evidence))
	for _, e := range evidence {
		blocks = append(blocks, fmt.Sprintf("[SOURCE: %s] %s", e.SourceID, e.Text))
	}
	var b strings.Builder
	b.WriteString(GroundedInstruction)
	b.WriteString("\n\nReferences:\n")
	b.WriteString(strings.Join(blocks, "\n\n"))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(query)
	b.WriteString("\n\n")
	b.WriteString(GroundedClosing)
	return b.String()
}

func citations(evidence []pkg.EvidenceItem) []string {
	seen := make(map[string]struct{}, len(evidence))
	out := make([]string, 0, len(evidence))
	for _, e := range evidence {
		if _, ok := seen[e.SourceID]; ok {
			continue
		}
		seen[e.SourceID] = struct{}{}
		out = append(out, e.SourceID)
	}
	return out
}

func (c *Composer) webFallback(ctx context.Context, query string) pkg.ComposedReply {
	if c.Web == nil {
		c.recordFallback(ctx, query, "not_configured")
		return pkg.ComposedReply{Text: fmt.Sprintf(webNotConfigured, query), Citations: []string{}, Fallback: true}
	}

	limit := c.MaxWebResults
	if limit <= 0 {
		limit = 3
	}
	callCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	results, err := c.Web.Search(callCtx, query, limit)
	c.Metrics.ObserveCall("websearch", time.Since(start).Seconds(), err)

	switch {
	case errors.Is(err, websearch.ErrNotConfigured):
		c.recordFallback(ctx, query, "not_configured")
		return pkg.ComposedReply{Text: fmt.Sprintf(webNotConfigured, query), Citations: []string{}, Fallback: true}
	case err != nil:
		c.logger().Warn("web search failed", zap.String("query", query), zap.Error(err))
		c.recordFallback(ctx, query, "error")
		return pkg.ComposedReply{Text: fmt.Sprintf(webFailed, err, query), Citations: []string{}, Fallback: true}
	case len(results) == 0:
		c.recordFallback(ctx, query, "no_results")
		return pkg.ComposedReply{Text: fmt.Sprintf(webNoResults, query), Citations: []string{}, Fallback: true}
	}

	if len(results) > limit {
		results = results[:limit]
	}
	var b strings.Builder
	b.WriteString(webResultsHeader)
	urls := make([]string, 0, len(results))
	for i, r := range results {
		fmt.Fprintf(&b, "\n\n[%d] %s\nURL: %s\n%s", i+1, r.Title, r.URL, truncateRunes(r.Snippet, c.SnippetChars))
		urls = append(urls, r.URL)
	}
	c.recordFallback(ctx, query, "results")
	return pkg.ComposedReply{Text: b.String(), Citations: urls, Fallback: true}
}

func (c *Composer) recordFallback(ctx context.Context, query, outcome string) {
	c.Metrics.ObserveFallback(outcome)
	if c.Audit != nil {
		c.Audit.Record(ctx, audit.Stamp(audit.Event{Kind: audit.WebFallback, Subject: query, Detail: outcome}))
	}
}

func (c *Composer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return ctx, func() {}
}

func (c *Composer) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
