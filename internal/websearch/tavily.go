// Package websearch provides the web search fallback provider.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"discharge-assistant/pkg"
)

// ErrNotConfigured is returned when no API key is present.
var ErrNotConfigured = errors.New("web search is not configured")

// DefaultBaseURL is Tavily's public API.
const DefaultBaseURL = "https://api.tavily.com"

// Provider searches the web.
type Provider interface {
	Search(ctx context.Context, query string, maxResults int) ([]pkg.SearchResult, error)
}

// Tavily calls the Tavily search API.
type Tavily struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewTavily constructs a Tavily client.  An empty apiKey yields a client
// whose every search returns ErrNotConfigured.
func NewTavily(apiKey, baseURL string) *Tavily {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Tavily{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type tavilyRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search returns up to maxResults hits in the provider's rank order.
func (t *Tavily) Search(ctx context.Context, query string, maxResults int) ([]pkg.SearchResult, error) {
	if t.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if maxResults <= 0 {
		maxResults = 3
	}
	body, err := json.Marshal(tavilyRequest{Query: query, MaxResults: maxResults, SearchDepth: "basic"})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling tavily: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("tavily returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding tavily response: %w", err)
	}
	out := make([]pkg.SearchResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		out = append(out, pkg.SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Content})
		if len(out) == maxResults {
			break
		}
	}
	return out, nil
}
