package retriever

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"discharge-assistant/pkg"
)

const (
	// DefaultCollectionName is the collection queried when none is configured.
	DefaultCollectionName = "nephrology"

	collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"
)

// ChromaConfig holds configuration for the Chroma retriever.
type ChromaConfig struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// CollectionName defaults to DefaultCollectionName if empty.
	CollectionName string
}

// Chroma queries a Chroma collection over its REST API.  The collection is
// resolved on first use, so the assistant can start before Chroma does.
type Chroma struct {
	baseURL        string
	collectionName string
	embedder       Embedder
	httpClient     *http.Client
	logger         *zap.Logger

	mu           sync.Mutex
	collectionID string
}

// NewChroma creates a Chroma retriever.
func NewChroma(c ChromaConfig, embedder Embedder, logger *zap.Logger) (*Chroma, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("chroma embedder is required")
	}
	name := c.CollectionName
	if name == "" {
		name = DefaultCollectionName
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chroma{
		baseURL:        c.URL,
		collectionName: name,
		embedder:       embedder,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
		logger:         logger,
	}, nil
}

// Query embeds text and returns the k nearest passages.  The source id is
// taken from the "source" metadata key, then "page", then the Chroma id.
func (d *Chroma) Query(ctx context.Context, text string, k int) ([]pkg.EvidenceItem, error) {
	if k <= 0 {
		k = 3
	}
	collectionID, err := d.collection(ctx)
	if err != nil {
		return nil, err
	}
	embedding, err := embedOne(ctx, d.embedder, text)
	if err != nil {
		return nil, err
	}

	var queryResp chromaQueryResponse
	err = d.post(ctx, collectionsPath+"/"+collectionID+"/query", chromaQueryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        k,
		Include:         []string{"documents", "metadatas", "distances"},
	}, &queryResp)
	if err != nil {
		return nil, fmt.Errorf("query chroma: %w", err)
	}

	// One query embedding, so only the first group is populated.
	if len(queryResp.IDs) == 0 || len(queryResp.IDs[0]) == 0 {
		return nil, nil
	}
	ids := queryResp.IDs[0]
	var docs []string
	if len(queryResp.Documents) > 0 {
		docs = queryResp.Documents[0]
	}
	var metadatas []map[string]any
	if len(queryResp.Metadatas) > 0 {
		metadatas = queryResp.Metadatas[0]
	}

	out := make([]pkg.EvidenceItem, 0, len(ids))
	for i, id := range ids {
		item := pkg.EvidenceItem{SourceID: id}
		if i < len(metadatas) && metadatas[i] != nil {
			if src, ok := metadatas[i]["source"].(string); ok && src != "" {
				item.SourceID = src
			} else if page, ok := metadatas[i]["page"]; ok && page != nil {
				item.SourceID = fmt.Sprint(page)
			}
		}
		if i < len(docs) {
			item.Text = docs[i]
		}
		out = append(out, item)
	}

	d.logger.Debug("queried chroma", zap.Int("results", len(out)))
	return out, nil
}

// AddPassages embeds and upserts passages into the collection.
func (d *Chroma) AddPassages(ctx context.Context, passages []Passage) error {
	if len(passages) == 0 {
		return nil
	}
	collectionID, err := d.collection(ctx)
	if err != nil {
		return err
	}
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	embeddings, err := d.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(embeddings) != len(passages) {
		return fmt.Errorf("%w: got %d vectors for %d passages", ErrEmbedding, len(embeddings), len(passages))
	}

	req := chromaAddRequest{
		IDs:        make([]string, len(passages)),
		Embeddings: embeddings,
		Metadatas:  make([]map[string]any, len(passages)),
		Documents:  texts,
	}
	for i, p := range passages {
		req.IDs[i] = p.ID
		req.Metadatas[i] = map[string]any{"source": p.SourceID}
	}
	if err := d.post(ctx, collectionsPath+"/"+collectionID+"/upsert", req, nil); err != nil {
		return fmt.Errorf("upsert chroma: %w", err)
	}
	d.logger.Debug("added passages to chroma", zap.Int("count", len(passages)))
	return nil
}

// collection returns the collection id, creating the collection if needed.
func (d *Chroma) collection(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.collectionID != "" {
		return d.collectionID, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+collectionsPath+"/"+d.collectionName, nil)
	if err != nil {
		return "", fmt.Errorf("creating get request: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending get request: %w", err)
	}
	defer resp.Body.Close()

	var collection chromaCollection
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
			return "", fmt.Errorf("decoding collection response: %w", err)
		}
	} else {
		// Collection doesn't exist, create it
		if err := d.post(ctx, collectionsPath, map[string]any{"name": d.collectionName, "get_or_create": true}, &collection); err != nil {
			return "", fmt.Errorf("creating collection %q: %w", d.collectionName, err)
		}
	}
	if collection.ID == "" {
		return "", fmt.Errorf("chroma returned no id for collection %q", d.collectionName)
	}
	d.collectionID = collection.ID
	d.logger.Info("connected to Chroma",
		zap.String("url", d.baseURL),
		zap.String("collection", d.collectionName),
		zap.String("collection_id", collection.ID),
	)
	return collection.ID, nil
}

func (d *Chroma) post(ctx context.Context, path string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// chromaCollection represents a Chroma collection response.
type chromaCollection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// chromaAddRequest is the request body for adding or upserting records.
type chromaAddRequest struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Metadatas  []map[string]any `json:"metadatas,omitempty"`
	Documents  []string         `json:"documents,omitempty"`
}

// chromaQueryRequest is the request body for querying.
type chromaQueryRequest struct {
	QueryEmbeddings [][]float32 `json:"query_embeddings"`
	NResults        int         `json:"n_results"`
	Include         []string    `json:"include"`
}

// chromaQueryResponse is the response from a query.
type chromaQueryResponse struct {
	IDs       [][]string         `json:"ids"`
	Documents [][]string         `json:"documents"`
	Distances [][]float32        `json:"distances"`
	Metadatas [][]map[string]any `json:"metadatas"`
}
