// Package kb queries the partitioned knowledge base behind suggestion
// retrieval. Each partition is a Pinecone namespace holding one corpus
// (state regulations, CMS guidance, carrier policies, and so on).
package kb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/covercall/covercall/pkg/gateway/meeting/engine"
)

// Option configures a Pinecone client.
type Option func(*options)

type options struct {
	httpClient *http.Client
}

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// Pinecone implements the engine's Searcher against a Pinecone serverless
// index. The host is the index-specific endpoint from the Pinecone console,
// e.g. https://covercall-abc123.svc.us-east-1.pinecone.io.
type Pinecone struct {
	apiKey string
	host   string
	client *http.Client
}

// New creates a Pinecone similarity-search client.
func New(apiKey, host string, opts ...Option) (*Pinecone, error) {
	if apiKey == "" {
		return nil, errors.New("kb: api key is required")
	}
	if host == "" {
		return nil, errors.New("kb: index host is required")
	}
	o := &options{httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(o)
	}
	return &Pinecone{apiKey: apiKey, host: host, client: o.httpClient}, nil
}

// pineconeQueryRequest is the /query request body.
type pineconeQueryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	Namespace       string    `json:"namespace"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

// pineconeQueryResponse is the /query response body.
type pineconeQueryResponse struct {
	Matches []pineconeMatch `json:"matches"`
}

type pineconeMatch struct {
	ID       string           `json:"id"`
	Score    float64          `json:"score"`
	Metadata pineconeMetadata `json:"metadata"`
}

type pineconeMetadata struct {
	Text     string `json:"text"`
	Citation string `json:"citation"`
	Filename string `json:"filename"`
}

// Query runs a similarity search in one namespace.
func (p *Pinecone) Query(ctx context.Context, vector []float32, partition string, topK int) ([]engine.Match, error) {
	body, err := json.Marshal(pineconeQueryRequest{
		Vector:          vector,
		TopK:            topK,
		Namespace:       partition,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("kb: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.host+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("kb: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kb: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("kb: API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var qr pineconeQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return nil, fmt.Errorf("kb: decode response: %w", err)
	}

	matches := make([]engine.Match, 0, len(qr.Matches))
	for _, m := range qr.Matches {
		matches = append(matches, engine.Match{
			Score:    m.Score,
			Citation: m.Metadata.Citation,
			Filename: m.Metadata.Filename,
			Text:     m.Metadata.Text,
		})
	}
	return matches, nil
}
