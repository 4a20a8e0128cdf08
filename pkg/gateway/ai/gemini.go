// Package ai adapts the Gemini API to the meeting engine's collaborator
// interfaces: audio transcription, query embedding, and grounded suggestion
// generation.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const (
	// DefaultModel handles both transcription and suggestion generation.
	DefaultModel = "gemini-2.5-flash"
	// DefaultEmbeddingModel produces query vectors for similarity search.
	DefaultEmbeddingModel = "gemini-embedding-001"
	// DefaultEmbeddingDims must match the dimensionality of the knowledge
	// base index.
	DefaultEmbeddingDims = 768
)

const transcribePrompt = "Transcribe this audio exactly. Return ONLY the spoken words. If silence, return empty string."

// Config selects the models a Client talks to. Zero values fall back to the
// defaults above.
type Config struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	EmbeddingDims  int32
}

// Client implements the engine's Transcriber, Embedder, and Generator
// against the Gemini API.
type Client struct {
	genai          *genai.Client
	model          string
	embeddingModel string
	embeddingDims  int32
}

// NewClient builds a Gemini-backed client. The API key is required.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ai: api key is required")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("ai: create client: %w", err)
	}
	c := &Client{
		genai:          gc,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		embeddingDims:  cfg.EmbeddingDims,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.embeddingModel == "" {
		c.embeddingModel = DefaultEmbeddingModel
	}
	if c.embeddingDims == 0 {
		c.embeddingDims = DefaultEmbeddingDims
	}
	return c, nil
}

// Transcribe converts a WAV audio window to text. Silence comes back as an
// empty string.
func (c *Client) Transcribe(ctx context.Context, wav []byte) (string, error) {
	content := genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(transcribePrompt),
		genai.NewPartFromBytes(wav, "audio/wav"),
	}, genai.RoleUser)

	resp, err := c.genai.Models.GenerateContent(ctx, c.model, []*genai.Content{content}, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		return "", fmt.Errorf("ai: transcribe: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// Embed produces the query vector for an utterance.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	resp, err := c.genai.Models.EmbedContent(ctx, c.embeddingModel, contents, &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr(c.embeddingDims),
	})
	if err != nil {
		return nil, fmt.Errorf("ai: embed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, errors.New("ai: embed: empty embedding in response")
	}
	return resp.Embeddings[0].Values, nil
}

// Generate runs a grounded completion with the given system instruction.
func (c *Client) Generate(ctx context.Context, system, user string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(user, genai.RoleUser)}
	resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.2),
		MaxOutputTokens:   1024,
	})
	if err != nil {
		return "", fmt.Errorf("ai: generate: %w", err)
	}
	out := strings.TrimSpace(resp.Text())
	if out == "" {
		return "", errors.New("ai: generate: empty completion")
	}
	return out, nil
}
