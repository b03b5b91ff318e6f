// Package ollama implements a low-level client for Ollama-compatible
// embedding APIs. The bge and hf embedders wrap it with their model defaults
// and query handling.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/contextlab/ragstore/pkg/embeddings"
)

const (
	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"
)

// Client talks to an Ollama-compatible embedding endpoint.
type Client struct {
	baseURL    string
	model      string
	device     string
	httpClient *http.Client
}

// Config holds configuration for the embedding client.
type Config struct {
	// BaseURL is the inference server URL (e.g. "http://localhost:11434").
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Model is the embedding model to load. Required.
	Model string

	// Device selects the compute device. Empty lets the server pick
	// (GPU-class accelerator when present, CPU otherwise); "cpu" forces
	// CPU-only execution; "cuda" is accepted and passed through.
	Device string
}

// embedRequest is the request body for the /api/embed endpoint. Input may be
// a single string or an array of strings.
type embedRequest struct {
	Model   string         `json:"model"`
	Input   any            `json:"input"`
	Options map[string]any `json:"options,omitempty"`
}

// embedResponse is the response from the /api/embed endpoint.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewClient creates a client for an Ollama-compatible embedding API.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model name is required", embeddings.ErrModelLoad)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL: baseURL,
		model:   cfg.Model,
		device:  cfg.Device,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Warmup forces the server to resolve and load the model by embedding a
// single short input, and returns the model's vector dimensionality. Any
// failure here means the model cannot be loaded.
func (c *Client) Warmup(ctx context.Context) (int, error) {
	vecs, err := c.EmbedBatch(ctx, []string{"warmup"})
	if err != nil {
		return 0, fmt.Errorf("%w: model %q: %v", embeddings.ErrModelLoad, c.model, err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return 0, fmt.Errorf("%w: model %q returned no embedding", embeddings.ErrModelLoad, c.model)
	}
	return len(vecs[0]), nil
}

// Embed converts a single text into a vector embedding.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch converts a batch of texts into vector embeddings, aligned
// positionally with the input. An empty batch returns an empty slice without
// contacting the server.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	reqBody := embedRequest{
		Model: c.model,
		Input: texts,
	}
	if c.device == "cpu" {
		reqBody.Options = map[string]any{"num_gpu": 0}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", embeddings.ErrEmbedding, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/embed", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", embeddings.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", embeddings.ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: server returned status %d: %s", embeddings.ErrEmbedding, resp.StatusCode, string(body))
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", embeddings.ErrEmbedding, err)
	}

	if len(embedResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", embeddings.ErrEmbedding, len(embedResp.Embeddings), len(texts))
	}

	return embedResp.Embeddings, nil
}

// Close releases resources held by the client.
func (c *Client) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}
