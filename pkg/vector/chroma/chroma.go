// Package chroma provides a Chroma vector database backend over its REST API.
// It targets server deployments; the default embedded backend is sqlitevec.
package chroma

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

	"github.com/contextlab/ragstore/pkg/vector"
)

const apiPrefix = "/api/v2/tenants/default_tenant/databases/default_database"

// Store implements vector.Store using Chroma's REST API. Collections are
// resolved by name and their server-side IDs cached for the lifetime of the
// store.
type Store struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	mu          sync.Mutex
	collections map[string]string // name -> server-side collection ID
}

// Config holds configuration for the Chroma store.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string
}

// NewStore creates a new Chroma-backed store.
func NewStore(c Config, logger *zap.Logger) (*Store, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("%w: chroma URL is required", vector.ErrConnection)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		baseURL: c.URL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger:      logger,
		collections: make(map[string]string),
	}, nil
}

// Collections lists the names of all collections on the server.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+apiPrefix+"/collections", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating list request: %v", vector.ErrRead, err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: listing collections: %v", vector.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: listing collections: status %d: %s", vector.ErrRead, resp.StatusCode, string(body))
	}

	var cols []chromaCollection
	if err := json.NewDecoder(resp.Body).Decode(&cols); err != nil {
		return nil, fmt.Errorf("%w: decoding collections response: %v", vector.ErrRead, err)
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names, nil
}

// resolveCollection returns the server-side ID for a collection name. When
// create is false an absent collection fails with
// vector.ErrCollectionNotFound.
func (s *Store) resolveCollection(ctx context.Context, name string, create bool) (string, error) {
	s.mu.Lock()
	if id, ok := s.collections[name]; ok {
		s.mu.Unlock()
		return id, nil
	}
	s.mu.Unlock()

	url := fmt.Sprintf("%s%s/collections/%s", s.baseURL, apiPrefix, name)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: creating get request: %v", vector.ErrRead, err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: getting collection %q: %v", vector.ErrConnection, name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var collection chromaCollection
		if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
			return "", fmt.Errorf("%w: decoding collection response: %v", vector.ErrRead, err)
		}
		s.cache(name, collection.ID)
		return collection.ID, nil
	}

	if !create {
		return "", fmt.Errorf("%w: %q", vector.ErrCollectionNotFound, name)
	}

	// Collection doesn't exist, create it with cosine distance so that
	// similarity = 1 - distance holds downstream.
	createBody := map[string]any{
		"name":     name,
		"metadata": map[string]any{"hnsw:space": "cosine"},
	}
	jsonBody, err := json.Marshal(createBody)
	if err != nil {
		return "", fmt.Errorf("%w: marshaling create request: %v", vector.ErrWrite, err)
	}

	req, err = http.NewRequestWithContext(ctx, "POST", s.baseURL+apiPrefix+"/collections", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("%w: creating create request: %v", vector.ErrWrite, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err = s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: creating collection %q: %v", vector.ErrConnection, name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: creating collection %q: status %d: %s", vector.ErrWrite, name, resp.StatusCode, string(body))
	}

	var collection chromaCollection
	if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
		return "", fmt.Errorf("%w: decoding create response: %v", vector.ErrWrite, err)
	}

	s.logger.Info("created collection",
		zap.String("collection", name),
		zap.String("collection_id", collection.ID),
	)
	s.cache(name, collection.ID)
	return collection.ID, nil
}

func (s *Store) cache(name, id string) {
	s.mu.Lock()
	s.collections[name] = id
	s.mu.Unlock()
}

// Add writes documents into the named collection, creating it if absent.
func (s *Store) Add(ctx context.Context, collection string, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	collID, err := s.resolveCollection(ctx, collection, true)
	if err != nil {
		return err
	}

	ids := make([]string, len(docs))
	embeddings := make([][]float32, len(docs))
	metadatas := make([]map[string]any, len(docs))
	documents := make([]string, len(docs))

	for i, doc := range docs {
		ids[i] = doc.ID
		embeddings[i] = doc.Embedding
		metadatas[i] = doc.Metadata
		documents[i] = doc.Content
	}

	reqBody := chromaAddRequest{
		IDs:        ids,
		Embeddings: embeddings,
		Metadatas:  metadatas,
		Documents:  documents,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("%w: marshaling add request: %v", vector.ErrWrite, err)
	}

	url := fmt.Sprintf("%s%s/collections/%s/add", s.baseURL, apiPrefix, collID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("%w: creating add request: %v", vector.ErrWrite, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: sending add request: %v", vector.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: adding documents: status %d: %s", vector.ErrWrite, resp.StatusCode, string(body))
	}

	s.logger.Debug("added passages",
		zap.String("collection", collection),
		zap.Int("count", len(docs)),
	)

	return nil
}

// Query returns the k nearest passages in the named collection under cosine
// distance, closest first. Querying an absent collection fails rather than
// creating it.
func (s *Store) Query(ctx context.Context, collection string, embedding []float32, k int) ([]vector.QueryResult, error) {
	if k <= 0 {
		k = 4
	}

	collID, err := s.resolveCollection(ctx, collection, false)
	if err != nil {
		return nil, err
	}

	reqBody := chromaQueryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        k,
		Include:         []string{"metadatas", "distances", "documents"},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling query request: %v", vector.ErrRead, err)
	}

	url := fmt.Sprintf("%s%s/collections/%s/query", s.baseURL, apiPrefix, collID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: creating query request: %v", vector.ErrRead, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending query request: %v", vector.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: querying: status %d: %s", vector.ErrRead, resp.StatusCode, string(body))
	}

	var queryResp chromaQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&queryResp); err != nil {
		return nil, fmt.Errorf("%w: decoding query response: %v", vector.ErrRead, err)
	}

	var results []vector.QueryResult

	// Process first group (we only query with one embedding)
	if len(queryResp.IDs) == 0 || len(queryResp.IDs[0]) == 0 {
		return results, nil
	}

	ids := queryResp.IDs[0]
	if len(queryResp.Distances) == 0 || len(queryResp.Distances[0]) != len(ids) {
		return nil, fmt.Errorf("%w: query response has %d ids but no matching distances", vector.ErrRead, len(ids))
	}
	distances := queryResp.Distances[0]

	var metadatas []map[string]any
	if len(queryResp.Metadatas) > 0 {
		metadatas = queryResp.Metadatas[0]
	}
	var documents []string
	if len(queryResp.Documents) > 0 {
		documents = queryResp.Documents[0]
	}

	for i, id := range ids {
		result := vector.QueryResult{
			Document: vector.Document{ID: id},
			Distance: distances[i],
		}
		if i < len(documents) {
			result.Content = documents[i]
		}
		if i < len(metadatas) {
			result.Metadata = metadatas[i]
		}
		results = append(results, result)
	}

	s.logger.Debug("queried collection",
		zap.String("collection", collection),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// Close releases resources held by the store.
func (s *Store) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

var _ vector.Store = (*Store)(nil)
