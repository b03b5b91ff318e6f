package testutils

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/contextlab/ragstore/pkg/vector"
)

// MockStore is an in-memory vector.Store using brute-force cosine distance.
// Vectors are assumed L2-normalized, so distance = 1 - dot product.
type MockStore struct {
	mu   sync.RWMutex
	data map[string][]vector.Document

	// AddErr and QueryErr, when set, are returned by the corresponding
	// operations for failure-path tests.
	AddErr   error
	QueryErr error

	// AddCalls counts Add invocations, including empty batches.
	AddCalls int

	// Closed reports whether Close has been called.
	Closed bool
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string][]vector.Document),
	}
}

func (s *MockStore) Collections(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MockStore) Add(_ context.Context, collection string, docs []vector.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AddCalls++
	if s.AddErr != nil {
		return s.AddErr
	}
	existing := s.data[collection]
	for _, doc := range docs {
		idx := slices.IndexFunc(existing, func(d vector.Document) bool { return d.ID == doc.ID })
		if idx >= 0 {
			existing[idx] = doc
		} else {
			existing = append(existing, doc)
		}
	}
	s.data[collection] = existing
	return nil
}

func (s *MockStore) Query(_ context.Context, collection string, embedding []float32, k int) ([]vector.QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	docs, ok := s.data[collection]
	if !ok {
		return nil, vector.ErrCollectionNotFound
	}
	if k <= 0 {
		k = 4
	}

	results := make([]vector.QueryResult, 0, len(docs))
	for _, doc := range docs {
		results = append(results, vector.QueryResult{
			Document: doc,
			Distance: 1 - dot(doc.Embedding, embedding),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count returns the number of documents in a collection.
func (s *MockStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[collection])
}

func (s *MockStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

var _ vector.Store = (*MockStore)(nil)
