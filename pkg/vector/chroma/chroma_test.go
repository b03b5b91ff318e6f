package chroma_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/contextlab/ragstore/pkg/logger"
	"github.com/contextlab/ragstore/pkg/vector"
	"github.com/contextlab/ragstore/pkg/vector/chroma"
)

func TestChroma(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Chroma Suite")
}

const apiPrefix = "/api/v2/tenants/default_tenant/databases/default_database"

// fakeChroma is a minimal in-memory fake of the Chroma collections API.
type fakeChroma struct {
	collections map[string]string // name -> id
	added       map[string][]addBody
	createMeta  map[string]any
	queryResp   map[string]any // overrides the default query reply when set
}

type addBody struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Metadatas  []map[string]any `json:"metadatas"`
	Documents  []string         `json:"documents"`
}

func newFakeChroma() *fakeChroma {
	return &fakeChroma{
		collections: map[string]string{},
		added:       map[string][]addBody{},
	}
}

func (f *fakeChroma) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, apiPrefix)

		switch {
		case path == "/collections" && r.Method == http.MethodGet:
			cols := make([]map[string]string, 0, len(f.collections))
			for name, id := range f.collections {
				cols = append(cols, map[string]string{"id": id, "name": name})
			}
			json.NewEncoder(w).Encode(cols)

		case path == "/collections" && r.Method == http.MethodPost:
			var body struct {
				Name     string         `json:"name"`
				Metadata map[string]any `json:"metadata"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			id := "id-" + body.Name
			f.collections[body.Name] = id
			f.createMeta = body.Metadata
			json.NewEncoder(w).Encode(map[string]string{"id": id, "name": body.Name})

		case strings.HasPrefix(path, "/collections/") && strings.HasSuffix(path, "/add"):
			id := strings.TrimSuffix(strings.TrimPrefix(path, "/collections/"), "/add")
			var body addBody
			json.NewDecoder(r.Body).Decode(&body)
			f.added[id] = append(f.added[id], body)
			w.WriteHeader(http.StatusCreated)

		case strings.HasPrefix(path, "/collections/") && strings.HasSuffix(path, "/query"):
			if f.queryResp != nil {
				json.NewEncoder(w).Encode(f.queryResp)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"ids":       [][]string{{"p1", "p2"}},
				"distances": [][]float32{{0.1, 0.4}},
				"metadatas": [][]map[string]any{{{"topic": "cats"}, {"topic": "stocks"}}},
				"documents": [][]string{{"first passage", "second passage"}},
			})

		case strings.HasPrefix(path, "/collections/") && r.Method == http.MethodGet:
			name := strings.TrimPrefix(path, "/collections/")
			id, ok := f.collections[name]
			if !ok {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"id": id, "name": name})

		default:
			http.Error(w, "unexpected request: "+r.URL.Path, http.StatusBadRequest)
		}
	})
}

var _ = Describe("Store", func() {
	var (
		ctx    context.Context
		fake   *fakeChroma
		server *httptest.Server
		store  *chroma.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		fake = newFakeChroma()
		server = httptest.NewServer(fake.handler())

		var err error
		store, err = chroma.NewStore(chroma.Config{URL: server.URL}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("NewStore", func() {
		It("requires a server URL", func() {
			_, err := chroma.NewStore(chroma.Config{}, logger.Nop())
			Expect(err).To(MatchError(vector.ErrConnection))
		})
	})

	Describe("Collections", func() {
		It("lists collection names from the server", func() {
			fake.collections["notes"] = "id-notes"

			names, err := store.Collections(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{"notes"}))
		})
	})

	Describe("Add", func() {
		It("creates an absent collection with cosine distance", func() {
			err := store.Add(ctx, "notes", []vector.Document{
				{ID: "p1", Passage: vector.Passage{Content: "hello"}, Embedding: []float32{1, 0}},
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(fake.collections).To(HaveKey("notes"))
			Expect(fake.createMeta).To(HaveKeyWithValue("hnsw:space", "cosine"))
		})

		It("sends ids, embeddings, metadata, and content", func() {
			err := store.Add(ctx, "notes", []vector.Document{
				{
					ID:        "p1",
					Passage:   vector.Passage{Content: "hello", Metadata: map[string]any{"source": "a.txt"}},
					Embedding: []float32{1, 0},
				},
			})
			Expect(err).NotTo(HaveOccurred())

			batches := fake.added["id-notes"]
			Expect(batches).To(HaveLen(1))
			Expect(batches[0].IDs).To(Equal([]string{"p1"}))
			Expect(batches[0].Documents).To(Equal([]string{"hello"}))
			Expect(batches[0].Embeddings).To(Equal([][]float32{{1, 0}}))
			Expect(batches[0].Metadatas[0]).To(HaveKeyWithValue("source", "a.txt"))
		})

		It("is a no-op for an empty batch", func() {
			Expect(store.Add(ctx, "notes", nil)).To(Succeed())
			Expect(fake.collections).To(BeEmpty())
		})
	})

	Describe("Query", func() {
		It("fails for a collection that does not exist", func() {
			_, err := store.Query(ctx, "missing", []float32{1, 0}, 4)
			Expect(err).To(MatchError(vector.ErrCollectionNotFound))
		})

		It("returns results with distances, content, and metadata", func() {
			fake.collections["notes"] = "id-notes"

			results, err := store.Query(ctx, "notes", []float32{1, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))

			Expect(results[0].ID).To(Equal("p1"))
			Expect(results[0].Distance).To(BeNumerically("~", 0.1, 1e-6))
			Expect(results[0].Passage.Content).To(Equal("first passage"))
			Expect(results[0].Passage.Metadata).To(HaveKeyWithValue("topic", "cats"))

			Expect(results[1].ID).To(Equal("p2"))
			Expect(results[1].Distance).To(BeNumerically("~", 0.4, 1e-6))
		})

		It("fails when the server returns ids without distances", func() {
			fake.collections["notes"] = "id-notes"
			fake.queryResp = map[string]any{
				"ids": [][]string{{"p1", "p2"}},
			}

			_, err := store.Query(ctx, "notes", []float32{1, 0}, 2)
			Expect(err).To(MatchError(vector.ErrRead))
		})
	})
})
