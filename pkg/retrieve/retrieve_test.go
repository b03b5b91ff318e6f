package retrieve_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/contextlab/ragstore/pkg/ingest"
	"github.com/contextlab/ragstore/pkg/retrieve"
	testutils "github.com/contextlab/ragstore/pkg/utils/test"
	"github.com/contextlab/ragstore/pkg/vector"
)

func TestRetrieve(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Retrieve Suite")
}

var _ = Describe("Retriever", func() {
	var (
		ctx      context.Context
		embedder *testutils.MockEmbedder
		store    *testutils.MockStore
		opener   vector.StoreOpener
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder()
		store = testutils.NewMockStore()
		opener = func(string) (vector.Store, error) { return store, nil }
	})

	Describe("New", func() {
		It("fails fast when the persist directory does not exist", func() {
			_, err := retrieve.New(embedder, "/definitely/not/here", nil)
			Expect(err).To(MatchError(retrieve.ErrPersistDirNotFound))
			Expect(err.Error()).To(ContainSubstring("/definitely/not/here"))
		})

		It("fails when the persist path is a file, not a directory", func() {
			f, err := os.CreateTemp("", "retrieve-test-*")
			Expect(err).NotTo(HaveOccurred())
			f.Close()
			DeferCleanup(func() { os.Remove(f.Name()) })

			_, err = retrieve.New(embedder, f.Name(), nil)
			Expect(err).To(MatchError(retrieve.ErrPersistDirNotFound))
		})

		It("accepts an existing directory", func() {
			dir, err := os.MkdirTemp("", "retrieve-test-*")
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(func() { os.RemoveAll(dir) })

			_, err = retrieve.New(embedder, dir, nil)
			Expect(err).NotTo(HaveOccurred())
		})

		It("skips the directory check when a custom store opener is given", func() {
			_, err := retrieve.New(embedder, "/definitely/not/here", nil, retrieve.WithStoreOpener(opener))
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("RetrieveWithScores", func() {
		var retriever *retrieve.Retriever

		// Pinned embeddings give a known similarity ordering for the cats
		// query: exact match first, related passage second, unrelated last.
		seed := func() {
			embedder.Vectors = map[string][]float32{
				"cats purr when content":        {1, 0, 0, 0},
				"kittens are young cats":        {0.9, 0.1, 0, 0},
				"stock markets closed mixed":    {0, 0, 1, 0},
				"bond yields rose on inflation": {0, 0, 0.9, 0.1},
			}

			ingestor := ingest.New(embedder, nil, ingest.WithStoreOpener(opener))
			_, err := ingestor.Ingest(ctx, []string{
				"cats purr when content",
				"kittens are young cats",
				"stock markets closed mixed",
				"bond yields rose on inflation",
			}, "animals", "/tmp/db", ingest.Options{
				IDs: []string{"cat-1", "cat-2", "stock-1", "stock-2"},
			})
			Expect(err).NotTo(HaveOccurred())
		}

		BeforeEach(func() {
			seed()
			var err error
			retriever, err = retrieve.New(embedder, "/tmp/db", nil, retrieve.WithStoreOpener(opener))
			Expect(err).NotTo(HaveOccurred())
		})

		It("ranks passages by descending similarity", func() {
			results, err := retriever.RetrieveWithScores(ctx, "cats purr when content", "animals", 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(4))

			Expect(results[0].ID).To(Equal("cat-1"))
			Expect(results[1].ID).To(Equal("cat-2"))
			for i := 1; i < len(results); i++ {
				Expect(results[i].Score).To(BeNumerically("<=", results[i-1].Score))
			}
		})

		It("scores an exact directional match as 1.0", func() {
			results, err := retriever.RetrieveWithScores(ctx, "cats purr when content", "animals", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].Score).To(BeNumerically("~", 1.0, 1e-5))
		})

		It("converts distances so score equals one minus distance", func() {
			results, err := retriever.RetrieveWithScores(ctx, "cats purr when content", "animals", 4)
			Expect(err).NotTo(HaveOccurred())

			raw, err := store.Query(ctx, "animals", mustEmbedQuery(embedder, "cats purr when content"), 4)
			Expect(err).NotTo(HaveOccurred())
			for i := range raw {
				Expect(results[i].Score).To(BeNumerically("~", 1-raw[i].Distance, 1e-6))
			}
		})

		It("returns at most k results", func() {
			results, err := retriever.RetrieveWithScores(ctx, "cats purr when content", "animals", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
		})

		It("falls back to the default k for non-positive k", func() {
			results, err := retriever.RetrieveWithScores(ctx, "cats purr when content", "animals", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(4))
		})

		It("returns passage content and metadata with each result", func() {
			results, err := retriever.RetrieveWithScores(ctx, "cats purr when content", "animals", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Passage.Content).To(Equal("cats purr when content"))
		})

		It("is read-only and repeatable", func() {
			first, err := retriever.RetrieveWithScores(ctx, "cats purr when content", "animals", 4)
			Expect(err).NotTo(HaveOccurred())

			second, err := retriever.RetrieveWithScores(ctx, "cats purr when content", "animals", 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))
			Expect(store.Count("animals")).To(Equal(4))
		})

		It("fails when the collection does not exist", func() {
			_, err := retriever.RetrieveWithScores(ctx, "anything", "missing", 4)
			Expect(err).To(MatchError(vector.ErrCollectionNotFound))
			Expect(err.Error()).To(ContainSubstring("missing"))
		})

		It("propagates query failures from the store", func() {
			store.QueryErr = vector.ErrRead
			_, err := retriever.RetrieveWithScores(ctx, "anything", "animals", 4)
			Expect(err).To(MatchError(vector.ErrRead))
		})
	})

	Describe("end to end with the embedded store layout", func() {
		It("retrieves from a directory populated by ingestion", func() {
			dir, err := os.MkdirTemp("", "retrieve-e2e-*")
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(func() { os.RemoveAll(dir) })

			persistDir := filepath.Join(dir, "vector_db")
			stores := map[string]*testutils.MockStore{}
			sharedOpener := func(p string) (vector.Store, error) {
				if s, ok := stores[p]; ok {
					return s, nil
				}
				s := testutils.NewMockStore()
				stores[p] = s
				return s, nil
			}

			ingestor := ingest.New(embedder, nil, ingest.WithStoreOpener(sharedOpener))
			_, err = ingestor.Ingest(ctx, []string{"hello world"}, "greetings", persistDir, ingest.Options{})
			Expect(err).NotTo(HaveOccurred())

			retriever, err := retrieve.New(embedder, persistDir, nil, retrieve.WithStoreOpener(sharedOpener))
			Expect(err).NotTo(HaveOccurred())

			results, err := retriever.RetrieveWithScores(ctx, "hello world", "greetings", 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].Passage.Content).To(Equal("hello world"))
			Expect(results[0].Score).To(BeNumerically("~", 1.0, 1e-5))
		})
	})
})

func mustEmbedQuery(embedder *testutils.MockEmbedder, text string) []float32 {
	vec, err := embedder.EmbedQuery(context.Background(), text)
	Expect(err).NotTo(HaveOccurred())
	return vec
}
