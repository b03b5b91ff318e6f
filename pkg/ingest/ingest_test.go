package ingest_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/google/uuid"

	"github.com/contextlab/ragstore/pkg/ingest"
	testutils "github.com/contextlab/ragstore/pkg/utils/test"
	"github.com/contextlab/ragstore/pkg/vector"
)

func TestIngest(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Ingest Suite")
}

var _ = Describe("Ingestor", func() {
	var (
		ctx      context.Context
		embedder *testutils.MockEmbedder
		store    *testutils.MockStore
		ingestor *ingest.Ingestor
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder()
		store = testutils.NewMockStore()
		ingestor = ingest.New(embedder, nil, ingest.WithStoreOpener(func(string) (vector.Store, error) {
			return store, nil
		}))
	})

	Describe("Ingest", func() {
		It("writes one document per text into the collection", func() {
			ids, err := ingestor.Ingest(ctx, []string{"alpha", "beta", "gamma"}, "notes", "/tmp/db", ingest.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(HaveLen(3))
			Expect(store.Count("notes")).To(Equal(3))
		})

		It("generates a distinct valid UUID per passage when no ids are given", func() {
			ids, err := ingestor.Ingest(ctx, []string{"a", "b"}, "notes", "/tmp/db", ingest.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids[0]).NotTo(Equal(ids[1]))
			for _, id := range ids {
				_, err := uuid.Parse(id)
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("uses caller-supplied ids in input order", func() {
			ids, err := ingestor.Ingest(ctx, []string{"a", "b"}, "notes", "/tmp/db", ingest.Options{
				IDs: []string{"first", "second"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal([]string{"first", "second"}))
		})

		It("rejects an id count mismatch before touching the store", func() {
			_, err := ingestor.Ingest(ctx, []string{"a", "b", "c"}, "notes", "/tmp/db", ingest.Options{
				IDs: []string{"only-one"},
			})
			Expect(err).To(MatchError(ingest.ErrIDCountMismatch))
			Expect(store.AddCalls).To(BeZero())
			Expect(store.Count("notes")).To(BeZero())
		})

		It("accepts an empty id slice for an empty batch", func() {
			ids, err := ingestor.Ingest(ctx, nil, "notes", "/tmp/db", ingest.Options{IDs: []string{}})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(BeEmpty())
		})

		It("zips metadata positionally and leaves trailing texts bare", func() {
			ids, err := ingestor.Ingest(ctx, []string{"a", "b"}, "notes", "/tmp/db", ingest.Options{
				IDs:      []string{"id-a", "id-b"},
				Metadata: []map[string]any{{"topic": "cats"}},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(HaveLen(2))

			results, err := store.Query(ctx, "notes", mustEmbed(embedder, "a"), 2)
			Expect(err).NotTo(HaveOccurred())
			byID := map[string]vector.Document{}
			for _, r := range results {
				byID[r.ID] = r.Document
			}
			Expect(byID["id-a"].Passage.Metadata).To(HaveKeyWithValue("topic", "cats"))
			Expect(byID["id-b"].Passage.Metadata).To(BeEmpty())
		})

		It("closes the store after writing", func() {
			_, err := ingestor.Ingest(ctx, []string{"a"}, "notes", "/tmp/db", ingest.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Closed).To(BeTrue())
		})

		It("propagates embedding failures without opening the store", func() {
			embedder.FailOn = "poison"
			_, err := ingestor.Ingest(ctx, []string{"fine", "poison"}, "notes", "/tmp/db", ingest.Options{})
			Expect(err).To(HaveOccurred())
			Expect(store.AddCalls).To(BeZero())
		})

		It("propagates storage write failures", func() {
			store.AddErr = vector.ErrWrite
			_, err := ingestor.Ingest(ctx, []string{"a"}, "notes", "/tmp/db", ingest.Options{})
			Expect(err).To(MatchError(vector.ErrWrite))
		})

		It("re-ingesting the same id replaces the stored passage", func() {
			_, err := ingestor.Ingest(ctx, []string{"old content"}, "notes", "/tmp/db", ingest.Options{IDs: []string{"p1"}})
			Expect(err).NotTo(HaveOccurred())

			_, err = ingestor.Ingest(ctx, []string{"new content"}, "notes", "/tmp/db", ingest.Options{IDs: []string{"p1"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Count("notes")).To(Equal(1))
		})
	})

	Describe("IngestText", func() {
		It("ingests a single passage and returns its id", func() {
			id, err := ingestor.IngestText(ctx, "just one", "notes", "/tmp/db")
			Expect(err).NotTo(HaveOccurred())
			Expect(id).NotTo(BeEmpty())
			Expect(store.Count("notes")).To(Equal(1))
		})
	})

	Describe("IngestPassages", func() {
		It("preserves passage metadata", func() {
			passages := []vector.Passage{
				{Content: "a", Metadata: map[string]any{"source": "file-a"}},
				{Content: "b", Metadata: map[string]any{"source": "file-b"}},
			}
			ids, err := ingestor.IngestPassages(ctx, passages, "notes", "/tmp/db", []string{"a1", "b1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal([]string{"a1", "b1"}))

			results, err := store.Query(ctx, "notes", mustEmbed(embedder, "a"), 2)
			Expect(err).NotTo(HaveOccurred())
			byID := map[string]vector.Document{}
			for _, r := range results {
				byID[r.ID] = r.Document
			}
			Expect(byID["a1"].Passage.Metadata).To(HaveKeyWithValue("source", "file-a"))
			Expect(byID["b1"].Passage.Metadata).To(HaveKeyWithValue("source", "file-b"))
		})
	})
})

func mustEmbed(embedder *testutils.MockEmbedder, text string) []float32 {
	vecs, err := embedder.EmbedDocuments(context.Background(), []string{text})
	Expect(err).NotTo(HaveOccurred())
	return vecs[0]
}
