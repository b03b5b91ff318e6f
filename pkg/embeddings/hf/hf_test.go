package hf_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/contextlab/ragstore/pkg/embeddings"
	"github.com/contextlab/ragstore/pkg/embeddings/hf"
)

func TestHF(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "HF Suite")
}

var _ = Describe("Embedder", func() {
	var (
		server    *httptest.Server
		lastModel string
		lastInput []string
	)

	BeforeEach(func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Model string   `json:"model"`
				Input []string `json:"input"`
			}
			Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
			lastModel = req.Model
			lastInput = req.Input

			vecs := make([][]float32, len(req.Input))
			for i := range vecs {
				vecs[i] = []float32{0, 5, 0}
			}
			Expect(json.NewEncoder(w).Encode(map[string]any{"embeddings": vecs})).To(Succeed())
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("New", func() {
		It("warms the default model and reports its dimensionality", func() {
			embedder, err := hf.New(hf.Config{BaseURL: server.URL})
			Expect(err).NotTo(HaveOccurred())
			defer embedder.Close()

			Expect(lastModel).To(Equal(hf.DefaultModel))
			Expect(embedder.Dimensions()).To(Equal(3))
		})

		It("fails fast when the model cannot be loaded", func() {
			bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "no such model", http.StatusNotFound)
			}))
			defer bad.Close()

			_, err := hf.New(hf.Config{BaseURL: bad.URL})
			Expect(err).To(MatchError(embeddings.ErrModelLoad))
		})
	})

	Describe("EmbedQuery", func() {
		It("encodes queries exactly like documents", func() {
			embedder, err := hf.New(hf.Config{BaseURL: server.URL})
			Expect(err).NotTo(HaveOccurred())
			defer embedder.Close()

			_, err = embedder.EmbedQuery(context.Background(), "what is a synapse")
			Expect(err).NotTo(HaveOccurred())
			Expect(lastInput).To(Equal([]string{"what is a synapse"}))
		})

		It("normalizes the returned vector", func() {
			embedder, err := hf.New(hf.Config{BaseURL: server.URL})
			Expect(err).NotTo(HaveOccurred())
			defer embedder.Close()

			vec, err := embedder.EmbedQuery(context.Background(), "q")
			Expect(err).NotTo(HaveOccurred())
			Expect(vec).To(Equal([]float32{0, 1, 0}))
		})
	})

	Describe("EmbedDocuments", func() {
		It("returns normalized vectors aligned with the input", func() {
			embedder, err := hf.New(hf.Config{BaseURL: server.URL})
			Expect(err).NotTo(HaveOccurred())
			defer embedder.Close()

			vecs, err := embedder.EmbedDocuments(context.Background(), []string{"a", "b", "c"})
			Expect(err).NotTo(HaveOccurred())
			Expect(vecs).To(HaveLen(3))
			Expect(lastInput).To(Equal([]string{"a", "b", "c"}))
			for _, vec := range vecs {
				Expect(vec).To(Equal([]float32{0, 1, 0}))
			}
		})
	})
})
