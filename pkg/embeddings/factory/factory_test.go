package factory_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/contextlab/ragstore/pkg/embeddings"
	"github.com/contextlab/ragstore/pkg/embeddings/bge"
	"github.com/contextlab/ragstore/pkg/embeddings/factory"
	"github.com/contextlab/ragstore/pkg/embeddings/hf"
)

func TestFactory(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Factory Suite")
}

var _ = Describe("New", func() {
	var (
		server    *httptest.Server
		lastModel string
	)

	BeforeEach(func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Model string   `json:"model"`
				Input []string `json:"input"`
			}
			Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
			lastModel = req.Model

			vecs := make([][]float32, len(req.Input))
			for i := range vecs {
				vecs[i] = []float32{1, 0}
			}
			Expect(json.NewEncoder(w).Encode(map[string]any{"embeddings": vecs})).To(Succeed())
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("constructs the bge provider", func() {
		embedder, err := factory.New("bge", factory.Config{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())
		defer embedder.Close()
		Expect(lastModel).To(Equal(bge.DefaultModel))
	})

	It("constructs the hf provider", func() {
		embedder, err := factory.New("hf", factory.Config{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())
		defer embedder.Close()
		Expect(lastModel).To(Equal(hf.DefaultModel))
	})

	It("matches provider kinds case-insensitively", func() {
		embedder, err := factory.New("BGE", factory.Config{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())
		defer embedder.Close()
		Expect(lastModel).To(Equal(bge.DefaultModel))
	})

	It("falls back to the default kind for an empty string", func() {
		embedder, err := factory.New("", factory.Config{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())
		defer embedder.Close()
		Expect(lastModel).To(Equal(bge.DefaultModel))
	})

	It("rejects unknown provider kinds", func() {
		_, err := factory.New("word2vec", factory.Config{BaseURL: server.URL})
		Expect(err).To(MatchError(embeddings.ErrUnknownProvider))
		Expect(err.Error()).To(ContainSubstring("word2vec"))
		Expect(err.Error()).To(ContainSubstring("bge"))
	})

	It("passes the model override through to the provider", func() {
		embedder, err := factory.New("hf", factory.Config{BaseURL: server.URL, Model: "custom-model"})
		Expect(err).NotTo(HaveOccurred())
		defer embedder.Close()
		Expect(lastModel).To(Equal("custom-model"))
	})
})

var _ = Describe("Kinds", func() {
	It("lists the registered providers in sorted order", func() {
		Expect(factory.Kinds()).To(Equal([]string{"bge", "hf"}))
	})
})
