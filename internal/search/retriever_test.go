package search

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/finsum/internal/config"
	"github.com/hyperjump/finsum/internal/embedding"
	"github.com/hyperjump/finsum/internal/models"
	"github.com/hyperjump/finsum/internal/vector"
)

type stubEmbedder struct {
	*embedding.MockEmbedder
	calls int
	err   error
	dim   int
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if e.dim > 0 {
		return make([]float32, e.dim), nil
	}
	return e.MockEmbedder.Embed(ctx, text)
}

var passages = []struct {
	section, content string
}{
	{"item1a", "Supply chain disruption could materially affect operations."},
	{"item1a", "Competition in smartphone markets is intense."},
	{"item7", "Net sales grew due to services revenue."},
	{"item7", "Gross margin improved on lower component costs."},
}

func newTestRetriever(t *testing.T) (*Retriever, *vector.Store, *stubEmbedder) {
	t.Helper()
	emb := &stubEmbedder{MockEmbedder: embedding.NewMockEmbedder(128)}
	store, err := vector.NewStore(128)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for _, p := range passages {
		c := models.NewChunk(p.content, models.ChunkMetadata{SectionPath: p.section, Company: "AAPL", ContentType: "text"})
		v, _ := emb.MockEmbedder.Embed(ctx, p.content)
		if _, err := store.Add(c, v); err != nil {
			t.Fatal(err)
		}
	}
	return NewRetriever(store, emb, config.RetrievalConfig{TopK: 10}), store, emb
}

func TestSearch_EmptyStore(t *testing.T) {
	store, _ := vector.NewStore(8)
	emb := &stubEmbedder{MockEmbedder: embedding.NewMockEmbedder(8)}
	r := NewRetriever(store, emb, config.RetrievalConfig{})
	got, err := r.Search(context.Background(), "")
	if err != nil {
		t.Fatalf("empty store should not validate the query: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty slice", got)
	}
	if emb.calls != 0 {
		t.Error("embedder must not be called for an empty store")
	}
}

func TestSearch_SelfSimilarity(t *testing.T) {
	r, _, _ := newTestRetriever(t)
	for _, p := range passages {
		got, err := r.Search(context.Background(), p.content, WithTopK(1))
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].Chunk.Content != p.content {
			t.Fatalf("top result for %q = %+v", p.content, got)
		}
		if math.Abs(got[0].Score-1) > 1e-5 {
			t.Errorf("self similarity = %f", got[0].Score)
		}
	}
}

func TestSearch_OrderingAndFilters(t *testing.T) {
	r, _, _ := newTestRetriever(t)
	ctx := context.Background()

	all, err := r.Search(ctx, "supply chain margin", WithMinScore(-1))
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(passages) {
		t.Fatalf("got %d results", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Score > all[i-1].Score {
			t.Errorf("results not sorted at %d", i)
		}
	}

	item7, err := r.Search(ctx, "supply chain margin", WithSections("item7"), WithMinScore(-1))
	if err != nil {
		t.Fatal(err)
	}
	if len(item7) != 2 {
		t.Fatalf("section filter: got %d", len(item7))
	}
	for _, rc := range item7 {
		if rc.Chunk.Metadata.SectionPath != "item7" {
			t.Errorf("unexpected section %q", rc.Chunk.Metadata.SectionPath)
		}
	}

	high, err := r.Search(ctx, "Supply chain disruption could materially affect operations.", WithMinScore(0.99))
	if err != nil {
		t.Fatal(err)
	}
	if len(high) != 1 {
		t.Errorf("min score filter: got %d", len(high))
	}

	two, _ := r.Search(ctx, "supply chain margin", WithTopK(2), WithMinScore(-1))
	if len(two) != 2 || two[0].Chunk.ChunkID != all[0].Chunk.ChunkID {
		t.Errorf("top-k truncation wrong: %+v", two)
	}
}

func TestSearch_Errors(t *testing.T) {
	r, _, emb := newTestRetriever(t)
	ctx := context.Background()

	if _, err := r.Search(ctx, "   "); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("blank query: %v", err)
	}

	cause := errors.New("connection refused")
	emb.err = cause
	_, err := r.Search(ctx, "revenue")
	if !errors.Is(err, embedding.ErrEmbeddingFailed) || !errors.Is(err, cause) {
		t.Errorf("embed failure: %v", err)
	}

	emb.err = nil
	emb.dim = 3
	if _, err := r.Search(ctx, "revenue"); !errors.Is(err, vector.ErrDimensionMismatch) {
		t.Errorf("dimension mismatch: %v", err)
	}
}

func TestGetBySection(t *testing.T) {
	r, _, emb := newTestRetriever(t)
	if got := r.GetBySection("item1a"); len(got) != 2 {
		t.Errorf("got %d chunks", len(got))
	}
	if emb.calls != 0 {
		t.Error("GetBySection must not embed")
	}
}

func TestEmbedBatch(t *testing.T) {
	r, _, _ := newTestRetriever(t)
	vecs, err := r.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil || len(vecs) != 2 {
		t.Errorf("EmbedBatch = %d, %v", len(vecs), err)
	}
}
