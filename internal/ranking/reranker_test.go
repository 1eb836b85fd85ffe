package ranking

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/finsum/internal/models"
)

func results(contents ...string) []models.RetrievedChunk {
	out := make([]models.RetrievedChunk, len(contents))
	for i, c := range contents {
		out[i] = models.RetrievedChunk{
			Chunk: models.NewChunk(c, models.ChunkMetadata{SectionPath: "item7", Company: "AAPL"}),
			Score: 0.5,
		}
	}
	return out
}

func fixed(ranked ...Ranked) RerankFunc {
	return func(context.Context, string, []string) ([]Ranked, error) {
		return ranked, nil
	}
}

func TestNewReranker_Nil(t *testing.T) {
	if _, err := NewReranker(nil); !errors.Is(err, ErrNoRerankFunc) {
		t.Errorf("err = %v", err)
	}
}

func TestRerank(t *testing.T) {
	var gotQuery string
	var gotDocs []string
	r, err := NewReranker(func(_ context.Context, q string, docs []string) ([]Ranked, error) {
		gotQuery, gotDocs = q, docs
		return []Ranked{{Index: 2, Score: 0.9}, {Index: 0, Score: 0.4}, {Index: 1, Score: 0.1}}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	in := results("alpha", "beta", "gamma")
	out, err := r.Rerank(context.Background(), "q", in, 0)
	if err != nil {
		t.Fatal(err)
	}
	if gotQuery != "q" || len(gotDocs) != 3 || gotDocs[0] != "alpha" || gotDocs[2] != "gamma" {
		t.Errorf("rerank func called with %q %v", gotQuery, gotDocs)
	}
	want := []struct {
		content string
		score   float64
	}{{"gamma", 0.9}, {"alpha", 0.4}, {"beta", 0.1}}
	if len(out) != len(want) {
		t.Fatalf("got %d results", len(out))
	}
	for i, w := range want {
		if out[i].Chunk.Content != w.content || out[i].Score != w.score {
			t.Errorf("result %d = %s/%f, want %s/%f", i, out[i].Chunk.Content, out[i].Score, w.content, w.score)
		}
	}
	if in[0].Score != 0.5 {
		t.Error("input results must not be modified")
	}
}

func TestRerank_Empty(t *testing.T) {
	called := false
	r, _ := NewReranker(func(context.Context, string, []string) ([]Ranked, error) {
		called = true
		return nil, nil
	})
	out, err := r.Rerank(context.Background(), "q", nil, 5)
	if err != nil || out == nil || len(out) != 0 {
		t.Errorf("Rerank(nil) = %v, %v", out, err)
	}
	if called {
		t.Error("rerank func must not be called for empty input")
	}
}

func TestRerank_SkipsOutOfRangeThenTruncates(t *testing.T) {
	r, _ := NewReranker(fixed(
		Ranked{Index: 7, Score: 0.99},
		Ranked{Index: 1, Score: 0.8},
		Ranked{Index: -1, Score: 0.7},
		Ranked{Index: 0, Score: 0.6},
		Ranked{Index: 2, Score: 0.5},
	))
	out, err := r.Rerank(context.Background(), "q", results("a", "b", "c"), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0].Chunk.Content != "b" || out[1].Chunk.Content != "a" {
		t.Errorf("out = %+v", out)
	}
}

func TestRerank_DefaultTopK(t *testing.T) {
	ranked := make([]Ranked, 30)
	contents := make([]string, 30)
	for i := range ranked {
		ranked[i] = Ranked{Index: i, Score: float64(30 - i)}
		contents[i] = string(rune('A' + i%26)) + string(rune('a'+i))
	}
	r, _ := NewReranker(fixed(ranked...))
	out, _ := r.Rerank(context.Background(), "q", results(contents...), 0)
	if len(out) != DefaultTopK {
		t.Errorf("default top-k: got %d", len(out))
	}
	r, _ = NewReranker(fixed(ranked...), WithDefaultTopK(5))
	out, _ = r.Rerank(context.Background(), "q", results(contents...), -1)
	if len(out) != 5 {
		t.Errorf("configured top-k: got %d", len(out))
	}
}

func TestRerank_Failures(t *testing.T) {
	cause := errors.New("rate limited")
	r, _ := NewReranker(func(context.Context, string, []string) ([]Ranked, error) {
		return nil, cause
	})
	_, err := r.Rerank(context.Background(), "q", results("a"), 0)
	if !errors.Is(err, ErrRerankFailed) || !errors.Is(err, cause) {
		t.Errorf("err = %v", err)
	}

	r, _ = NewReranker(func(context.Context, string, []string) ([]Ranked, error) {
		panic("boom")
	})
	_, err = r.Rerank(context.Background(), "q", results("a"), 0)
	if !errors.Is(err, ErrRerankFailed) {
		t.Errorf("panic should become ErrRerankFailed, got %v", err)
	}
}

func TestNewChunkReranker(t *testing.T) {
	if _, err := NewChunkReranker(nil); !errors.Is(err, ErrNoRerankFunc) {
		t.Errorf("nil fn: %v", err)
	}
	var gotSections []string
	r, err := NewChunkReranker(func(_ context.Context, _ string, in []models.RetrievedChunk) ([]Ranked, error) {
		for _, rc := range in {
			gotSections = append(gotSections, rc.Chunk.Metadata.SectionPath)
		}
		return []Ranked{{Index: 1, Score: 2}, {Index: 0, Score: 1}}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	out, err := r.Rerank(context.Background(), "q", results("alpha", "beta"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(gotSections) != 2 || gotSections[0] != "item7" {
		t.Errorf("rerank func saw sections %v", gotSections)
	}
	if len(out) != 2 || out[0].Chunk.Content != "beta" || out[0].Score != 2 {
		t.Errorf("out = %+v", out)
	}
}
