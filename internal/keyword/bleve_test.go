package keyword

import (
	"context"
	"testing"

	"github.com/hyperjump/finsum/internal/models"
)

func newTestIndex(t *testing.T, chunks ...models.Chunk) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	if err := idx.IndexChunks(context.Background(), chunks); err != nil {
		t.Fatal(err)
	}
	return idx
}

func chunk(section, content string) models.Chunk {
	return models.NewChunk(content, models.ChunkMetadata{Source: "AAPL_10K_item1a", SectionPath: section, Company: "AAPL"})
}

func TestBleveIndex_SearchFindsContent(t *testing.T) {
	a := chunk("Item 1A/Risk Factors", "Supply chain disruptions could harm our results.")
	b := chunk("Item 7/Liquidity", "Cash and marketable securities totaled $162 billion.")
	idx := newTestIndex(t, a, b)

	hits, err := idx.Search(context.Background(), "supply chain", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != a.ChunkID {
		t.Fatalf("expected only %s, got %+v", a.ChunkID, hits)
	}
	if hits[0].Score <= 0 {
		t.Errorf("score should be positive, got %f", hits[0].Score)
	}
}

func TestBleveIndex_SearchFindsSection(t *testing.T) {
	a := chunk("Item 7/Liquidity", "Cash totaled $162 billion.")
	b := chunk("Item 1A/Risk Factors", "Competition is intense.")
	idx := newTestIndex(t, a, b)

	hits, err := idx.Search(context.Background(), "liquidity", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != a.ChunkID {
		t.Fatalf("expected section match %s, got %+v", a.ChunkID, hits)
	}
}

func TestBleveIndex_TermCoveragePrefersFullMatch(t *testing.T) {
	full := chunk("Item 1A/Risk Factors", "Foreign currency exchange rates affect revenue.")
	partial := chunk("Item 1A/Risk Factors", "Revenue revenue revenue grew in every segment.")
	idx := newTestIndex(t, full, partial)

	hits, err := idx.Search(context.Background(), "currency revenue", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %+v", hits)
	}
	if hits[0].ID != full.ChunkID {
		t.Errorf("chunk matching both terms should rank first, got %+v", hits)
	}
}

func TestBleveIndex_Fuzzy(t *testing.T) {
	a := chunk("Item 7/Results", "Net revenue increased eight percent.")
	idx := newTestIndex(t, a)

	hits, err := idx.Search(context.Background(), "revenu", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("exact search should miss a typo, got %+v", hits)
	}
	hits, err = idx.Search(context.Background(), "revenu", 10, &SearchOptions{FuzzyEnabled: true, Fuzziness: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("fuzzy search should match, got %+v", hits)
	}
}

func TestBleveIndex_EmptyQuery(t *testing.T) {
	idx := newTestIndex(t, chunk("Item 1", "Anything at all."))
	hits, err := idx.Search(context.Background(), "  ?! ", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits, got %+v", hits)
	}
	n, err := idx.DocCount()
	if err != nil || n != 1 {
		t.Errorf("DocCount = %d, %v", n, err)
	}
}

func retrieved(chunks ...models.Chunk) []models.RetrievedChunk {
	out := make([]models.RetrievedChunk, len(chunks))
	for i, c := range chunks {
		out[i] = models.RetrievedChunk{Chunk: c, Score: 0.5}
	}
	return out
}

var rerankOptions = SearchOptions{SectionBoost: 2, PhraseBoost: 1.5, Fuzziness: 1}

func TestRerankFunc(t *testing.T) {
	in := retrieved(
		chunk("Item 7", "The weather is nice today."),
		chunk("Item 7", "Supply chain disruptions affected margins."),
		chunk("Item 7", "Unrelated text about offices."),
		chunk("Item 7", "Supply constraints persisted."),
	)
	ranked, err := RerankFunc(rerankOptions)(context.Background(), "supply chain", in)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranked) != len(in) {
		t.Fatalf("every result should be returned once, got %+v", ranked)
	}
	if ranked[0].Index != 1 || ranked[1].Index != 3 {
		t.Errorf("matches should lead, best first: %+v", ranked)
	}
	if ranked[2].Index != 0 || ranked[3].Index != 2 {
		t.Errorf("non-matches should follow in input order: %+v", ranked)
	}
	if ranked[2].Score != 0 || ranked[3].Score != 0 {
		t.Errorf("non-matches should score 0: %+v", ranked)
	}
}

func TestRerankFunc_SectionPath(t *testing.T) {
	in := retrieved(
		chunk("Item 1A/Risk Factors", "Competition is intense."),
		chunk("Item 7/Liquidity", "Cash totaled $162 billion."),
	)
	ranked, err := RerankFunc(rerankOptions)(context.Background(), "liquidity", in)
	if err != nil {
		t.Fatal(err)
	}
	if ranked[0].Index != 1 || ranked[0].Score <= 0 {
		t.Errorf("section path match should lead: %+v", ranked)
	}
	if ranked[1].Score != 0 {
		t.Errorf("other section should score 0: %+v", ranked)
	}
}

func TestRerankFunc_Fuzzy(t *testing.T) {
	in := retrieved(
		chunk("Item 7", "Headcount grew."),
		chunk("Item 7", "Net revenue increased eight percent."),
	)
	ranked, err := RerankFunc(rerankOptions)(context.Background(), "revenu", in)
	if err != nil {
		t.Fatal(err)
	}
	if ranked[0].Index != 0 || ranked[0].Score != 0 {
		t.Errorf("exact scoring should miss the typo: %+v", ranked)
	}

	fuzzy := rerankOptions
	fuzzy.FuzzyEnabled = true
	ranked, err = RerankFunc(fuzzy)(context.Background(), "revenu", in)
	if err != nil {
		t.Fatal(err)
	}
	if ranked[0].Index != 1 || ranked[0].Score <= 0 {
		t.Errorf("fuzzy scoring should match: %+v", ranked)
	}
}

func TestRerankFunc_DuplicateResults(t *testing.T) {
	c := chunk("Item 7", "Supply chain disruptions affected margins.")
	ranked, err := RerankFunc(rerankOptions)(context.Background(), "supply", retrieved(c, c))
	if err != nil {
		t.Fatal(err)
	}
	if len(ranked) != 2 || ranked[0].Index != 0 || ranked[1].Index != 1 || ranked[1].Score != ranked[0].Score {
		t.Errorf("both copies should get the same score: %+v", ranked)
	}
}
