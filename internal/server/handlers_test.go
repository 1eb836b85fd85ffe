package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hyperjump/finsum/internal/config"
	"github.com/hyperjump/finsum/internal/embedding"
	"github.com/hyperjump/finsum/internal/fileid"
	"github.com/hyperjump/finsum/internal/models"
	"github.com/hyperjump/finsum/internal/ranking"
	"github.com/hyperjump/finsum/internal/storage"
	"github.com/hyperjump/finsum/internal/summarize"
	"github.com/hyperjump/finsum/internal/vector"
)

const riskSection = "Item 1A\n\nRisk Factors\n\n" +
	"Our supply chain depends on a small number of suppliers in Asia and disruptions could harm results.\n\n" +
	"Competition in the smartphone market is intense and pricing pressure may reduce our gross margins."

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, query, passages string) (string, error) {
	return fmt.Sprintf("%s (%d chars)", query, len(passages)), nil
}

type fixedDirs []string

func (d fixedDirs) Directories() []string { return d }

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	return newTestServerWithEmbedder(t, embedding.NewMockEmbedder(128), opts...)
}

func newTestServerWithEmbedder(t *testing.T, embedder embedding.Embedder, opts ...Option) *Server {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Chunking.MaxChunkChars = 120

	sections, err := storage.NewSQLiteStorage(storage.MemoryPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sections.Close() })
	store, err := vector.NewStore(embedder.Dimensions())
	if err != nil {
		t.Fatal(err)
	}
	sum := summarize.New(cfg, embedder, echoGenerator{}, summarize.WithFilingSource(sections))
	return NewServer(cfg, store, embedder, sections, sum, opts...)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func importRisk(t *testing.T, h http.Handler) {
	t.Helper()
	w := doJSON(t, h, http.MethodPost, "/api/v1/sections", models.SectionInput{Ticker: "aapl", Item: "1a", Content: riskSection})
	if w.Code != http.StatusCreated {
		t.Fatalf("import status %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	h := newTestServer(t).Router()
	w := doJSON(t, h, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("health: %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestHandleImportSection(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Router()
	w := doJSON(t, h, http.MethodPost, "/api/v1/sections", models.SectionInput{Ticker: "aapl", Item: "1a", Content: riskSection})
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var res struct {
		RunID  string `json:"run_id"`
		Source string `json:"source"`
		Chunks int    `json:"chunks"`
		Added  int    `json:"added"`
	}
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Source != "AAPL_10K_item1a" || res.Chunks != 2 || res.Added != 2 || res.RunID == "" {
		t.Errorf("unexpected result %+v", res)
	}

	// Re-importing the same content adds nothing new.
	w = doJSON(t, h, http.MethodPost, "/api/v1/sections", models.SectionInput{Ticker: "AAPL", Item: "item1a", Content: riskSection})
	if w.Code != http.StatusCreated || !strings.Contains(w.Body.String(), `"skipped":2`) {
		t.Errorf("re-import: %d %s", w.Code, w.Body.String())
	}
	if srv.store.Count() != 2 {
		t.Errorf("store count = %d", srv.store.Count())
	}
}

func TestHandleImportSection_Invalid(t *testing.T) {
	h := newTestServer(t).Router()
	w := doJSON(t, h, http.MethodPost, "/api/v1/sections", models.SectionInput{Ticker: "AAPL", Item: "1a"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400", w.Code)
	}
	r := httptest.NewRequest(http.MethodPost, "/api/v1/sections", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json: status %d", rec.Code)
	}
}

func TestHandleSearch(t *testing.T) {
	h := newTestServer(t).Router()

	// Empty store returns no results rather than an error.
	w := doJSON(t, h, http.MethodPost, "/api/v1/search", models.SearchRequest{Query: "supply"})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"results":[]`) {
		t.Errorf("empty store: %d %s", w.Code, w.Body.String())
	}

	importRisk(t, h)
	w = doJSON(t, h, http.MethodPost, "/api/v1/search", models.SearchRequest{Query: "supply chain suppliers", TopK: 1})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var resp models.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || !strings.Contains(resp.Results[0].Chunk.Content, "supply chain") {
		t.Errorf("unexpected results %+v", resp.Results)
	}
	if resp.Results[0].Chunk.Metadata.SectionPath != "Item 1A/Risk Factors" {
		t.Errorf("section path = %q", resp.Results[0].Chunk.Metadata.SectionPath)
	}

	w = doJSON(t, h, http.MethodPost, "/api/v1/search", models.SearchRequest{Query: "supply", Sections: []string{"Item 7"}})
	if !strings.Contains(w.Body.String(), `"results":[]`) {
		t.Errorf("section filter should exclude everything: %s", w.Body.String())
	}

	w = doJSON(t, h, http.MethodPost, "/api/v1/search", models.SearchRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty query: status %d", w.Code)
	}
}

func TestSearch_ConcurrentFirstUse(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	runSearches := func() {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := srv.Search(ctx, models.SearchRequest{Query: "supply chain"}); err != nil {
					t.Error(err)
				}
			}()
		}
		wg.Wait()
	}
	runSearches()

	// Index behind the server's back so the first searches find a stale matrix.
	if _, err := srv.indexer.IndexSection(ctx, "AAPL", "1a", riskSection); err != nil {
		t.Fatal(err)
	}
	if !srv.store.Stale() {
		t.Fatal("store should be stale after a direct index")
	}
	runSearches()
	if srv.store.Stale() {
		t.Error("search should leave the matrix built")
	}
}

func TestHandleSearch_Rerank(t *testing.T) {
	fail := func(context.Context, string, []string) ([]ranking.Ranked, error) {
		return nil, fmt.Errorf("upstream unavailable")
	}
	rr, err := ranking.NewReranker(fail)
	if err != nil {
		t.Fatal(err)
	}
	h := newTestServer(t, WithReranker(rr)).Router()
	importRisk(t, h)

	w := doJSON(t, h, http.MethodPost, "/api/v1/search", models.SearchRequest{Query: "supply"})
	if w.Code != http.StatusOK {
		t.Errorf("without rerank flag: status %d", w.Code)
	}
	w = doJSON(t, h, http.MethodPost, "/api/v1/search", models.SearchRequest{Query: "supply", Rerank: true})
	if w.Code != http.StatusBadGateway {
		t.Errorf("rerank failure: status %d, want 502", w.Code)
	}
}

func TestHandleChunksAndSections(t *testing.T) {
	h := newTestServer(t).Router()
	importRisk(t, h)

	w := doJSON(t, h, http.MethodGet, "/api/v1/chunks?section="+strings.ReplaceAll("Item 1A/Risk Factors", " ", "%20"), nil)
	var chunks struct {
		Chunks []models.Chunk `json:"chunks"`
	}
	if err := json.NewDecoder(w.Body).Decode(&chunks); err != nil {
		t.Fatal(err)
	}
	if len(chunks.Chunks) != 2 {
		t.Errorf("expected 2 chunks, got %d", len(chunks.Chunks))
	}
	if w := doJSON(t, h, http.MethodGet, "/api/v1/chunks", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing section: status %d", w.Code)
	}

	w = doJSON(t, h, http.MethodGet, "/api/v1/sections?ticker=AAPL", nil)
	var list struct {
		Sections     []storage.SectionInfo `json:"sections"`
		SectionPaths []string              `json:"section_paths"`
	}
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list.Sections) != 1 || list.Sections[0].Item != "item1a" || list.Sections[0].Title != "Risk Factors" {
		t.Errorf("sections = %+v", list.Sections)
	}
	if len(list.SectionPaths) != 1 || list.SectionPaths[0] != "Item 1A/Risk Factors" {
		t.Errorf("section paths = %v", list.SectionPaths)
	}
}

func TestHandleSummarize(t *testing.T) {
	h := newTestServer(t).Router()
	importRisk(t, h)

	w := doJSON(t, h, http.MethodPost, "/api/v1/summarize", models.SummarizeRequest{Ticker: "AAPL", Item: "1a", Query: "supply chain"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var resp models.SummaryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(resp.Summary, "supply chain (") || len(resp.Sources) != 2 {
		t.Errorf("unexpected response %+v", resp)
	}

	tests := []struct {
		name string
		req  models.SummarizeRequest
		want int
	}{
		{"missing query", models.SummarizeRequest{Ticker: "AAPL", Item: "1a"}, http.StatusBadRequest},
		{"unknown ticker", models.SummarizeRequest{Ticker: "MSFT", Item: "1a", Query: "q"}, http.StatusNotFound},
		{"unknown item", models.SummarizeRequest{Ticker: "AAPL", Item: "7", Query: "q"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := doJSON(t, h, http.MethodPost, "/api/v1/summarize", tt.req); w.Code != tt.want {
				t.Errorf("status %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

type downEmbedder struct{ *embedding.MockEmbedder }

func (downEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("provider down")
}

func TestEmbedFailureIsBadGateway(t *testing.T) {
	srv := newTestServerWithEmbedder(t, downEmbedder{embedding.NewMockEmbedder(128)})
	h := srv.Router()

	w := doJSON(t, h, http.MethodPost, "/api/v1/sections", models.SectionInput{Ticker: "AAPL", Item: "1a", Content: riskSection})
	if w.Code != http.StatusBadGateway {
		t.Errorf("import status %d, want %d: %s", w.Code, http.StatusBadGateway, w.Body.String())
	}
	_, err := srv.ImportSection(context.Background(), models.SectionInput{Ticker: "AAPL", Item: "1a", Content: riskSection})
	if !errors.Is(err, embedding.ErrEmbeddingFailed) {
		t.Errorf("ImportSection err = %v", err)
	}

	// The section reached the cache before indexing failed, so summarize gets as far as embedding.
	w = doJSON(t, h, http.MethodPost, "/api/v1/summarize", models.SummarizeRequest{Ticker: "AAPL", Item: "1a", Query: "supply chain"})
	if w.Code != http.StatusBadGateway {
		t.Errorf("summarize status %d, want %d: %s", w.Code, http.StatusBadGateway, w.Body.String())
	}
}

func TestHandleStatus(t *testing.T) {
	h := newTestServer(t, WithWatcher(fixedDirs{"/filings"})).Router()
	importRisk(t, h)

	w := doJSON(t, h, http.MethodGet, "/api/v1/status", nil)
	var status map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status["chunks"].(float64) != 2 || status["stored_sections"].(float64) != 1 || status["vector_dim"].(float64) != 128 {
		t.Errorf("unexpected status %v", status)
	}
	dirs, _ := status["watch_directories"].([]interface{})
	if len(dirs) != 1 || dirs[0] != "/filings" {
		t.Errorf("watch_directories = %v", status["watch_directories"])
	}
}

func TestImportFile(t *testing.T) {
	srv := newTestServer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "MSFT_item1a.txt")
	if err := os.WriteFile(path, []byte(riskSection), 0600); err != nil {
		t.Fatal(err)
	}
	f, err := fileid.Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	res, err := srv.ImportFile(context.Background(), f)
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != "MSFT_10K_item1a" || res.Added != 2 {
		t.Errorf("unexpected result %+v", res)
	}
	sec, err := srv.sections.GetSection(context.Background(), "MSFT", "1a")
	if err != nil || sec.Content != riskSection {
		t.Errorf("section not cached: %v", err)
	}
}

func TestLoadCached(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	if err := srv.sections.SaveSection(ctx, "AAPL", models.NewSection("1a", "", riskSection)); err != nil {
		t.Fatal(err)
	}
	if err := srv.sections.SaveSection(ctx, "MSFT", models.NewSection("1a", "", riskSection)); err != nil {
		t.Fatal(err)
	}
	n, err := srv.LoadCached(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || srv.store.Count() != 4 {
		t.Errorf("LoadCached = %d sections, %d chunks; want 2 sections, 4 chunks", n, srv.store.Count())
	}
	if got := srv.store.GetVectors().Rows; got != 4 {
		t.Errorf("matrix rows = %d, want 4", got)
	}
}
