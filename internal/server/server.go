// Package server provides the finsum HTTP API over an in-memory chunk store.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/hyperjump/finsum/internal/config"
	"github.com/hyperjump/finsum/internal/embedding"
	"github.com/hyperjump/finsum/internal/extract"
	"github.com/hyperjump/finsum/internal/fileid"
	"github.com/hyperjump/finsum/internal/indexer"
	"github.com/hyperjump/finsum/internal/models"
	"github.com/hyperjump/finsum/internal/ranking"
	"github.com/hyperjump/finsum/internal/search"
	"github.com/hyperjump/finsum/internal/storage"
	"github.com/hyperjump/finsum/internal/summarize"
	"github.com/hyperjump/finsum/internal/vector"
	"go.uber.org/zap"
)

// DirectoryLister reports watched directories.
type DirectoryLister interface {
	Directories() []string
}

// Server is the HTTP server for the finsum API. Imports take the write lock on the chunk
// store and searches the read lock.
type Server struct {
	cfg        *config.Config
	mu         sync.RWMutex
	store      *vector.Store
	indexer    *indexer.Indexer
	retriever  *search.Retriever
	reranker   *ranking.Reranker
	sections   storage.SectionStore
	summarizer *summarize.Summarizer
	extractor  *extract.Extractor
	watch      DirectoryLister
	logger     *zap.Logger
	started    time.Time
	server     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithReranker enables reranking for search requests that ask for it.
func WithReranker(r *ranking.Reranker) Option {
	return func(s *Server) { s.reranker = r }
}

// WithWatcher reports the watched directories in the status endpoint.
func WithWatcher(w DirectoryLister) Option {
	return func(s *Server) { s.watch = w }
}

// NewServer creates a server that indexes into store with embedder, caches imported sections
// in sections and answers summarize requests with summarizer.
func NewServer(cfg *config.Config, store *vector.Store, embedder embedding.Embedder, sections storage.SectionStore, summarizer *summarize.Summarizer, opts ...Option) *Server {
	s := &Server{
		cfg:        cfg,
		store:      store,
		sections:   sections,
		summarizer: summarizer,
		extractor:  extract.NewExtractor(),
		logger:     zap.NewNop(),
		started:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.indexer = indexer.NewIndexer(store, embedder, cfg.Chunking,
		indexer.WithLogger(s.logger), indexer.WithBatchSize(cfg.Embedding.BatchSize))
	s.retriever = search.NewRetriever(store, embedder, cfg.Retrieval, search.WithLogger(s.logger))
	s.store.GetVectors()
	return s
}

// Router returns the HTTP handler with all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/sections", s.handleImportSection)
		r.Get("/sections", s.handleListSections)
		r.Get("/chunks", s.handleChunks)
		r.Post("/search", s.handleSearch)
		r.Post("/summarize", s.handleSummarize)
	})
	return r
}

// requestID tags every response with a fresh X-Request-ID unless the client sent one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// ImportSection caches the section and indexes its chunks into the store.
func (s *Server) ImportSection(ctx context.Context, in models.SectionInput) (*indexer.Result, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", summarize.ErrInvalidRequest, err)
	}
	ticker := strings.ToUpper(in.Ticker)
	if err := s.sections.SaveSection(ctx, ticker, models.NewSection(in.Item, in.Title, in.Content)); err != nil {
		return nil, fmt.Errorf("save section: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.indexer.IndexSection(ctx, ticker, in.Item, in.Content)
	// Rebuild the matrix here so searches under the read lock never write.
	s.store.GetVectors()
	return res, err
}

// ImportFile extracts a watched section file and imports it.
func (s *Server) ImportFile(ctx context.Context, f fileid.SectionFile) (*indexer.Result, error) {
	text, err := s.extractor.Extract(f.Path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", f.Path, err)
	}
	return s.ImportSection(ctx, models.SectionInput{Ticker: f.Ticker, Item: f.Item, Content: text})
}

// LoadCached re-indexes every section already in the section cache, so a restarted server
// answers searches without re-importing files. It returns the number of sections indexed.
func (s *Server) LoadCached(ctx context.Context) (int, error) {
	tickers, err := s.sections.ListTickers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tickers: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.store.GetVectors()
	n := 0
	for _, ticker := range tickers {
		filing, err := s.sections.GetFiling(ctx, ticker)
		if err != nil {
			return n, err
		}
		results, err := s.indexer.IndexFiling(ctx, filing)
		n += len(results)
		if err != nil {
			return n, err
		}
	}
	s.logger.Info("loaded cached sections", zap.Int("sections", n), zap.Int("chunks", s.store.Count()))
	return n, nil
}

// rlockFresh takes the read lock with the store matrix built. A stale matrix (the store was
// changed outside ImportSection or LoadCached) is rebuilt under the write lock first.
func (s *Server) rlockFresh() {
	for {
		s.mu.RLock()
		if !s.store.Stale() {
			return
		}
		s.mu.RUnlock()
		s.mu.Lock()
		s.store.GetVectors()
		s.mu.Unlock()
	}
}

// Search runs req against the store and reranks the hits when req.Rerank is set and a
// reranker is configured.
func (s *Server) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", summarize.ErrInvalidRequest, err)
	}
	opts := []search.SearchOption{search.WithSections(req.Sections...), search.WithTopK(req.TopK)}
	if req.MinScore != nil {
		opts = append(opts, search.WithMinScore(*req.MinScore))
	}
	s.rlockFresh()
	results, err := s.retriever.Search(ctx, req.Query, opts...)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	reranked := false
	if req.Rerank && s.reranker != nil && len(results) > 1 {
		results, err = s.reranker.Rerank(ctx, req.Query, results, 0)
		if err != nil {
			return nil, err
		}
		reranked = true
	}
	return &models.SearchResponse{
		Query:     req.Query,
		Results:   results,
		Reranked:  reranked,
		QueryTime: time.Since(start).Milliseconds(),
	}, nil
}
