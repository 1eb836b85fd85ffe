// Package summarize answers a question about one filing section in a single call: chunk the
// section, embed and store the chunks, retrieve, optionally rerank, then generate.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/finsum/internal/config"
	"github.com/hyperjump/finsum/internal/embedding"
	"github.com/hyperjump/finsum/internal/indexer"
	"github.com/hyperjump/finsum/internal/llm"
	"github.com/hyperjump/finsum/internal/models"
	"github.com/hyperjump/finsum/internal/ranking"
	"github.com/hyperjump/finsum/internal/search"
	"github.com/hyperjump/finsum/internal/vector"
	"go.uber.org/zap"
)

var (
	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrSectionNotFound is returned when the filing has no section for the requested item.
	ErrSectionNotFound = errors.New("section not found")
	// ErrNoChunks is returned when a section produces no chunks.
	ErrNoChunks = errors.New("no chunks extracted")
)

// NoResultsMessage is the summary returned when retrieval finds nothing.
const NoResultsMessage = "No relevant information found in the filing for this query."

// ContextSeparator joins retrieved passages in the generation context.
const ContextSeparator = "\n\n---\n\n"

// FilingSource looks up acquired filings by ticker.
type FilingSource interface {
	GetFiling(ctx context.Context, ticker string) (*models.Filing, error)
}

// Summarizer wires the chunking, retrieval, rerank and generation stages together.
// Every call builds its own vector store.
type Summarizer struct {
	filings   FilingSource
	embedder  embedding.Embedder
	generator llm.Generator
	reranker  *ranking.Reranker
	chunking  config.ChunkingConfig
	retrieval config.RetrievalConfig
	logger    *zap.Logger
}

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(s *Summarizer) { s.logger = l }
}

// WithReranker enables the rerank stage. A nil reranker disables it.
func WithReranker(r *ranking.Reranker) Option {
	return func(s *Summarizer) { s.reranker = r }
}

// WithFilingSource sets where Summarize looks up filings by ticker.
func WithFilingSource(src FilingSource) Option {
	return func(s *Summarizer) { s.filings = src }
}

// New creates a Summarizer. cfg supplies chunking and retrieval settings.
func New(cfg *config.Config, embedder embedding.Embedder, generator llm.Generator, opts ...Option) *Summarizer {
	s := &Summarizer{
		embedder:  embedder,
		generator: generator,
		chunking:  cfg.Chunking,
		retrieval: cfg.Retrieval,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize validates req, loads the filing from the configured source and summarizes it.
func (s *Summarizer) Summarize(ctx context.Context, req models.SummarizeRequest) (*models.SummaryResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if s.filings == nil {
		return nil, errors.New("no filing source configured")
	}
	filing, err := s.filings.GetFiling(ctx, req.Ticker)
	if err != nil {
		return nil, fmt.Errorf("load filing %s: %w", strings.ToUpper(req.Ticker), err)
	}
	return s.SummarizeFiling(ctx, filing, req)
}

// SummarizeFiling answers req.Query from one section of filing.
func (s *Summarizer) SummarizeFiling(ctx context.Context, filing *models.Filing, req models.SummarizeRequest) (*models.SummaryResponse, error) {
	start := time.Now()
	if req.Ticker == "" {
		req.Ticker = filing.Ticker
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	section, ok := filing.Sections[req.Item]
	if !ok {
		return nil, fmt.Errorf("%w: item '%s' not found. Available: %s",
			ErrSectionNotFound, req.Item, strings.Join(filing.AvailableItems(), ", "))
	}

	store, err := vector.NewStore(s.embedder.Dimensions())
	if err != nil {
		return nil, err
	}
	idx := indexer.NewIndexer(store, s.embedder, s.chunking, indexer.WithLogger(s.logger))
	res, err := idx.IndexSection(ctx, filing.Ticker, req.Item, section.Content)
	if err != nil {
		return nil, err
	}
	if res.Chunks == 0 {
		return nil, fmt.Errorf("%w from %s for %s", ErrNoChunks, req.Item, filing.Ticker)
	}

	retriever := search.NewRetriever(store, s.embedder, s.retrieval, search.WithLogger(s.logger))
	results, err := retriever.Search(ctx, req.Query, search.WithTopK(req.TopK))
	if err != nil {
		return nil, err
	}
	resp := &models.SummaryResponse{Ticker: filing.Ticker, Item: req.Item, Query: req.Query}
	if len(results) == 0 {
		resp.Summary = NoResultsMessage
		resp.Sources = []models.RetrievedChunk{}
		resp.QueryTime = time.Since(start).Milliseconds()
		return resp, nil
	}

	if s.reranker != nil && len(results) > 1 {
		results, err = s.reranker.Rerank(ctx, req.Query, results, s.retrieval.RerankTopK)
		if err != nil {
			return nil, err
		}
	}

	summary, err := s.generator.Generate(ctx, req.Query, BuildContext(results))
	if err != nil {
		return nil, err
	}
	resp.Summary = summary
	resp.Sources = results
	resp.QueryTime = time.Since(start).Milliseconds()
	s.logger.Info("summarized section",
		zap.String("run_id", res.RunID),
		zap.String("source", res.Source),
		zap.Int("chunks", res.Chunks),
		zap.Int("passages", len(results)),
		zap.Int64("query_time_ms", resp.QueryTime))
	return resp, nil
}

// BuildContext joins passage contents in rank order.
func BuildContext(results []models.RetrievedChunk) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Chunk.Content
	}
	return strings.Join(parts, ContextSeparator)
}
