package indexer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/finsum/internal/config"
	"github.com/hyperjump/finsum/internal/embedding"
	"github.com/hyperjump/finsum/internal/models"
	"github.com/hyperjump/finsum/internal/vector"
	"go.uber.org/zap"
)

// Result describes one indexing run over a section.
type Result struct {
	RunID   string `json:"run_id"`
	Source  string `json:"source"`
	Chunks  int    `json:"chunks"`
	Added   int    `json:"added"`
	Skipped int    `json:"skipped"`
}

// Indexer chunks section text, embeds the chunks and adds them to a vector store.
// It does not lock the store; callers serialize writes.
type Indexer struct {
	store     *vector.Store
	embedder  embedding.Embedder
	pipeline  *Pipeline
	batchSize int
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithBatchSize limits how many chunks are sent to the embedder per call.
func WithBatchSize(n int) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.batchSize = n
		}
	}
}

// NewIndexer creates an indexer that writes into store using embedder.
func NewIndexer(store *vector.Store, embedder embedding.Embedder, cfg config.ChunkingConfig, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		store:     store,
		embedder:  embedder,
		batchSize: 64,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.pipeline = NewPipeline(cfg, WithPipelineLogger(idx.logger))
	return idx
}

// Chunk preprocesses and chunks a section without embedding or storing anything.
func (idx *Indexer) Chunk(ticker, item, content string) []models.Chunk {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	return idx.pipeline.Process(Preprocess(content), models.SourceID(ticker, item), ticker)
}

// IndexSection chunks one filing section and adds its chunks to the store. Chunks already
// present (same company, section path and content) are counted as skipped.
func (idx *Indexer) IndexSection(ctx context.Context, ticker, item, content string) (*Result, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	res := &Result{RunID: uuid.New().String(), Source: models.SourceID(ticker, item)}
	chunks := idx.Chunk(ticker, item, content)
	res.Chunks = len(chunks)
	idx.logger.Debug("indexer chunked section",
		zap.String("run_id", res.RunID),
		zap.String("source", res.Source),
		zap.Int("chunks", len(chunks)))
	if err := idx.IndexChunks(ctx, chunks, res); err != nil {
		return res, err
	}
	idx.logger.Info("indexed section",
		zap.String("run_id", res.RunID),
		zap.String("source", res.Source),
		zap.Int("added", res.Added),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

// IndexFiling indexes every section of f in item order.
func (idx *Indexer) IndexFiling(ctx context.Context, f *models.Filing) ([]*Result, error) {
	var results []*Result
	for _, item := range f.AvailableItems() {
		s := f.Sections[item]
		res, err := idx.IndexSection(ctx, f.Ticker, item, s.Content)
		if err != nil {
			return results, fmt.Errorf("index %s %s: %w", f.Ticker, item, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// IndexChunks embeds chunks in batches and adds them to the store, accumulating counts in res.
func (idx *Indexer) IndexChunks(ctx context.Context, chunks []models.Chunk, res *Result) error {
	for start := 0; start < len(chunks); start += idx.batchSize {
		end := start + idx.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}
		embeddings, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("%w: %w", embedding.ErrEmbeddingFailed, err)
		}
		added, skipped, err := idx.store.AddBatch(batch, embeddings)
		res.Added += added
		res.Skipped += skipped
		if err != nil {
			return fmt.Errorf("failed to store chunks: %w", err)
		}
	}
	return nil
}
