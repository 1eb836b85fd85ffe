// Package search runs cosine-similarity queries against the in-memory vector store.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hyperjump/finsum/internal/config"
	"github.com/hyperjump/finsum/internal/embedding"
	"github.com/hyperjump/finsum/internal/models"
	"github.com/hyperjump/finsum/internal/vector"
	"go.uber.org/zap"
)

// ErrEmptyQuery is returned for a blank query string.
var ErrEmptyQuery = errors.New("query must not be empty")

// Retriever scores every stored chunk against a query embedding. It only reads the store.
type Retriever struct {
	store    *vector.Store
	embedder embedding.Embedder
	topK     int
	minScore float64
	logger   *zap.Logger
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) RetrieverOption {
	return func(r *Retriever) { r.logger = l }
}

// NewRetriever creates a retriever over store. cfg supplies the default top_k and min_score.
func NewRetriever(store *vector.Store, embedder embedding.Embedder, cfg config.RetrievalConfig, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		store:    store,
		embedder: embedder,
		topK:     cfg.TopK,
		minScore: cfg.MinScore,
		logger:   zap.NewNop(),
	}
	if r.topK <= 0 {
		r.topK = 10
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type searchOptions struct {
	sections []string
	topK     int
	minScore float64
}

// SearchOption overrides a per-call search parameter.
type SearchOption func(*searchOptions)

// WithSections restricts results to chunks whose section path is one of paths.
// No paths means no restriction.
func WithSections(paths ...string) SearchOption {
	return func(o *searchOptions) { o.sections = paths }
}

// WithTopK caps the number of results. Values <= 0 keep the default.
func WithTopK(k int) SearchOption {
	return func(o *searchOptions) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithMinScore drops results scoring below s.
func WithMinScore(s float64) SearchOption {
	return func(o *searchOptions) { o.minScore = s }
}

// Search embeds query and returns the best matching chunks, highest score first. Ties keep
// store insertion order. An empty store yields an empty result without calling the embedder.
func (r *Retriever) Search(ctx context.Context, query string, opts ...SearchOption) ([]models.RetrievedChunk, error) {
	o := searchOptions{topK: r.topK, minScore: r.minScore}
	for _, opt := range opts {
		opt(&o)
	}

	vectors := r.store.GetVectors()
	if vectors.Rows == 0 {
		return []models.RetrievedChunk{}, nil
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	ids := r.store.GetChunkIDs()

	q, err := r.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(q) != vectors.Dim {
		return nil, fmt.Errorf("%w: query has %d, store has %d", vector.ErrDimensionMismatch, len(q), vectors.Dim)
	}

	var allowed map[string]bool
	if len(o.sections) > 0 {
		allowed = make(map[string]bool, len(o.sections))
		for _, s := range o.sections {
			allowed[s] = true
		}
	}

	scores := vectors.Scores(q)
	results := make([]models.RetrievedChunk, 0, len(scores))
	for i, score := range scores {
		if score < o.minScore {
			continue
		}
		chunk, ok := r.store.Get(ids[i])
		if !ok {
			continue
		}
		if allowed != nil && !allowed[chunk.Metadata.SectionPath] {
			continue
		}
		results = append(results, models.RetrievedChunk{Chunk: chunk, Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > o.topK {
		results = results[:o.topK]
	}
	r.logger.Debug("search completed",
		zap.String("query", query),
		zap.Int("candidates", vectors.Rows),
		zap.Int("results", len(results)))
	return results, nil
}

// GetBySection returns the stored chunks of one section path without scoring.
func (r *Retriever) GetBySection(path string) []models.Chunk {
	return r.store.GetBySection(path)
}

// Embed embeds a single text, wrapping provider failures in embedding.ErrEmbeddingFailed.
func (r *Retriever) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", embedding.ErrEmbeddingFailed, err)
	}
	return v, nil
}

// EmbedBatch embeds texts, wrapping provider failures in embedding.ErrEmbeddingFailed.
func (r *Retriever) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	v, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", embedding.ErrEmbeddingFailed, err)
	}
	return v, nil
}
