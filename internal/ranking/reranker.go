// Package ranking re-scores retrieved chunks with a pluggable second-pass relevance function.
package ranking

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/finsum/internal/models"
	"go.uber.org/zap"
)

var (
	// ErrNoRerankFunc is returned by NewReranker when no rerank function is given.
	ErrNoRerankFunc = errors.New("rerank function is required")
	// ErrRerankFailed wraps any failure of the rerank function.
	ErrRerankFailed = errors.New("rerank failed")
)

// DefaultTopK is used when Rerank is called with topK <= 0 and no WithDefaultTopK option.
const DefaultTopK = 20

// Ranked is one entry of a rerank function's output. Index refers into the documents slice
// the function was called with.
type Ranked struct {
	Index int     `json:"index"`
	Score float64 `json:"relevance_score"`
}

// RerankFunc scores documents against query and returns them best first.
type RerankFunc func(ctx context.Context, query string, documents []string) ([]Ranked, error)

// ChunkRerankFunc is a RerankFunc that also sees chunk metadata such as the section path.
// Index refers into results.
type ChunkRerankFunc func(ctx context.Context, query string, results []models.RetrievedChunk) ([]Ranked, error)

// ContentOnly adapts fn to a ChunkRerankFunc that passes chunk contents as the documents.
func ContentOnly(fn RerankFunc) ChunkRerankFunc {
	return func(ctx context.Context, query string, results []models.RetrievedChunk) ([]Ranked, error) {
		docs := make([]string, len(results))
		for i, rc := range results {
			docs[i] = rc.Chunk.Content
		}
		return fn(ctx, query, docs)
	}
}

// Reranker applies a ChunkRerankFunc to retrieval results.
type Reranker struct {
	fn     ChunkRerankFunc
	topK   int
	logger *zap.Logger
}

// Option configures a Reranker.
type Option func(*Reranker)

// WithDefaultTopK sets the result cap used when Rerank gets topK <= 0.
func WithDefaultTopK(k int) Option {
	return func(r *Reranker) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reranker) { r.logger = l }
}

// NewReranker wraps a content-only fn. A nil fn is rejected.
func NewReranker(fn RerankFunc, opts ...Option) (*Reranker, error) {
	if fn == nil {
		return nil, ErrNoRerankFunc
	}
	return NewChunkReranker(ContentOnly(fn), opts...)
}

// NewChunkReranker wraps fn. A nil fn is rejected.
func NewChunkReranker(fn ChunkRerankFunc, opts ...Option) (*Reranker, error) {
	if fn == nil {
		return nil, ErrNoRerankFunc
	}
	r := &Reranker{fn: fn, topK: DefaultTopK, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Rerank re-orders results by the rerank function's scores and keeps at most topK of them.
// Returned indices outside results are skipped. The input slice is not modified.
func (r *Reranker) Rerank(ctx context.Context, query string, results []models.RetrievedChunk, topK int) ([]models.RetrievedChunk, error) {
	if len(results) == 0 {
		return []models.RetrievedChunk{}, nil
	}
	if topK <= 0 {
		topK = r.topK
	}
	ranked, err := r.call(ctx, query, results)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRerankFailed, err)
	}
	out := make([]models.RetrievedChunk, 0, len(ranked))
	skipped := 0
	for _, rk := range ranked {
		if rk.Index < 0 || rk.Index >= len(results) {
			skipped++
			continue
		}
		out = append(out, models.RetrievedChunk{Chunk: results[rk.Index].Chunk, Score: rk.Score})
		if len(out) == topK {
			break
		}
	}
	r.logger.Debug("reranked results",
		zap.Int("candidates", len(results)),
		zap.Int("returned", len(out)),
		zap.Int("skipped_indices", skipped))
	return out, nil
}

// call runs the rerank function, turning a panic into an error.
func (r *Reranker) call(ctx context.Context, query string, results []models.RetrievedChunk) (ranked []Ranked, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("rerank function panicked: %v", p)
		}
	}()
	return r.fn(ctx, query, results)
}
