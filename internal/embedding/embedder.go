// Package embedding turns chunk and query text into unit-length vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/finsum/internal/config"
	"go.uber.org/zap"
)

// ErrEmbeddingFailed wraps failures of the embedding provider, at index or query time.
var ErrEmbeddingFailed = errors.New("embedding failed")

// Embedder produces vector embeddings for text. Returned vectors have Dimensions() entries.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// New builds the embedder selected by cfg.Provider for vectors of length dim and wraps it
// in an LRU cache when cfg.CacheSize is positive.
func New(cfg config.EmbeddingConfig, dim int, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		base Embedder
		err  error
	)
	switch cfg.Provider {
	case config.EmbeddingMock, "":
		base = NewMockEmbedder(dim)
	case config.EmbeddingOpenAI:
		base, err = NewOpenAIEmbedder(cfg, dim)
	case config.EmbeddingONNX:
		base, err = NewONNXEmbedder(cfg.ModelPath, dim, cfg.MaxTokens)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s embedder: %w", cfg.Provider, err)
	}
	logger.Debug("embedder ready",
		zap.String("provider", cfg.Provider),
		zap.Int("dimensions", base.Dimensions()),
		zap.Int("cache_size", cfg.CacheSize))
	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(base, cfg.CacheSize), nil
	}
	return base, nil
}
