package summarize

import (
	"fmt"

	"github.com/hyperjump/finsum/internal/config"
	"github.com/hyperjump/finsum/internal/keyword"
	"github.com/hyperjump/finsum/internal/ranking"
	"go.uber.org/zap"
)

// NewReranker builds the rerank stage selected by cfg.Provider. It returns nil for "none".
func NewReranker(cfg config.RerankerConfig, topK int, logger *zap.Logger) (*ranking.Reranker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var fn ranking.ChunkRerankFunc
	switch cfg.Provider {
	case config.RerankerNone, "":
		return nil, nil
	case config.RerankerLexical:
		fn = keyword.RerankFunc(keyword.SearchOptions{
			SectionBoost: cfg.SectionBoost,
			PhraseBoost:  cfg.PhraseBoost,
			FuzzyEnabled: cfg.Fuzzy,
			Fuzziness:    cfg.Fuzziness,
		})
	case config.RerankerZeroEntropy:
		client, err := ranking.NewZeroEntropyClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("create zeroentropy reranker: %w", err)
		}
		fn = ranking.ContentOnly(client.Rerank)
	default:
		return nil, fmt.Errorf("unknown reranker provider %q", cfg.Provider)
	}
	logger.Debug("reranker ready", zap.String("provider", cfg.Provider), zap.Int("top_k", topK))
	return ranking.NewChunkReranker(fn, ranking.WithDefaultTopK(topK), ranking.WithLogger(logger))
}
