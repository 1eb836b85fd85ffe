package keyword

import (
	"context"
	"fmt"
	"sort"

	"github.com/hyperjump/finsum/internal/models"
	"github.com/hyperjump/finsum/internal/ranking"
)

// RerankFunc returns a ranking.ChunkRerankFunc that scores results with a throwaway Bleve
// index over their content and section path. Results without any matching term follow the
// matches with score 0, in input order.
func RerankFunc(opts SearchOptions) ranking.ChunkRerankFunc {
	return func(ctx context.Context, query string, results []models.RetrievedChunk) ([]ranking.Ranked, error) {
		idx, err := NewBleveIndex()
		if err != nil {
			return nil, err
		}
		defer idx.Close()

		chunks := make([]models.Chunk, len(results))
		positions := make(map[string][]int, len(results))
		for i, rc := range results {
			chunks[i] = rc.Chunk
			positions[rc.Chunk.ChunkID] = append(positions[rc.Chunk.ChunkID], i)
		}
		if err := idx.IndexChunks(ctx, chunks); err != nil {
			return nil, fmt.Errorf("index results: %w", err)
		}
		hits, err := idx.Search(ctx, query, len(results), &opts)
		if err != nil {
			return nil, err
		}

		out := make([]ranking.Ranked, 0, len(results))
		seen := make(map[int]bool, len(hits))
		for _, h := range hits {
			for _, i := range positions[h.ID] {
				seen[i] = true
				out = append(out, ranking.Ranked{Index: i, Score: h.Score})
			}
		}
		sort.SliceStable(out, func(a, b int) bool {
			if out[a].Score != out[b].Score {
				return out[a].Score > out[b].Score
			}
			return out[a].Index < out[b].Index
		})
		for i := range results {
			if !seen[i] {
				out = append(out, ranking.Ranked{Index: i, Score: 0})
			}
		}
		return out, nil
	}
}
