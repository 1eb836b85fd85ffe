package keyword

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/finsum/internal/models"
)

const (
	fieldContent = "content"
	fieldSection = "section"
)

// BleveIndex is a memory-only Bleve index of chunks keyed by chunk ID.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates an empty in-memory index.
func NewBleveIndex() (*BleveIndex, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer: lowercase + tokenize, no stemming, so "margins" does not match "margin".
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(fieldContent, textFieldMapping)
	docMapping.AddFieldMappingsAt(fieldSection, textFieldMapping)
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// IndexChunks adds chunks in one batch. Section path separators are indexed as spaces.
func (b *BleveIndex) IndexChunks(ctx context.Context, chunks []models.Chunk) error {
	batch := b.index.NewBatch()
	for _, c := range chunks {
		doc := map[string]interface{}{
			fieldContent: c.Content,
			fieldSection: strings.ReplaceAll(c.Metadata.SectionPath, "/", " "),
		}
		if err := batch.Index(c.ChunkID, doc); err != nil {
			return fmt.Errorf("index chunk %s: %w", c.ChunkID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve batch failed: %w", err)
	}
	return nil
}

// Search returns up to limit hits, best first. Scores add the content score and the boosted
// section score, are multiplied by PhraseBoost for phrase matches, and are penalized by
// (matched terms / query terms)^2 for multi-term queries.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]Result, error) {
	o := SearchOptions{SectionBoost: 1, PhraseBoost: 1, Fuzziness: 1}
	if opts != nil {
		if opts.SectionBoost > 0 {
			o.SectionBoost = opts.SectionBoost
		}
		if opts.PhraseBoost > 0 {
			o.PhraseBoost = opts.PhraseBoost
		}
		o.FuzzyEnabled = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			o.Fuzziness = opts.Fuzziness
		}
	}
	terms := tokenizeQuery(query)
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}
	reqSize := limit * 2
	if reqSize < 50 {
		reqSize = 50
	}

	contentHits, err := b.run(ctx, b.termsQuery(terms, fieldContent, o), reqSize)
	if err != nil {
		return nil, fmt.Errorf("Bleve content search failed: %w", err)
	}
	sectionHits, err := b.run(ctx, b.termsQuery(terms, fieldSection, o), reqSize)
	if err != nil {
		return nil, fmt.Errorf("Bleve section search failed: %w", err)
	}

	coverage := map[string]int{}
	if len(terms) > 1 {
		for _, term := range terms {
			hits, err := b.run(ctx, b.termsQuery([]string{term}, "", o), reqSize)
			if err != nil {
				continue
			}
			for id := range hits {
				coverage[id]++
			}
		}
	}
	phrase := map[string]float64{}
	if o.PhraseBoost > 1 && len(terms) > 1 {
		pq := bleve.NewMatchPhraseQuery(query)
		pq.SetField(fieldContent)
		if hits, err := b.run(ctx, pq, reqSize); err == nil {
			phrase = hits
		}
	}

	scores := make(map[string]float64, len(contentHits)+len(sectionHits))
	for id, s := range contentHits {
		scores[id] += s
	}
	for id, s := range sectionHits {
		scores[id] += s * o.SectionBoost
	}
	out := make([]Result, 0, len(scores))
	for id, score := range scores {
		if len(terms) > 1 {
			matched := coverage[id]
			if matched == 0 {
				matched = 1
			}
			c := float64(matched) / float64(len(terms))
			score *= c * c
		}
		if _, ok := phrase[id]; ok {
			score *= o.PhraseBoost
		}
		out = append(out, Result{ID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (b *BleveIndex) run(ctx context.Context, q blevequery.Query, size int) (map[string]float64, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = size
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}
	hits := make(map[string]float64, len(res.Hits))
	for _, h := range res.Hits {
		hits[h.ID] = h.Score
	}
	return hits, nil
}

// termsQuery ORs the terms, fuzzily when enabled. An empty field searches all fields.
func (b *BleveIndex) termsQuery(terms []string, field string, o SearchOptions) blevequery.Query {
	if !o.FuzzyEnabled {
		mq := bleve.NewMatchQuery(strings.Join(terms, " "))
		if field != "" {
			mq.SetField(field)
		}
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(o.Fuzziness)
		if field != "" {
			fq.SetField(field)
		}
		queries = append(queries, fq)
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// tokenizeQuery lower-cases query and splits it on anything that is not a letter or digit.
func tokenizeQuery(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// DocCount returns the number of indexed documents.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
