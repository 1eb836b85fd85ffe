package vector

import (
	"errors"
	"fmt"

	"github.com/hyperjump/finsum/internal/models"
)

// ErrDimensionMismatch is returned when a vector's length differs from the store dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

type storedChunk struct {
	chunk     models.Chunk
	embedding []float32
}

// Store is an in-memory chunk store keyed by chunk ID with a section index and a lazily
// rebuilt vector matrix. Insertion order is the iteration order everywhere.
// Store does no locking; callers serialize writes.
type Store struct {
	dim          int
	chunks       map[string]*storedChunk
	order        []string
	sections     map[string][]string
	sectionOrder []string

	matrix   *Matrix
	chunkIDs []string
	dirty    bool
}

// NewStore creates an empty store for vectors of length dim.
func NewStore(dim int) (*Store, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &Store{
		dim:      dim,
		chunks:   make(map[string]*storedChunk),
		sections: make(map[string][]string),
	}, nil
}

// Dim returns the vector dimension.
func (s *Store) Dim() int {
	return s.dim
}

// Add stores chunk with a normalized copy of embedding. It returns false without changing
// anything when the chunk ID is already present.
func (s *Store) Add(chunk models.Chunk, embedding []float32) (bool, error) {
	if len(embedding) != s.dim {
		return false, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(embedding), s.dim)
	}
	id := chunk.ChunkID
	if _, ok := s.chunks[id]; ok {
		return false, nil
	}
	chunk.Embedding = nil
	s.chunks[id] = &storedChunk{chunk: chunk, embedding: Normalized(embedding)}
	s.order = append(s.order, id)
	section := chunk.Metadata.SectionPath
	if _, ok := s.sections[section]; !ok {
		s.sectionOrder = append(s.sectionOrder, section)
	}
	s.sections[section] = append(s.sections[section], id)
	s.dirty = true
	return true, nil
}

// AddBatch adds chunks[i] with embeddings[i] in order and reports how many were added and
// how many were skipped as duplicates. On error the counts so far are returned.
func (s *Store) AddBatch(chunks []models.Chunk, embeddings [][]float32) (added, skipped int, err error) {
	if len(chunks) != len(embeddings) {
		return 0, 0, fmt.Errorf("chunks and embeddings length mismatch: %d != %d", len(chunks), len(embeddings))
	}
	for i := range chunks {
		ok, err := s.Add(chunks[i], embeddings[i])
		if err != nil {
			return added, skipped, fmt.Errorf("chunk %s: %w", chunks[i].ChunkID, err)
		}
		if ok {
			added++
		} else {
			skipped++
		}
	}
	return added, skipped, nil
}

// Get returns the chunk with the given ID.
func (s *Store) Get(id string) (models.Chunk, bool) {
	sc, ok := s.chunks[id]
	if !ok {
		return models.Chunk{}, false
	}
	return sc.chunk, true
}

// GetBySection returns the chunks of one section path in insertion order.
func (s *Store) GetBySection(sectionPath string) []models.Chunk {
	ids := s.sections[sectionPath]
	out := make([]models.Chunk, 0, len(ids))
	for _, id := range ids {
		if sc, ok := s.chunks[id]; ok {
			out = append(out, sc.chunk)
		}
	}
	return out
}

// GetAll returns every chunk in insertion order.
func (s *Store) GetAll() []models.Chunk {
	out := make([]models.Chunk, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.chunks[id].chunk)
	}
	return out
}

// GetEmbedding returns the stored (normalized) embedding of a chunk.
func (s *Store) GetEmbedding(id string) ([]float32, bool) {
	sc, ok := s.chunks[id]
	if !ok {
		return nil, false
	}
	return sc.embedding, true
}

// GetVectors returns the Count() x Dim() matrix of stored embeddings, rebuilding it when
// chunks were added since the last call. Callers must not modify it.
func (s *Store) GetVectors() Matrix {
	s.ensureMatrix()
	return *s.matrix
}

// Stale reports whether the next GetVectors call will rebuild the matrix.
func (s *Store) Stale() bool {
	return s.matrix == nil || s.dirty
}

// GetChunkIDs returns chunk IDs in the row order of GetVectors.
func (s *Store) GetChunkIDs() []string {
	s.ensureMatrix()
	return s.chunkIDs
}

// ListSections returns every section path seen, in first-seen order.
func (s *Store) ListSections() []string {
	out := make([]string, len(s.sectionOrder))
	copy(out, s.sectionOrder)
	return out
}

// Count returns the number of stored chunks.
func (s *Store) Count() int {
	return len(s.chunks)
}

// Clear removes all chunks and drops the cached matrix.
func (s *Store) Clear() {
	s.chunks = make(map[string]*storedChunk)
	s.order = nil
	s.sections = make(map[string][]string)
	s.sectionOrder = nil
	s.matrix = nil
	s.chunkIDs = nil
	s.dirty = false
}

func (s *Store) ensureMatrix() {
	if s.matrix != nil && !s.dirty {
		return
	}
	m := &Matrix{Rows: len(s.order), Dim: s.dim, Data: make([]float32, len(s.order)*s.dim)}
	ids := make([]string, len(s.order))
	for i, id := range s.order {
		copy(m.Data[i*s.dim:], s.chunks[id].embedding)
		ids[i] = id
	}
	s.matrix = m
	s.chunkIDs = ids
	s.dirty = false
}
