package indexer

import (
	"strings"

	"github.com/hyperjump/finsum/internal/config"
	"github.com/hyperjump/finsum/internal/models"
	"github.com/hyperjump/finsum/internal/segment"
	"go.uber.org/zap"
)

type sectionEntry struct {
	text  string
	level int
}

// SectionContext tracks the heading hierarchy while walking a block stream.
type SectionContext struct {
	stack []sectionEntry
}

// Push enters a heading at level, leaving every open heading at the same or a deeper level.
// Empty heading text is ignored.
func (s *SectionContext) Push(text string, level int) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	for len(s.stack) > 0 && s.stack[len(s.stack)-1].level >= level {
		s.stack = s.stack[:len(s.stack)-1]
	}
	s.stack = append(s.stack, sectionEntry{text: text, level: level})
}

// Path returns the open headings joined with "/", outermost first.
func (s *SectionContext) Path() string {
	parts := make([]string, len(s.stack))
	for i, e := range s.stack {
		parts[i] = e.text
	}
	return strings.Join(parts, "/")
}

// Depth returns the number of open headings.
func (s *SectionContext) Depth() int {
	return len(s.stack)
}

// Pipeline segments text and chunks every non-heading block under its section path.
type Pipeline struct {
	chunker *TextChunker
	logger  *zap.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineLogger sets a logger for debug output.
func WithPipelineLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a pipeline using a TextChunker bounded by cfg.
func NewPipeline(cfg config.ChunkingConfig, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		chunker: NewTextChunker(cfg),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process segments text and returns its chunks in document order.
// Headings only move the section context; they never produce chunks.
func (p *Pipeline) Process(text, source, company string) []models.Chunk {
	stream := segment.Segment(text, source)
	var (
		chunks  []models.Chunk
		section SectionContext
	)
	for _, b := range stream.Blocks {
		if b.Type == segment.BlockHeading {
			level := b.HeadingLevel
			if level == 0 {
				level = 2
			}
			section.Push(b.HeadingText, level)
			continue
		}
		contentType := models.ContentTypeText
		if b.Type == segment.BlockTable {
			contentType = models.ContentTypeTable
		}
		chunks = append(chunks, p.chunker.chunkAs(b.Content, models.ChunkMetadata{
			Source:      source,
			SectionPath: section.Path(),
			ContentType: contentType,
			Company:     company,
		})...)
	}
	p.logger.Debug("pipeline processed text",
		zap.String("source", source),
		zap.Int("blocks", stream.Len()),
		zap.Int("chunks", len(chunks)))
	return chunks
}
