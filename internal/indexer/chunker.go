// Package indexer turns filing section text into chunks and loads them into the vector store.
package indexer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperjump/finsum/internal/config"
	"github.com/hyperjump/finsum/internal/models"
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// TextChunker splits block content into chunks of at most MaxChunkChars characters.
// It tries, in order: the whole block, paragraph packing, sentence packing with a
// one-sentence overlap, and finally word packing.
type TextChunker struct {
	maxChars int
	minChars int
}

// NewTextChunker creates a chunker bounded by cfg. Lengths are counted in characters (runes).
func NewTextChunker(cfg config.ChunkingConfig) *TextChunker {
	return &TextChunker{
		maxChars: cfg.MaxChunkChars,
		minChars: cfg.MinChunkChars,
	}
}

// Chunk splits content into text chunks. Pieces shorter than the minimum are dropped.
func (c *TextChunker) Chunk(content, source, sectionPath, company string) []models.Chunk {
	return c.chunkAs(content, models.ChunkMetadata{
		Source:      source,
		SectionPath: sectionPath,
		ContentType: models.ContentTypeText,
		Company:     company,
	})
}

func (c *TextChunker) chunkAs(content string, meta models.ChunkMetadata) []models.Chunk {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	var pieces []string
	if runeLen(content) <= c.maxChars {
		pieces = []string{content}
	} else {
		pieces = c.splitParagraphs(content)
	}
	var chunks []models.Chunk
	for _, p := range pieces {
		if runeLen(p) < c.minChars {
			continue
		}
		chunks = append(chunks, models.NewChunk(p, meta))
	}
	return chunks
}

// splitParagraphs packs blank-line separated paragraphs into pieces. A paragraph that is
// too large on its own is flushed through splitSentences.
func (c *TextChunker) splitParagraphs(text string) []string {
	var out []string
	current := ""
	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if runeLen(para) > c.maxChars {
			if current != "" {
				out = append(out, current)
				current = ""
			}
			out = append(out, c.splitSentences(para)...)
			continue
		}
		if runeLen(current)+runeLen(para)+2 <= c.maxChars {
			if current != "" {
				current += "\n\n"
			}
			current += para
			continue
		}
		if current != "" {
			out = append(out, current)
		}
		current = para
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

// splitSentences packs sentences into pieces. When a piece is full, the next piece starts
// with the previous sentence if both fit together.
func (c *TextChunker) splitSentences(text string) []string {
	sentences := sentences(text)
	if len(sentences) == 0 {
		return nil
	}
	var out []string
	current, last := "", ""
	for _, s := range sentences {
		if runeLen(s) > c.maxChars {
			if current != "" {
				out = append(out, current)
				current = ""
			}
			last = ""
			out = append(out, c.splitWords(s)...)
			continue
		}
		candidate := s
		if current != "" {
			candidate = current + " " + s
		}
		if runeLen(candidate) <= c.maxChars {
			current = candidate
			last = s
			continue
		}
		if current != "" {
			out = append(out, current)
		}
		if last != "" && runeLen(last)+runeLen(s)+1 <= c.maxChars {
			current = last + " " + s
		} else {
			current = s
		}
		last = s
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

// splitWords packs whitespace-separated words. A single word longer than the maximum is cut.
func (c *TextChunker) splitWords(text string) []string {
	var out []string
	current := ""
	for _, w := range strings.Fields(text) {
		candidate := w
		if current != "" {
			candidate = current + " " + w
		}
		if runeLen(candidate) <= c.maxChars {
			current = candidate
			continue
		}
		if current != "" {
			out = append(out, current)
		}
		current = truncateRunes(w, c.maxChars)
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

// sentences splits text after '.', '!' or '?' when followed by whitespace.
// The whitespace run between sentences is dropped.
func sentences(text string) []string {
	var out []string
	start := 0
	var prev rune
	for i, r := range text {
		if unicode.IsSpace(r) && (prev == '.' || prev == '!' || prev == '?') {
			if s := strings.TrimSpace(text[start:i]); s != "" {
				out = append(out, s)
			}
			start = i
		}
		prev = r
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func truncateRunes(s string, n int) string {
	if runeLen(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
