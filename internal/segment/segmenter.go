// Package segment classifies raw filing text into typed blocks (heading, table, text)
// before any chunking happens.
package segment

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// BlockType is the kind of a Block.
type BlockType string

const (
	BlockHeading BlockType = "heading"
	BlockText    BlockType = "text"
	BlockTable   BlockType = "table"
)

const (
	maxHeadingChars = 100
	maxHeadingWords = 5
)

var tableSeparatorCell = regexp.MustCompile(`^:?-{2,}:?$`)

// Block is a contiguous typed span of source lines. StartLine and EndLine are 0-based line indexes.
// HeadingLevel and HeadingText are only set for headings.
type Block struct {
	Type         BlockType `json:"type"`
	Content      string    `json:"content"`
	StartLine    int       `json:"start_line"`
	EndLine      int       `json:"end_line"`
	HeadingLevel int       `json:"heading_level,omitempty"`
	HeadingText  string    `json:"heading_text,omitempty"`
}

// CharCount returns the number of characters in the block content.
func (b Block) CharCount() int {
	return utf8.RuneCountInString(b.Content)
}

// Stream is the ordered sequence of blocks for one document.
type Stream struct {
	Source string
	Blocks []Block
}

// Add appends b after trimming its content. Empty blocks are dropped.
func (s *Stream) Add(b Block) {
	b.Content = strings.TrimSpace(b.Content)
	if b.Content == "" {
		return
	}
	s.Blocks = append(s.Blocks, b)
}

// Len returns the number of blocks.
func (s *Stream) Len() int {
	return len(s.Blocks)
}

// Headings returns the heading blocks in order.
func (s *Stream) Headings() []Block { return s.filter(BlockHeading) }

// Tables returns the table blocks in order.
func (s *Stream) Tables() []Block { return s.filter(BlockTable) }

// TextBlocks returns the text blocks in order.
func (s *Stream) TextBlocks() []Block { return s.filter(BlockText) }

func (s *Stream) filter(t BlockType) []Block {
	var out []Block
	for _, b := range s.Blocks {
		if b.Type == t {
			out = append(out, b)
		}
	}
	return out
}

// Segment splits text into typed blocks in a single left-to-right pass over its lines.
// Blank lines only separate blocks. Whitespace-only input yields an empty stream.
func Segment(text, source string) *Stream {
	stream := &Stream{Source: source}
	if strings.TrimSpace(text) == "" {
		return stream
	}
	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); {
		stripped := strings.TrimSpace(lines[i])
		switch {
		case stripped == "":
			i++
		case IsTableLine(stripped):
			end := i
			for end < len(lines) && IsTableLine(lines[end]) {
				end++
			}
			stream.Add(Block{
				Type:      BlockTable,
				Content:   strings.Join(lines[i:end], "\n"),
				StartLine: i,
				EndLine:   end - 1,
			})
			i = end
		case isHeadingLine(lines, i):
			stream.Add(Block{
				Type:         BlockHeading,
				Content:      stripped,
				StartLine:    i,
				EndLine:      i,
				HeadingLevel: HeadingLevel(stripped),
				HeadingText:  stripped,
			})
			i++
		default:
			end := i + 1
			for end < len(lines) {
				next := strings.TrimSpace(lines[end])
				if IsTableLine(next) || (next != "" && isHeadingLine(lines, end)) {
					break
				}
				end++
			}
			stream.Add(Block{
				Type:      BlockText,
				Content:   strings.Join(lines[i:end], "\n"),
				StartLine: i,
				EndLine:   end - 1,
			})
			i = end
		}
	}
	return stream
}

// isHeadingLine reports whether lines[idx] is short enough to be a heading and is isolated
// by blank lines (or the document edges) on both sides.
func isHeadingLine(lines []string, idx int) bool {
	line := strings.TrimSpace(lines[idx])
	if utf8.RuneCountInString(line) > maxHeadingChars {
		return false
	}
	words := len(strings.Fields(line))
	if words == 0 || words > maxHeadingWords {
		return false
	}
	if IsTableLine(line) {
		return false
	}
	blankBefore := idx == 0 || strings.TrimSpace(lines[idx-1]) == ""
	blankAfter := idx == len(lines)-1 || strings.TrimSpace(lines[idx+1]) == ""
	return blankBefore && blankAfter
}

// HeadingLevel estimates the nesting level of a heading from its text:
// "ITEM ..." is 1, a single word is 3, anything else is 2.
func HeadingLevel(text string) int {
	if strings.HasPrefix(strings.ToUpper(text), "ITEM ") {
		return 1
	}
	if len(strings.Fields(text)) == 1 {
		return 3
	}
	return 2
}

// IsTableLine reports whether line looks like a row of a pipe-delimited (Markdown) table.
func IsTableLine(line string) bool {
	stripped := strings.TrimSpace(line)
	if stripped == "" || !strings.Contains(stripped, "|") {
		return false
	}
	cells := strings.Split(stripped, "|")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	if len(cells) > 0 && cells[0] == "" {
		cells = cells[1:]
	}
	if len(cells) > 0 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}
	if len(cells) < 2 {
		return false
	}
	separator := true
	hasContent := false
	for _, c := range cells {
		if c == "" {
			continue
		}
		hasContent = true
		if !tableSeparatorCell.MatchString(c) {
			separator = false
		}
	}
	return separator || hasContent
}
