// Package extract turns filing documents into plain text the segmenter understands: blocks
// separated by blank lines and tables as pipe-delimited rows.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SupportedExtensions lists the extensions with a dedicated extractor.
var SupportedExtensions = []string{".txt", ".md", ".htm", ".html", ".pdf", ".docx", ".xlsx"}

// Extractor extracts plain text from filing files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content.
// Returns an error if the file cannot be read or parsed.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".htm"). Unknown extensions are read as plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".htm", ".html":
		return extractHTML(content)
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".xlsx":
		return extractExcel(content)
	default:
		return extractPlain(content)
	}
}

// pipeRow renders cells as a pipe-delimited table row.
func pipeRow(cells []string) string {
	return "| " + strings.Join(cells, " | ") + " |"
}
