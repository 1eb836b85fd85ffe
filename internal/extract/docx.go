package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	stdhtml "html"
	"io"
	"regexp"
	"strings"
)

const (
	docxDocumentXMLPath = "word/document.xml"
	contentTypesPath    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	// wtTag matches <w:t>text</w:t> or <w:t xml:space="preserve">text</w:t>.
	wtTag = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	// docxBlock matches a whole table or a paragraph, whichever starts first.
	docxBlock = regexp.MustCompile(`(?s)<w:tbl\b[^>]*>.*?</w:tbl>|<w:p(?:\s[^>]*[^/])?>.*?</w:p>`)
	docxRow   = regexp.MustCompile(`(?s)<w:tr\b[^>]*>.*?</w:tr>`)
	docxCell  = regexp.MustCompile(`(?s)<w:tc\b[^>]*>.*?</w:tc>`)

	// partNameRe and partNameRe2 find the main document part in either attribute order.
	partNameRe  = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
)

// readZipFile returns the content of name inside zr, or nil when absent.
func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, nil
}

// findDocxMainDocumentPath finds the main document path from [Content_Types].xml,
// without the leading slash. Returns "" when not declared.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	data, err := readZipFile(zr, contentTypesPath)
	if err != nil || data == nil {
		return ""
	}
	content := string(data)
	if m := partNameRe.FindStringSubmatch(content); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	if m := partNameRe2.FindStringSubmatch(content); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	return ""
}

// extractDOCX extracts text from .docx bytes. Each paragraph becomes a block and each
// table a set of pipe rows. lu4p/cat is not used because its paragraph regex misses
// <w:p> elements with attributes, which real documents always have.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}
	docPath := findDocxMainDocumentPath(zr)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}
	docXML, err := readZipFile(zr, docPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	if docXML == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", docPath)
	}

	var blocks []string
	for _, block := range docxBlock.FindAllString(string(docXML), -1) {
		if strings.HasPrefix(block, "<w:tbl") {
			var rows []string
			for _, row := range docxRow.FindAllString(block, -1) {
				var cells []string
				for _, cell := range docxCell.FindAllString(row, -1) {
					if text := runText(cell); text != "" {
						cells = append(cells, strings.ReplaceAll(text, "|", "/"))
					}
				}
				if len(cells) > 0 {
					rows = append(rows, pipeRow(cells))
				}
			}
			if len(rows) > 0 {
				blocks = append(blocks, strings.Join(rows, "\n"))
			}
			continue
		}
		if text := runText(block); text != "" {
			blocks = append(blocks, text)
		}
	}
	return strings.Join(blocks, "\n\n"), nil
}

// runText concatenates the <w:t> runs in fragment and unescapes XML entities.
func runText(fragment string) string {
	var b strings.Builder
	for _, m := range wtTag.FindAllStringSubmatch(fragment, -1) {
		b.WriteString(m[1])
	}
	return collapseSpace(stdhtml.UnescapeString(b.String()))
}
