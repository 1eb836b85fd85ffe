package extract

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// htmlWriter collects block-level text from an HTML tree.
type htmlWriter struct {
	blocks []string
	inline strings.Builder
}

// extractHTML renders an HTML (EDGAR .htm) document as blocks separated by blank lines.
// Block elements end a block, tables become pipe rows, and hidden or non-content elements
// are skipped.
func extractHTML(content []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}
	w := &htmlWriter{}
	root := findElement(doc, "body")
	if root == nil {
		root = doc
	}
	w.walk(root)
	w.flush()
	return strings.Join(w.blocks, "\n\n"), nil
}

func (w *htmlWriter) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.inline.WriteString(n.Data)
		w.inline.WriteByte(' ')
		return
	case html.ElementNode:
		if shouldSkipElement(n) {
			return
		}
		switch n.Data {
		case "table":
			w.flush()
			if rows := tableRows(n); len(rows) > 0 {
				w.blocks = append(w.blocks, strings.Join(rows, "\n"))
			}
			return
		case "br":
			w.flush()
			return
		}
	}
	block := n.Type == html.ElementNode && isBlockElement(n.Data)
	if block {
		w.flush()
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
	if block {
		w.flush()
	}
}

// flush ends the current inline run as a block with collapsed whitespace.
func (w *htmlWriter) flush() {
	text := collapseSpace(w.inline.String())
	w.inline.Reset()
	if text != "" {
		w.blocks = append(w.blocks, text)
	}
}

// tableRows renders each row with at least one non-empty cell. Empty cells are dropped.
func tableRows(table *html.Node) []string {
	var rows []string
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					if text := collapseSpace(textContent(c)); text != "" {
						cells = append(cells, strings.ReplaceAll(text, "|", "/"))
					}
				}
			}
			if len(cells) > 0 {
				rows = append(rows, pipeRow(cells))
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(table)
	return rows
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		if n.Type == html.ElementNode && shouldSkipElement(n) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return b.String()
}

// shouldSkipElement reports elements whose content is never filing text, including the
// hidden inline XBRL header EDGAR documents carry.
func shouldSkipElement(n *html.Node) bool {
	switch n.Data {
	case "head", "script", "style", "noscript", "template", "svg", "math", "iframe", "object", "embed", "ix:header":
		return true
	}
	for _, a := range n.Attr {
		if a.Key == "style" && strings.Contains(strings.ReplaceAll(strings.ToLower(a.Val), " ", ""), "display:none") {
			return true
		}
	}
	return false
}

func isBlockElement(tag string) bool {
	switch tag {
	case "p", "div", "li", "ul", "ol", "h1", "h2", "h3", "h4", "h5", "h6",
		"blockquote", "pre", "article", "section", "header", "footer", "hr", "dd", "dt":
		return true
	}
	return false
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// collapseSpace trims s and replaces whitespace runs (non-breaking spaces included) with one space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
