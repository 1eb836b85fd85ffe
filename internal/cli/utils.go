// Package cli renders finsum results for the terminal or as JSON.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/finsum/internal/indexer"
	"github.com/hyperjump/finsum/internal/models"
	"github.com/hyperjump/finsum/internal/search"
	"github.com/hyperjump/finsum/internal/storage"
	"github.com/hyperjump/finsum/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const (
	snippetChars = 240
	rule         = "─────────────────────────────────────────────────────────"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	label := "results"
	if response.Reranked {
		label = "results (reranked)"
	}
	fmt.Fprintf(w, "\nFound %d %s in %dms\n\n", len(response.Results), label, response.QueryTime)
	for i, r := range response.Results {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "#%d | Score: %.4f | %s\n", i+1, r.Score, r.Chunk.Metadata.SectionPath)
		fmt.Fprintf(w, "ID: %s\n", r.Chunk.ChunkID)
		fmt.Fprintf(w, "\n%s\n\n", search.Snippet(r.Chunk.Content, response.Query, snippetChars))
	}
	return nil
}

// WriteChunks writes chunks to w, grouped under their section path in text mode.
func WriteChunks(w io.Writer, chunks []models.Chunk, format OutputFormat) error {
	if format == OutputJSON {
		if chunks == nil {
			chunks = []models.Chunk{}
		}
		return writeJSON(w, chunks)
	}
	fmt.Fprintf(w, "%d chunks\n", len(chunks))
	path := ""
	for i, c := range chunks {
		if i == 0 || c.Metadata.SectionPath != path {
			path = c.Metadata.SectionPath
			fmt.Fprintf(w, "\n== %s ==\n", path)
		}
		fmt.Fprintf(w, "[%d] %s, %d chars: %s\n", i+1, c.Metadata.ContentType, len([]rune(c.Content)),
			utils.Truncate(strings.Join(strings.Fields(c.Content), " "), 80))
	}
	return nil
}

// WriteSummary writes a generated summary and its sources.
func WriteSummary(w io.Writer, resp *models.SummaryResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "%s %s: %s\n\n%s\n", resp.Ticker, strings.ToUpper(resp.Item), resp.Query, resp.Summary)
	if len(resp.Sources) > 0 {
		fmt.Fprintf(w, "\nSources (%d passages, %dms):\n", len(resp.Sources), resp.QueryTime)
		for i, r := range resp.Sources {
			fmt.Fprintf(w, "  %d. [%.3f] %s: %s\n", i+1, r.Score, r.Chunk.Metadata.SectionPath,
				utils.Truncate(strings.Join(strings.Fields(r.Chunk.Content), " "), 60))
		}
	}
	return nil
}

// WriteSections writes stored section summaries.
func WriteSections(w io.Writer, infos []storage.SectionInfo, format OutputFormat) error {
	if format == OutputJSON {
		if infos == nil {
			infos = []storage.SectionInfo{}
		}
		return writeJSON(w, infos)
	}
	if len(infos) == 0 {
		fmt.Fprintln(w, "No sections stored.")
		return nil
	}
	for _, s := range infos {
		fmt.Fprintf(w, "%-6s %-7s %-45s %8d chars %7d words\n",
			s.Ticker, s.Item, utils.Truncate(s.Title, 42), s.CharCount, s.WordCount)
	}
	return nil
}

// WriteImportResult writes the outcome of indexing one section.
func WriteImportResult(w io.Writer, res *indexer.Result, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "%s: %d chunks (%d added, %d already present) run %s\n",
		res.Source, res.Chunks, res.Added, res.Skipped, res.RunID)
	return nil
}
