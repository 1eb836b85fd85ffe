package models

import "fmt"

// SearchRequest is a query against the chunks currently held in memory.
type SearchRequest struct {
	Query    string   `json:"query"`
	Sections []string `json:"sections,omitempty"`
	TopK     int      `json:"top_k,omitempty"`
	MinScore *float64 `json:"min_score,omitempty"`
	Rerank   bool     `json:"rerank,omitempty"`
}

// Validate ensures the request has a query and caps TopK.
func (q *SearchRequest) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.TopK < 0 {
		q.TopK = 0
	}
	if q.TopK > 100 {
		q.TopK = 100
	}
	return nil
}

// SummarizeRequest asks for a generated answer over one filing section.
type SummarizeRequest struct {
	Ticker string `json:"ticker"`
	Item   string `json:"item"`
	Query  string `json:"query"`
	TopK   int    `json:"top_k,omitempty"`
}

// Validate checks required fields and normalizes the item key.
func (r *SummarizeRequest) Validate() error {
	if r.Ticker == "" {
		return fmt.Errorf("ticker is required")
	}
	if r.Item == "" {
		return fmt.Errorf("item is required (e.g. '1a', '7')")
	}
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	r.Item = NormalizeItem(r.Item)
	return nil
}

// SectionInput is the body for importing a filing section.
type SectionInput struct {
	Ticker  string `json:"ticker"`
	Item    string `json:"item"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// Validate checks required fields, normalizes the item key and fills a default title.
func (in *SectionInput) Validate() error {
	if in.Ticker == "" {
		return fmt.Errorf("ticker is required")
	}
	if in.Item == "" {
		return fmt.Errorf("item is required")
	}
	if in.Content == "" {
		return fmt.Errorf("content cannot be empty")
	}
	in.Item = NormalizeItem(in.Item)
	if in.Title == "" {
		in.Title = ItemTitle(in.Item)
	}
	return nil
}
