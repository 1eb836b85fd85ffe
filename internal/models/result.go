package models

// RetrievedChunk is a chunk paired with its relevance score for one query.
type RetrievedChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Query     string           `json:"query"`
	Results   []RetrievedChunk `json:"results"`
	Reranked  bool             `json:"reranked"`
	QueryTime int64            `json:"query_time_ms"`
}

// SummaryResponse is the response for a summarize request.
type SummaryResponse struct {
	Ticker    string           `json:"ticker"`
	Item      string           `json:"item"`
	Query     string           `json:"query"`
	Summary   string           `json:"summary"`
	Sources   []RetrievedChunk `json:"sources,omitempty"`
	QueryTime int64            `json:"query_time_ms"`
}
