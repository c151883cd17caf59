package models

// SearchQuery describes one retrieval request against the vector index
type SearchQuery struct {
	Text     string   `json:"text"`
	TopK     int      `json:"top_k,omitempty"`     // 0 means use configured default
	MinScore *float64 `json:"min_score,omitempty"` // nil means no threshold (-1 is a legal cosine score)
}

// ScoredEntry pairs an index entry with its cosine similarity to the query
type ScoredEntry struct {
	Entry IndexEntry `json:"entry"`
	Score float64    `json:"score"`
}

// SearchResult holds ranked retrieval output for a single query, ordered by
// descending score with deterministic tie-breaking.
type SearchResult struct {
	Query   string        `json:"query"`
	Entries []ScoredEntry `json:"entries"`
}

// IndexStats summarizes the vector index contents
type IndexStats struct {
	Documents int `json:"documents"`
	Entries   int `json:"entries"`
	Dimension int `json:"dimension"`
}
