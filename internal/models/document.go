package models

// SourceDocument is a file discovered under one of the corpus roots.
type SourceDocument struct {
	ID          string `json:"id"`
	Root        string `json:"root"`
	Path        string `json:"path"`
	Fingerprint string `json:"fingerprint"`
	Content     string `json:"-"`
}

// IndexRecord is one chunk of a SourceDocument stored in the knowledge store
type IndexRecord struct {
	ID         string    `json:"id"`
	SourceID   string    `json:"source_id"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	Embedding  []float64 `json:"-"`
}

// ScoredRecord is a query hit with its cosine similarity to the query
type ScoredRecord struct {
	IndexRecord
	Score float64 `json:"score"`
}

// IndexStats summarizes the knowledge store contents
type IndexStats struct {
	Sources    int            `json:"sources"`
	Records    int            `json:"records"`
	Dimensions int            `json:"dimensions"`
	BySource   map[string]int `json:"by_source"`
}
