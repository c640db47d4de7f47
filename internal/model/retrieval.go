package model

// RetrievedDocument is one passage returned by a vector search. Source and
// Metadata are populated on the knowledge path; Timestamp and ReportType on
// the profile path. Score is the raw inner-product similarity and is never
// overwritten; RerankScore is set only when a reranking pass ran.
type RetrievedDocument struct {
	Text        string   `json:"text"`
	Source      string   `json:"source,omitempty"`
	Metadata    string   `json:"metadata,omitempty"`
	Timestamp   string   `json:"timestamp,omitempty"`
	ReportType  string   `json:"report_type,omitempty"`
	Score       float64  `json:"score"`
	RerankScore *float64 `json:"rerank_score,omitempty"`
}

// RetrievalResult holds the two retrieval paths as distinct ranked lists.
// They answer different questions (general medical knowledge vs. this user's
// history) and are never interleaved.
type RetrievalResult struct {
	Knowledge []RetrievedDocument `json:"knowledge"`
	Profile   []RetrievedDocument `json:"profile"`
}
