package domain

import "time"

// EvidenceRecord is one retrievable unit of indexed source text. Records are
// written by the out-of-band indexing pipeline and are read-only here.
type EvidenceRecord struct {
	ID         string    `json:"id"`
	PropertyID string    `json:"property_id"`
	Category   string    `json:"category"`
	Language   string    `json:"language"`
	SourceURL  string    `json:"source_url"`
	UpdatedAt  time.Time `json:"updated_at"`
	Text       string    `json:"text"`
}

// SearchFilter narrows evidence search to one property and/or category.
type SearchFilter struct {
	PropertyID string
	Category   string
}

// ScoredRecord is what a search backend returns: a record plus the backend's
// own relevance score.
type ScoredRecord struct {
	Record EvidenceRecord
	Score  float64
}

// RetrievalCandidate is the per-request merged view of one evidence record
// across both search backends. FinalScore is derived from the component
// scores by a fixed combination rule and is never negative.
type RetrievalCandidate struct {
	Record EvidenceRecord

	SemanticScore float64
	LexicalScore  float64

	RerankScore float64
	HasRerank   bool

	FinalScore       float64
	KeywordProtected bool
}

// TopScore is the evidence-gate input: the maximum FinalScore across all
// candidates, independent of rerank ordering.
func TopScore(candidates []RetrievalCandidate) float64 {
	top := 0.0
	for _, c := range candidates {
		if c.FinalScore > top {
			top = c.FinalScore
		}
	}
	return top
}

// Answer is the user-facing result of one pipeline run.
type Answer struct {
	Text    string   `json:"text"`
	Score   float64  `json:"score"`
	Sources []string `json:"sources"`

	NeedsClarification   bool     `json:"needs_clarification"`
	ClarificationOptions []string `json:"clarification_options,omitempty"`
	ClarificationType    string   `json:"clarification_type,omitempty"`
	OriginalQuery        string   `json:"original_query,omitempty"`
}
