package domain

import "time"

// TurnRecord is the structured per-turn audit record emitted after every
// pipeline run. It is published to the event bus and persisted out-of-band
// by the audit worker; emission failures never fail the request.
type TurnRecord struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"request_id"`
	SessionID  string    `json:"session_id"`
	PropertyID string    `json:"property_id"`
	CreatedAt  time.Time `json:"created_at"`

	Query           string  `json:"query"`
	NormalizedQuery string  `json:"normalized_query"`
	Topic           string  `json:"topic,omitempty"`
	Outcome         Outcome `json:"outcome"`

	TopScore           float64  `json:"top_score"`
	CandidateCount     int      `json:"candidate_count"`
	EvidenceAdmitted   bool     `json:"evidence_admitted"`
	VerificationIssues []string `json:"verification_issues,omitempty"`

	FinalAnswer string        `json:"final_answer"`
	Sources     []string      `json:"sources,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
}
