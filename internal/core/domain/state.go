package domain

// Outcome classifies how a pipeline run terminated.
type Outcome string

const (
	OutcomeAnswered      Outcome = "answered"
	OutcomeClarification Outcome = "clarification"
	OutcomeRefusal       Outcome = "refusal"
	OutcomePolicyBlock   Outcome = "policy_block"
)

// PipelineState is the per-request working state threaded through every
// stage. It is created at request start, mutated by stages in sequence, and
// discarded when the request completes. Once NeedsClarification or a failed
// evidence gate sets FinalAnswer, downstream stages must not overwrite it.
type PipelineState struct {
	// Input.
	OriginalQuery string
	PropertyID    string
	History       []ConversationTurn

	// Context carried over from the previous answered turn in the same
	// session. CarriedChunks seed retrieval on follow-ups about the same
	// topic.
	CarriedTopic  string
	CarriedChunks []EvidenceRecord

	// Normalizer output.
	RewrittenQuery  string
	NormalizedQuery string
	SearchQuery     string
	Topic           string
	Category        string
	ValidQuery      bool
	RewriteFailed   bool

	// Disambiguation output.
	NeedsClarification   bool
	ClarificationPrompt  string
	ClarificationOptions []string
	ClarificationType    string
	DetectedContext      string
	RedirectNotice       string

	// Retrieval output.
	Candidates        []RetrievalCandidate
	TopScore          float64
	EffectiveCategory string
	RerankQuality     string

	// Evidence gate output.
	EvidenceAdmitted bool
	EvidenceReason   string

	// Composer output.
	ComposedAnswer string
	UsedSources    []string

	// Verifier output.
	VerifiedAnswer     string
	VerificationPassed bool
	VerificationIssues []string

	// Policy filter output.
	FinalAnswer  string
	PolicyReason string
	Outcome      Outcome
}

// EvidenceTexts resolves the admitted candidates to their raw texts, in
// candidate order.
func (s *PipelineState) EvidenceTexts() []string {
	texts := make([]string, 0, len(s.Candidates))
	for _, c := range s.Candidates {
		texts = append(texts, c.Record.Text)
	}
	return texts
}
