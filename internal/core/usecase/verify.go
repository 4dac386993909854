package usecase

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/hoteldesk/concierge/internal/config"
	"github.com/hoteldesk/concierge/internal/core/domain"
)

const (
	IssueUngroundedClaim   = "ungrounded_claim"
	IssueNumericMismatch   = "numeric_mismatch"
	IssueUnknownEntity     = "unknown_entity"
	IssueTransitUnverified = "transit_unverified"
	IssueSpeculativePhrase = "speculative_phrase"
	IssueCategoryBleed     = "category_contamination"
	IssueDirectExtraction  = "direct_extraction"
)

var genericClaimPhrases = []string{
	"you're welcome", "happy to help", "enjoy your stay", "feel free",
	"let me know", "please contact", "is there anything else",
}

var transitMarkers = []string{
	"bus ", "line ", "route ", "subway", "train ", "minutes by",
	"take the", "transfer at",
}

var speculativeMarkers = []string{
	"about ", "approximately ", "around ", "roughly ",
}

var refMarkerPattern = regexp.MustCompile(`\[\d+(,\s*\d+)*\]`)

// Verifier checks the composed answer claim by claim against the admitted
// evidence. Flagged claims are removed, not the whole answer; when removal
// guts the answer the verifier falls back to lifting the most relevant
// evidence sentence verbatim.
type Verifier struct {
	catalog config.Catalog
	params  Params
}

func NewVerifier(catalog config.Catalog, params Params) *Verifier {
	return &Verifier{catalog: catalog, params: params.normalize()}
}

func (v *Verifier) Verify(state *domain.PipelineState) {
	evidence := state.EvidenceTexts()

	answer := v.qualityClean(state.ComposedAnswer)

	claims := splitSentences(answer)
	kept := make([]string, 0, len(claims))
	for _, claim := range claims {
		if issue := v.checkClaim(claim, evidence, state); issue != "" {
			state.VerificationIssues = append(state.VerificationIssues, issue)
			continue
		}
		kept = append(kept, claim)
	}

	if len(kept) > 0 {
		state.VerifiedAnswer = strings.Join(kept, " ")
		state.VerificationPassed = true
		return
	}

	if extracted := bestEvidenceSentence(state.NormalizedQuery, evidence); extracted != "" {
		state.VerifiedAnswer = extracted
		state.VerificationPassed = true
		state.VerificationIssues = append(state.VerificationIssues, IssueDirectExtraction)
		return
	}

	state.VerificationPassed = false
}

// qualityClean strips reference markup, forbidden stock phrases, and
// garbled characters. This is textual cleanup, never full rejection.
func (v *Verifier) qualityClean(answer string) string {
	answer = refMarkerPattern.ReplaceAllString(answer, "")

	var b strings.Builder
	for _, r := range answer {
		if r == '\n' || r == '\t' || (!unicode.IsControl(r) && r != unicode.ReplacementChar) {
			b.WriteRune(r)
		}
	}
	answer = b.String()

	sentences := splitSentences(answer)
	kept := make([]string, 0, len(sentences))
	for _, s := range sentences {
		if containsAnyFold(s, v.catalog.ForbiddenPhrases) {
			continue
		}
		kept = append(kept, s)
	}
	return strings.Join(kept, "\n")
}

// checkClaim returns the first issue found in a claim, or "" when the claim
// is supported. Conversational filler is passed through unchecked.
func (v *Verifier) checkClaim(claim string, evidence []string, state *domain.PipelineState) string {
	if containsAnyFold(claim, genericClaimPhrases) {
		return ""
	}

	if issue := v.checkContamination(claim, state); issue != "" {
		return issue
	}

	// Fabricated directions get their own label before the generic numeric
	// check claims them.
	if issue := v.checkTransit(claim, evidence); issue != "" {
		return issue
	}

	match := findEvidenceSpan(claim, evidence)

	claimNumbers := numericTokens(claim)
	if len(claimNumbers) > 0 {
		// Numbers must match the supporting span itself, not just any
		// admitted evidence.
		if match.evidence == "" || !numbersPresent(claimNumbers, match.evidence) {
			return IssueNumericMismatch
		}
	}

	if match.score < v.params.GroundingThreshold {
		return IssueUngroundedClaim
	}

	for _, noun := range properNouns(claim) {
		if !nounKnown(noun, evidence, v.allowList()) {
			return IssueUnknownEntity
		}
	}

	if issue := v.checkSpeculation(claim, evidence); issue != "" {
		return issue
	}

	return ""
}

// checkContamination strips sentences whose vocabulary belongs exclusively
// to a different topic than the conversation's. It only applies to
// follow-ups with an established topic; opening turns are exempt.
func (v *Verifier) checkContamination(claim string, state *domain.PipelineState) string {
	// When the retrieval filter narrowed to a category, that category is
	// the conversation's subject regardless of the inferred topic label.
	category := state.EffectiveCategory
	if category == "" {
		category = state.Topic
	}
	if len(state.History) == 0 || category == "" {
		return ""
	}
	for _, ex := range v.catalog.Exclusive {
		if ex.Category != category {
			continue
		}
		if matchesAnyKeyword(claim, ex.Foreign) && !matchesAnyKeyword(claim, ex.Own) {
			return IssueCategoryBleed
		}
		return ""
	}
	return ""
}

// checkTransit flags fabricated directions: named routes and travel times
// require verbatim support. This hallucination class is frequent enough to
// warrant its own check beyond generic numeric matching.
func (v *Verifier) checkTransit(claim string, evidence []string) string {
	if !containsAnyFold(claim, transitMarkers) {
		return ""
	}

	markerSupported := false
	for _, text := range evidence {
		if containsAnyFold(text, transitMarkers) {
			markerSupported = true
			break
		}
	}
	if !markerSupported {
		return IssueTransitUnverified
	}

	numbers := numericTokens(claim)
	for _, text := range evidence {
		if len(numbers) == 0 || numbersPresent(numbers, text) {
			return ""
		}
	}
	return IssueTransitUnverified
}

// checkSpeculation flags hedged estimates the generator introduced. When
// the evidence itself uses the hedge, the source said it and it passes.
func (v *Verifier) checkSpeculation(claim string, evidence []string) string {
	for _, marker := range speculativeMarkers {
		if !containsFold(claim, marker) {
			continue
		}
		supported := false
		for _, text := range evidence {
			if containsFold(text, marker) {
				supported = true
				break
			}
		}
		if !supported {
			return IssueSpeculativePhrase
		}
	}
	return ""
}

func (v *Verifier) allowList() []string {
	names := make([]string, 0, len(v.catalog.KnownNames)+len(v.catalog.Properties))
	names = append(names, v.catalog.KnownNames...)
	for _, p := range v.catalog.Properties {
		names = append(names, p.Name)
	}
	return names
}
