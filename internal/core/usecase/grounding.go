package usecase

import (
	"strings"
	"unicode"
)

// spanMatch is the result of locating a claim in the admitted evidence.
type spanMatch struct {
	score    float64
	evidence string
}

// findEvidenceSpan locates the evidence text that best supports a claim.
// An exact substring match scores 1; otherwise the score is token overlap,
// with a bonus when every numeric token in the claim appears verbatim in
// that evidence. Numeric agreement is weighted because fabricated numbers
// are the most damaging hallucination class.
func findEvidenceSpan(claim string, evidence []string) spanMatch {
	claimTokens := toTokenSet(claim)
	claimNumbers := numericTokens(claim)

	best := spanMatch{}
	for _, text := range evidence {
		if text == "" {
			continue
		}
		score := 0.0
		if containsFold(text, claim) {
			score = 1.0
		} else {
			score = tokenOverlap(claimTokens, toTokenSet(text))
			if len(claimNumbers) > 0 && numbersPresent(claimNumbers, text) {
				score += 0.3
			}
		}
		if score > best.score {
			best = spanMatch{score: score, evidence: text}
		}
	}
	return best
}

// numbersPresent reports whether every numeric token occurs verbatim in the
// text. "15:00" never matches "3pm": comparison is exact-string.
func numbersPresent(numbers []string, text string) bool {
	textNumbers := numericTokens(text)
	set := make(map[string]struct{}, len(textNumbers))
	for _, n := range textNumbers {
		set[n] = struct{}{}
	}
	for _, n := range numbers {
		if _, ok := set[n]; !ok {
			return false
		}
	}
	return true
}

// properNouns extracts capitalized word runs, skipping the sentence-initial
// word, single letters, and runs that start with a common function word.
func properNouns(sentence string) []string {
	words := strings.Fields(sentence)
	out := make([]string, 0, 4)

	var run []string
	flush := func() {
		if len(run) > 0 {
			out = append(out, strings.Join(run, " "))
			run = nil
		}
	}

	for i, w := range words {
		cleaned := strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if cleaned == "" {
			flush()
			continue
		}
		first := []rune(cleaned)[0]
		if i == 0 || !unicode.IsUpper(first) || len([]rune(cleaned)) < 2 {
			flush()
			continue
		}
		if isFunctionWord(strings.ToLower(cleaned)) && len(run) == 0 {
			continue
		}
		run = append(run, cleaned)
	}
	flush()
	return out
}

func isFunctionWord(w string) bool {
	switch w {
	case "the", "a", "an", "our", "your", "it", "its", "i", "we", "you",
		"is", "are", "was", "for", "at", "in", "on", "to", "and", "or",
		"please", "yes", "no":
		return true
	}
	return false
}

// nounKnown reports whether a proper noun is supported by evidence or the
// catalog allow-list. Matching is per-word so "Anchor Grill" is covered by
// "The Anchor Grill".
func nounKnown(noun string, evidence []string, allowList []string) bool {
	for _, text := range evidence {
		if containsFold(text, noun) {
			return true
		}
	}
	for _, known := range allowList {
		if containsFold(known, noun) || containsFold(noun, known) {
			return true
		}
	}
	return false
}

// bestEvidenceSentence is the direct-extraction fallback: the evidence
// sentence with the highest token overlap against the query, verbatim.
func bestEvidenceSentence(query string, evidence []string) string {
	queryTokens := toTokenSet(query)

	best := ""
	bestScore := 0.0
	for _, text := range evidence {
		for _, sentence := range splitSentences(text) {
			score := tokenOverlap(queryTokens, toTokenSet(sentence))
			if score > bestScore {
				best = sentence
				bestScore = score
			}
		}
	}
	return best
}
