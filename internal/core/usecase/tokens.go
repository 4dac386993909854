package usecase

import (
	"strings"
	"unicode"
)

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}

func tokenOverlap(query, passage map[string]struct{}) float64 {
	if len(query) == 0 || len(passage) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := passage[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

// numericTokens extracts digit groups keeping internal time and decimal
// separators, so "07:00-10:30" yields "07:00" and "10:30" and "$12.50"
// yields "12.50". Comparison is exact-string; "15:00" and "3pm" are
// deliberately distinct.
func numericTokens(s string) []string {
	out := make([]string, 0, 8)
	runes := []rune(s)

	for i := 0; i < len(runes); i++ {
		if !unicode.IsDigit(runes[i]) {
			continue
		}
		j := i
		for j < len(runes) {
			r := runes[j]
			if unicode.IsDigit(r) {
				j++
				continue
			}
			// Keep ':' and '.' only between digits.
			if (r == ':' || r == '.') && j+1 < len(runes) && unicode.IsDigit(runes[j+1]) {
				j++
				continue
			}
			break
		}
		out = append(out, string(runes[i:j]))
		i = j
	}
	return out
}

// splitSentences breaks text into sentence-level units: lines first, then
// terminal punctuation within each line. Times like "10:30" survive because
// a split requires whitespace after the terminator.
func splitSentences(text string) []string {
	out := make([]string, 0, 8)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		start := 0
		runes := []rune(line)
		for i := 0; i < len(runes); i++ {
			r := runes[i]
			if r != '.' && r != '!' && r != '?' {
				continue
			}
			if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
				continue
			}
			sentence := strings.TrimSpace(string(runes[start : i+1]))
			if sentence != "" {
				out = append(out, sentence)
			}
			start = i + 1
		}
		if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
			out = append(out, rest)
		}
	}
	return out
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// matchesAnyKeyword checks catalog keywords against text. Single-word
// keywords match whole tokens only, so "nearby" never matches "bar";
// multi-word keywords match as substrings.
func matchesAnyKeyword(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	var tokens map[string]struct{}
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if strings.ContainsAny(k, " -") {
			if strings.Contains(lower, k) {
				return true
			}
			continue
		}
		if tokens == nil {
			tokens = toTokenSet(lower)
		}
		if _, ok := tokens[k]; ok {
			return true
		}
	}
	return false
}

func containsAnyFold(haystack string, needles []string) bool {
	lower := strings.ToLower(haystack)
	for _, n := range needles {
		if n != "" && strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
