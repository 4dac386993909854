package usecase

import (
	"sort"
	"strings"
	"unicode"

	"github.com/hoteldesk/concierge/internal/config"
	"github.com/hoteldesk/concierge/internal/core/domain"
)

// Normalizer resolves follow-up queries into self-contained form and labels
// them with a topic and category. It never fails: when a reference cannot be
// resolved the original query passes through unchanged.
type Normalizer struct {
	catalog config.Catalog
	params  Params
}

func NewNormalizer(catalog config.Catalog, params Params) *Normalizer {
	return &Normalizer{catalog: catalog, params: params.normalize()}
}

var followUpLeads = []string{
	"what about", "how about", "and ", "also ", "then ", "what time",
	"when ", "how much", "is it", "does it", "can i still", "until when",
}

func (n *Normalizer) Normalize(state *domain.PipelineState) {
	trimmed := strings.TrimSpace(state.OriginalQuery)
	state.ValidQuery = isUsableQuery(trimmed, n.params.MinQueryChars)
	if !state.ValidQuery {
		return
	}

	lower := strings.ToLower(trimmed)
	state.NormalizedQuery = lower

	currentTopic := n.topicOf(lower)
	switch {
	case currentTopic != "":
		state.Topic = currentTopic
	case state.CarriedTopic != "":
		state.Topic = state.CarriedTopic
	default:
		state.Topic = n.topicFromHistory(state.History)
	}

	// A query that names its own topic is a topic switch, not a follow-up;
	// rewriting it with the previous subject would corrupt intent.
	topicSwitch := currentTopic != "" && state.CarriedTopic != "" && currentTopic != state.CarriedTopic
	if topicSwitch {
		state.CarriedChunks = nil
		state.CarriedTopic = ""
	}

	if !topicSwitch && n.isFollowUp(state, currentTopic) {
		if subject := n.followUpSubject(state); subject != "" {
			state.RewrittenQuery = subject + " " + lower
			state.NormalizedQuery = state.RewrittenQuery
		} else {
			state.RewriteFailed = true
		}
	}

	state.SearchQuery = n.buildSearchQuery(state.NormalizedQuery)

	state.Category = n.categoryOf(state.NormalizedQuery)
	if state.Category == "" {
		state.Category = state.Topic
	}
}

func isUsableQuery(q string, minChars int) bool {
	if len([]rune(q)) < minChars {
		return false
	}
	for _, r := range q {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func (n *Normalizer) topicOf(query string) string {
	for _, t := range n.catalog.Topics {
		if matchesAnyKeyword(query, t.Keywords) {
			return t.Topic
		}
	}
	return ""
}

func (n *Normalizer) categoryOf(query string) string {
	for _, c := range n.catalog.Categories {
		if matchesAnyKeyword(query, c.Keywords) {
			return c.Category
		}
	}
	return ""
}

func (n *Normalizer) topicFromHistory(history []domain.ConversationTurn) string {
	for _, turn := range domain.LastUserTurns(history, n.params.HistoryWindow) {
		if topic := n.topicOf(strings.ToLower(turn.Content)); topic != "" {
			return topic
		}
	}
	return ""
}

// isFollowUp is deliberately conservative: an elliptical query is one with
// no topic vocabulary of its own, in a session that has prior turns.
func (n *Normalizer) isFollowUp(state *domain.PipelineState, currentTopic string) bool {
	if len(state.History) == 0 {
		return false
	}
	if currentTopic != "" {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(state.OriginalQuery))
	if len(splitAlphaNumLower(lower)) <= 5 {
		return true
	}
	for _, lead := range followUpLeads {
		if strings.HasPrefix(lower, lead) {
			return true
		}
	}
	return false
}

// followUpSubject picks the substituted subject from the carried topic or
// from the most recent user turn that names one. Assistant turns are
// excluded so the system's own phrasing never feeds topic inference.
func (n *Normalizer) followUpSubject(state *domain.PipelineState) string {
	if state.CarriedTopic != "" {
		return state.CarriedTopic
	}
	for _, turn := range domain.LastUserTurns(state.History, n.params.HistoryWindow) {
		if topic := n.topicOf(strings.ToLower(turn.Content)); topic != "" {
			return topic
		}
	}
	return ""
}

// buildSearchQuery strips property names, which bias embeddings toward one
// document cluster, and appends synonym expansions for lexical recall.
func (n *Normalizer) buildSearchQuery(query string) string {
	out := query
	for _, p := range n.catalog.Properties {
		for _, alias := range p.Aliases {
			out = removeFold(out, alias)
		}
		out = removeFold(out, p.Name)
	}
	out = strings.Join(strings.Fields(out), " ")
	if out == "" {
		out = query
	}

	terms := make([]string, 0, len(n.catalog.Synonyms))
	for term := range n.catalog.Synonyms {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	var expansions []string
	for _, term := range terms {
		if containsFold(out, term) {
			expansions = append(expansions, n.catalog.Synonyms[term]...)
		}
	}
	if len(expansions) > 0 {
		out = out + " " + strings.Join(expansions, " ")
	}
	return out
}

func removeFold(s, sub string) string {
	if sub == "" {
		return s
	}
	lower := strings.ToLower(s)
	lowerSub := strings.ToLower(sub)
	for {
		i := strings.Index(lower, lowerSub)
		if i < 0 {
			return s
		}
		s = s[:i] + s[i+len(sub):]
		lower = lower[:i] + lower[i+len(sub):]
	}
}
