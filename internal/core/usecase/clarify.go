package usecase

import (
	"fmt"
	"strings"

	"github.com/hoteldesk/concierge/internal/config"
	"github.com/hoteldesk/concierge/internal/core/domain"
)

// DisambiguationGate decides whether the query is too ambiguous to search.
// Judgment always runs over the original user text: a rewritten query can
// contain keywords the user never typed, which causes false positives.
type DisambiguationGate struct {
	catalog config.Catalog
}

func NewDisambiguationGate(catalog config.Catalog) *DisambiguationGate {
	return &DisambiguationGate{catalog: catalog}
}

func (g *DisambiguationGate) Check(state *domain.PipelineState) {
	query := strings.ToLower(strings.TrimSpace(state.OriginalQuery))

	// Loop prevention: when the previous assistant turn was itself a
	// clarification prompt, the current turn is the user's refinement and
	// must go straight to retrieval.
	if last, ok := domain.LastAssistantTurn(state.History); ok && g.isClarificationPrompt(last.Content) {
		return
	}

	if g.checkFacilityMention(state, query) {
		return
	}

	hasSpecificTarget := matchesAnyKeyword(query, g.catalog.SpecificTargets)

	// Context patterns first: they are more specific than the generic
	// keyword groups. A direct trigger or a concrete subject both mean the
	// question is already answerable and goes straight to retrieval.
	for _, cc := range g.catalog.ContextClarifications {
		if !matchesAnyKeyword(query, cc.Keywords) {
			continue
		}
		if hasSpecificTarget || matchesAnyKeyword(query, cc.DirectTriggers) {
			state.DetectedContext = cc.Context
			return
		}
		state.NeedsClarification = true
		state.ClarificationPrompt = cc.Question
		state.ClarificationOptions = cc.Options
		state.ClarificationType = cc.Context
		state.DetectedContext = cc.Context
		return
	}

	if hasSpecificTarget {
		return
	}

	for _, p := range g.catalog.AmbiguousPatterns {
		if !matchesAnyKeyword(query, p.Keywords) {
			continue
		}
		if matchesAnyKeyword(query, p.Excludes) {
			continue
		}
		state.NeedsClarification = true
		state.ClarificationPrompt = p.Question
		state.ClarificationOptions = p.Options
		state.ClarificationType = p.Name
		return
	}
}

func (g *DisambiguationGate) isClarificationPrompt(content string) bool {
	for _, cc := range g.catalog.ContextClarifications {
		if cc.Question != "" && containsFold(content, cc.Question) {
			return true
		}
	}
	for _, p := range g.catalog.AmbiguousPatterns {
		if p.Question != "" && containsFold(content, p.Question) {
			return true
		}
	}
	return false
}

// checkFacilityMention resolves named-facility references. Any matched
// alias names a concrete subject, so the generic ambiguity patterns are
// skipped. A facility at exactly one other property switches the turn to
// that property with a redirect notice; a name shared by several properties
// asks which one. Returns true when an alias matched.
func (g *DisambiguationGate) checkFacilityMention(state *domain.PipelineState, query string) bool {
	var matches []config.FacilityEntry
	for _, f := range g.catalog.Facilities {
		if containsFold(query, f.Alias) {
			matches = append(matches, f)
		}
	}
	if len(matches) == 0 {
		return false
	}

	byProperty := make(map[string]config.FacilityEntry)
	for _, m := range matches {
		byProperty[m.PropertyID] = m
	}

	if _, here := byProperty[state.PropertyID]; here {
		return true
	}

	if len(byProperty) == 1 {
		// Auto-switch: the facility lives at exactly one other property, so
		// retrieval must run against that property or it finds nothing.
		m := matches[0]
		p := g.catalog.PropertyByID(m.PropertyID)
		if p.Name != "" {
			state.RedirectNotice = fmt.Sprintf("%s is located at %s.", m.Facility, p.Name)
			state.PropertyID = m.PropertyID
		}
		return true
	}

	options := make([]string, 0, len(matches))
	seen := make(map[string]struct{})
	for _, m := range matches {
		p := g.catalog.PropertyByID(m.PropertyID)
		if p.Name == "" {
			continue
		}
		if _, dup := seen[p.Name]; dup {
			continue
		}
		seen[p.Name] = struct{}{}
		options = append(options, p.Name)
	}

	state.NeedsClarification = true
	state.ClarificationPrompt = fmt.Sprintf("%s exists at more than one property. Which one do you mean?", matches[0].Facility)
	state.ClarificationOptions = options
	state.ClarificationType = "facility_property"
	return true
}
