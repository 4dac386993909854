package usecase

import (
	"fmt"
	"strings"

	"github.com/hoteldesk/concierge/internal/config"
	"github.com/hoteldesk/concierge/internal/core/domain"
)

const (
	PolicyRulePersonalInfo = "personal_info"
	PolicyRulePayment      = "payment"
)

// PolicyFilter is the unconditional outer guard: the query-side check runs
// before any other stage and overrides everything upstream, and the
// answer-side check runs on every substantive answer.
type PolicyFilter struct {
	catalog config.Catalog
}

func NewPolicyFilter(catalog config.Catalog) *PolicyFilter {
	return &PolicyFilter{catalog: catalog}
}

// CheckQuery classifies forbidden solicitations in the raw user query.
// Empty means allowed.
func (f *PolicyFilter) CheckQuery(query string) string {
	if containsAnyFold(query, f.catalog.Forbidden.PersonalInfo) {
		return PolicyRulePersonalInfo
	}
	if containsAnyFold(query, f.catalog.Forbidden.Payment) {
		return PolicyRulePayment
	}
	return ""
}

// BlockText renders the redirect template for a blocked rule.
func (f *PolicyFilter) BlockText(rule, propertyID string) string {
	contact := f.catalog.ContactLine(propertyID)
	switch rule {
	case PolicyRulePayment:
		return fmt.Sprintf(f.catalog.Templates.PaymentRedirect, contact)
	default:
		return fmt.Sprintf(f.catalog.Templates.PersonalInfoBlock, contact)
	}
}

// Finalize applies the answer-side check and appends source attribution.
// Sources are never appended to a refusal, which carries an official
// contact pointer instead.
func (f *PolicyFilter) Finalize(state *domain.PipelineState) {
	answer := strings.TrimSpace(state.VerifiedAnswer)

	if rule := f.answerRule(answer); rule != "" {
		state.FinalAnswer = f.BlockText(rule, state.PropertyID)
		state.PolicyReason = rule
		state.Outcome = domain.OutcomePolicyBlock
		return
	}

	if len(state.UsedSources) > 0 {
		var b strings.Builder
		b.WriteString(answer)
		b.WriteString("\n\nSources:")
		for _, url := range state.UsedSources {
			b.WriteString("\n- ")
			b.WriteString(url)
		}
		answer = b.String()
	}

	state.FinalAnswer = answer
	state.Outcome = domain.OutcomeAnswered
}

func (f *PolicyFilter) answerRule(answer string) string {
	if containsAnyFold(answer, f.catalog.Forbidden.PersonalInfo) {
		return PolicyRulePersonalInfo
	}
	if containsAnyFold(answer, f.catalog.Forbidden.Payment) {
		return PolicyRulePayment
	}
	return ""
}
