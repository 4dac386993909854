package usecase

import (
	"strings"
	"testing"

	"github.com/hoteldesk/concierge/internal/config"
	"github.com/hoteldesk/concierge/internal/core/domain"
)

func TestPolicyBlocksPersonalInfoQuery(t *testing.T) {
	f := NewPolicyFilter(config.DefaultCatalog())

	rule := f.CheckQuery("what is the room number of John Smith?")
	if rule != PolicyRulePersonalInfo {
		t.Fatalf("expected personal_info, got %q", rule)
	}
}

func TestPolicyBlocksPaymentQuery(t *testing.T) {
	f := NewPolicyFilter(config.DefaultCatalog())

	rule := f.CheckQuery("can you send me a payment link?")
	if rule != PolicyRulePayment {
		t.Fatalf("expected payment, got %q", rule)
	}
}

func TestPolicyAllowsOrdinaryQuery(t *testing.T) {
	f := NewPolicyFilter(config.DefaultCatalog())

	if rule := f.CheckQuery("what time is breakfast?"); rule != "" {
		t.Fatalf("expected no rule, got %q", rule)
	}
}

func TestPolicyFinalizeAppendsSources(t *testing.T) {
	f := NewPolicyFilter(config.DefaultCatalog())

	state := &domain.PipelineState{
		PropertyID:     "harborview",
		VerifiedAnswer: "Breakfast runs 07:00-10:30.",
		UsedSources:    []string{"https://example.com/a"},
	}
	f.Finalize(state)

	if state.Outcome != domain.OutcomeAnswered {
		t.Fatalf("expected answered, got %q", state.Outcome)
	}
	if !strings.Contains(state.FinalAnswer, "Sources:") {
		t.Fatalf("expected source disclosure, got %q", state.FinalAnswer)
	}
	if !strings.Contains(state.FinalAnswer, "https://example.com/a") {
		t.Fatalf("expected source URL, got %q", state.FinalAnswer)
	}
}

func TestPolicyFinalizeBlocksLeakedForbiddenContent(t *testing.T) {
	f := NewPolicyFilter(config.DefaultCatalog())

	state := &domain.PipelineState{
		PropertyID:     "harborview",
		VerifiedAnswer: "Sure, the credit card number on file is available at the desk.",
	}
	f.Finalize(state)

	if state.Outcome != domain.OutcomePolicyBlock {
		t.Fatalf("expected policy block, got %q", state.Outcome)
	}
	if strings.Contains(strings.ToLower(state.FinalAnswer), "credit card number on file") {
		t.Fatalf("blocked content leaked: %q", state.FinalAnswer)
	}
}
