package usecase

import (
	"strings"
	"testing"

	"github.com/hoteldesk/concierge/internal/config"
	"github.com/hoteldesk/concierge/internal/core/domain"
)

func testNormalizer() *Normalizer {
	return NewNormalizer(config.DefaultCatalog(), DefaultParams())
}

func TestNormalizeRejectsUnusableQuery(t *testing.T) {
	n := testNormalizer()

	for _, q := range []string{"", " ", "?", "!!"} {
		state := &domain.PipelineState{OriginalQuery: q}
		n.Normalize(state)
		if state.ValidQuery {
			t.Fatalf("query %q should be invalid", q)
		}
	}
}

func TestNormalizeDetectsTopicAndCategory(t *testing.T) {
	n := testNormalizer()

	state := &domain.PipelineState{OriginalQuery: "what time does breakfast start?"}
	n.Normalize(state)

	if state.Topic != "breakfast" {
		t.Fatalf("expected breakfast topic, got %q", state.Topic)
	}
	if state.Category != "breakfast" {
		t.Fatalf("expected breakfast category, got %q", state.Category)
	}
}

func TestNormalizeRewritesFollowUpFromCarriedTopic(t *testing.T) {
	n := testNormalizer()

	state := &domain.PipelineState{
		OriginalQuery: "how about 10 minutes later?",
		History: []domain.ConversationTurn{
			{Role: domain.RoleUser, Content: "what time does breakfast start?"},
			{Role: domain.RoleAssistant, Content: "Breakfast starts at 07:00."},
		},
		CarriedTopic: "breakfast",
	}
	n.Normalize(state)

	if !strings.HasPrefix(state.NormalizedQuery, "breakfast ") {
		t.Fatalf("expected subject substitution, got %q", state.NormalizedQuery)
	}
}

func TestNormalizeIgnoresAssistantTurnsForTopic(t *testing.T) {
	n := testNormalizer()

	state := &domain.PipelineState{
		OriginalQuery: "and how late is it open?",
		History: []domain.ConversationTurn{
			{Role: domain.RoleUser, Content: "where is the gym?"},
			{Role: domain.RoleAssistant, Content: "The pool and the spa are on level 2."},
		},
	}
	n.Normalize(state)

	if state.Topic != "fitness" {
		t.Fatalf("topic must come from user turns only, got %q", state.Topic)
	}
}

func TestNormalizeTopicSwitchSuppressesRewrite(t *testing.T) {
	n := testNormalizer()

	state := &domain.PipelineState{
		OriginalQuery: "is there parking at the hotel?",
		History: []domain.ConversationTurn{
			{Role: domain.RoleUser, Content: "what time does breakfast start?"},
			{Role: domain.RoleAssistant, Content: "Breakfast starts at 07:00."},
		},
		CarriedTopic:  "breakfast",
		CarriedChunks: []domain.EvidenceRecord{{ID: "e1"}},
	}
	n.Normalize(state)

	if state.NormalizedQuery != "is there parking at the hotel?" {
		t.Fatalf("topic switch must not be rewritten, got %q", state.NormalizedQuery)
	}
	if state.CarriedTopic != "" || len(state.CarriedChunks) != 0 {
		t.Fatal("topic switch must drop carried context")
	}
}

func TestNormalizeStripsPropertyNameFromSearchQuery(t *testing.T) {
	n := testNormalizer()

	state := &domain.PipelineState{OriginalQuery: "breakfast hours at Harborview Hotel"}
	n.Normalize(state)

	if containsFold(state.SearchQuery, "harborview") {
		t.Fatalf("property name must be stripped from search query, got %q", state.SearchQuery)
	}
	if !containsFold(state.SearchQuery, "breakfast") {
		t.Fatalf("topical terms must survive stripping, got %q", state.SearchQuery)
	}
}

func TestNormalizeExpandsSynonyms(t *testing.T) {
	n := testNormalizer()

	state := &domain.PipelineState{OriginalQuery: "where is the gym?"}
	n.Normalize(state)

	if !containsFold(state.SearchQuery, "fitness center") {
		t.Fatalf("expected synonym expansion, got %q", state.SearchQuery)
	}
}

func TestNormalizeUnresolvableFollowUpFallsThrough(t *testing.T) {
	n := testNormalizer()

	state := &domain.PipelineState{
		OriginalQuery: "what about later?",
		History: []domain.ConversationTurn{
			{Role: domain.RoleUser, Content: "hello there"},
			{Role: domain.RoleAssistant, Content: "Hi! How can I help?"},
		},
	}
	n.Normalize(state)

	if !state.RewriteFailed {
		t.Fatal("expected rewrite failure flag")
	}
	if state.NormalizedQuery != "what about later?" {
		t.Fatalf("original query must pass through unchanged, got %q", state.NormalizedQuery)
	}
}
