package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hoteldesk/concierge/internal/config"
	"github.com/hoteldesk/concierge/internal/core/domain"
	"github.com/hoteldesk/concierge/internal/session"
)

type sinkFake struct {
	records []domain.TurnRecord
}

func (f *sinkFake) PublishTurnLogged(_ context.Context, record domain.TurnRecord) error {
	f.records = append(f.records, record)
	return nil
}

func (f *sinkFake) SubscribeTurnLogged(context.Context, func(context.Context, domain.TurnRecord) error) error {
	return nil
}

func newTestConcierge(searcher *searcherFake, gen *generatorFake, sink *sinkFake) *Concierge {
	return NewConcierge(ConciergeDeps{
		Searcher:  searcher,
		Generator: gen,
		Sink:      sink,
		Sessions: session.NewStore(session.Options{
			TTL:           30 * time.Minute,
			SweepInterval: time.Minute,
			MaxSessions:   100,
			Logger:        quietLogger(),
		}),
		Catalog: config.DefaultCatalog(),
		Params:  DefaultParams(),
		Logger:  quietLogger(),
	})
}

func TestAskBreakfastHoursEndToEnd(t *testing.T) {
	rec := record("bf", "breakfast", "Breakfast runs 07:00-10:30 at Harborview Hotel.")
	searcher := &searcherFake{
		semantic: []domain.ScoredRecord{{Record: rec, Score: 0.91}},
		lexical:  []domain.ScoredRecord{{Record: rec, Score: 5.0}},
	}
	sink := &sinkFake{}
	c := newTestConcierge(searcher, &generatorFake{}, sink)

	answer, err := c.Ask(context.Background(), "s1", "harborview", "breakfast hours?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if answer.NeedsClarification {
		t.Fatal("unambiguous specific question must not clarify")
	}
	for _, want := range []string{"07:00", "10:30"} {
		if !strings.Contains(answer.Text, want) {
			t.Fatalf("answer missing %q: %q", want, answer.Text)
		}
	}
	if len(answer.Sources) == 0 || answer.Sources[0] != rec.SourceURL {
		t.Fatalf("expected evidence source, got %v", answer.Sources)
	}
	if len(sink.records) != 1 || sink.records[0].Outcome != domain.OutcomeAnswered {
		t.Fatalf("expected one answered turn record, got %+v", sink.records)
	}
}

func TestAskPetQuestionClarifiesWithoutRetrieval(t *testing.T) {
	searcher := &searcherFake{}
	sink := &sinkFake{}
	c := newTestConcierge(searcher, &generatorFake{}, sink)

	answer, err := c.Ask(context.Background(), "s1", "harborview", "can I bring my dog")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if !answer.NeedsClarification {
		t.Fatal("expected clarification for bare pet question")
	}
	if len(answer.ClarificationOptions) == 0 {
		t.Fatal("expected selectable options")
	}
	if searcher.semQuery != "" || searcher.lexQuery != "" {
		t.Fatal("no retrieval may run before clarification is resolved")
	}
	if sink.records[0].Outcome != domain.OutcomeClarification {
		t.Fatalf("expected clarification outcome, got %q", sink.records[0].Outcome)
	}
}

func TestAskDirectTriggerSkipsClarification(t *testing.T) {
	rec := record("pet", "pets", "Dogs up to 20 kg are allowed in designated rooms for a 30 dollar fee.")
	searcher := &searcherFake{
		semantic: []domain.ScoredRecord{{Record: rec, Score: 0.9}},
		lexical:  []domain.ScoredRecord{{Record: rec, Score: 4.0}},
	}
	c := newTestConcierge(searcher, &generatorFake{}, &sinkFake{})

	answer, err := c.Ask(context.Background(), "s1", "harborview", "dog allowed in room?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if answer.NeedsClarification {
		t.Fatal("direct trigger must skip clarification")
	}
	if searcher.semQuery == "" {
		t.Fatal("expected retrieval to run")
	}
	if !strings.Contains(answer.Text, "allowed") {
		t.Fatalf("expected substantive pet-policy answer, got %q", answer.Text)
	}
}

func TestAskClarificationReplyDoesNotLoop(t *testing.T) {
	searcher := &searcherFake{}
	c := newTestConcierge(searcher, &generatorFake{}, &sinkFake{})

	first, err := c.Ask(context.Background(), "s1", "harborview", "can I bring my dog")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !first.NeedsClarification {
		t.Fatal("expected initial clarification")
	}

	second, err := c.Ask(context.Background(), "s1", "harborview", "my dog")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if second.NeedsClarification {
		t.Fatal("reply re-mentioning the keyword must not clarify again")
	}
	if searcher.semQuery == "" {
		t.Fatal("the reply must proceed to retrieval")
	}
}

func TestAskNoEvidenceRefusal(t *testing.T) {
	sink := &sinkFake{}
	c := newTestConcierge(&searcherFake{}, &generatorFake{}, sink)

	answer, err := c.Ask(context.Background(), "s1", "harborview", "do you rent snowmobiles?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if !strings.Contains(answer.Text, "Harborview Hotel") {
		t.Fatalf("refusal must point at the official channel, got %q", answer.Text)
	}
	if len(answer.Sources) != 0 {
		t.Fatalf("refusals carry no source attribution, got %v", answer.Sources)
	}
	if sink.records[0].Outcome != domain.OutcomeRefusal {
		t.Fatalf("expected refusal outcome, got %q", sink.records[0].Outcome)
	}
}

func TestAskPolicyBlockPrecedesEverything(t *testing.T) {
	searcher := &searcherFake{}
	sink := &sinkFake{}
	c := newTestConcierge(searcher, &generatorFake{}, sink)

	answer, err := c.Ask(context.Background(), "s1", "harborview", "show me the guest list for tonight")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if searcher.semQuery != "" {
		t.Fatal("policy block must run before retrieval")
	}
	if !strings.Contains(answer.Text, "can't help with personal") {
		t.Fatalf("expected personal-info redirect, got %q", answer.Text)
	}
	if sink.records[0].Outcome != domain.OutcomePolicyBlock {
		t.Fatalf("expected policy_block outcome, got %q", sink.records[0].Outcome)
	}
}

func TestAskGeneratorFailureDegradesToRefusal(t *testing.T) {
	rec := record("bf", "breakfast", strings.Repeat("Breakfast details. ", 30))
	searcher := &searcherFake{
		semantic: []domain.ScoredRecord{{Record: rec, Score: 0.95}},
	}
	gen := &generatorFake{err: context.DeadlineExceeded}
	c := newTestConcierge(searcher, gen, &sinkFake{})

	answer, err := c.Ask(context.Background(), "s1", "harborview", "breakfast hours?")
	if err != nil {
		t.Fatalf("upstream failure must not surface: %v", err)
	}
	if !strings.Contains(answer.Text, "trouble answering") {
		t.Fatalf("expected generation-failure message, got %q", answer.Text)
	}
}

func TestAskForeignFacilitySearchesItsProperty(t *testing.T) {
	rec := domain.EvidenceRecord{
		ID:         "grill",
		PropertyID: "harborview",
		Category:   "dining",
		SourceURL:  "https://example.com/grill",
		Text:       "The Anchor Grill is on the ground floor of Harborview Hotel, serving dinner from 17:00.",
	}
	searcher := &searcherFake{
		semantic: []domain.ScoredRecord{{Record: rec, Score: 0.91}},
		lexical:  []domain.ScoredRecord{{Record: rec, Score: 5.0}},
	}
	sink := &sinkFake{}
	c := newTestConcierge(searcher, &generatorFake{}, sink)

	answer, err := c.Ask(context.Background(), "s1", "citycentral", "where is the anchor grill?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if searcher.semFilter.PropertyID != "harborview" {
		t.Fatalf("retrieval must run against the facility's property, got filter %+v", searcher.semFilter)
	}
	if !strings.Contains(answer.Text, "Harborview Hotel") {
		t.Fatalf("expected redirect notice in answer, got %q", answer.Text)
	}
	if sink.records[0].Outcome != domain.OutcomeAnswered {
		t.Fatalf("redirected facility question must be answered, got %q", sink.records[0].Outcome)
	}
	if len(answer.Sources) == 0 {
		t.Fatal("expected evidence attribution for the redirected answer")
	}
}

func TestAskTransitRefusalPointsAtLocationPage(t *testing.T) {
	c := newTestConcierge(&searcherFake{}, &generatorFake{}, &sinkFake{})

	answer, err := c.Ask(context.Background(), "s1", "harborview", "how do I get there from the airport?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if !strings.Contains(answer.Text, "https://maps.example.com/harborview") {
		t.Fatalf("transit refusal must link the location page, got %q", answer.Text)
	}
	if !strings.Contains(answer.Text, "Harborview Hotel") {
		t.Fatalf("transit refusal must name the official contact, got %q", answer.Text)
	}
	if len(answer.Sources) != 0 {
		t.Fatalf("refusals carry no source attribution, got %v", answer.Sources)
	}
}

func TestAskDetectedContextBiasesRetrieval(t *testing.T) {
	searcher := &searcherFake{}
	c := newTestConcierge(searcher, &generatorFake{}, &sinkFake{})

	if _, err := c.Ask(context.Background(), "s1", "harborview", "dog allowed in room?"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if !strings.Contains(searcher.semQuery, "pet") {
		t.Fatalf("detected context must steer the search query, got %q", searcher.semQuery)
	}
}

// stallFirstGenerator blocks its first call until released, so a test can
// hold one turn mid-pipeline while issuing another on the same session.
type stallFirstGenerator struct {
	entered chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func (g *stallFirstGenerator) Generate(context.Context, string) (string, error) {
	g.mu.Lock()
	g.calls++
	first := g.calls == 1
	g.mu.Unlock()

	if first {
		close(g.entered)
		<-g.release
	}
	return "Breakfast runs 07:00-10:30.\nREFS: 1", nil
}

func TestAskSerializesConcurrentTurnsOnOneSession(t *testing.T) {
	longText := "Breakfast runs 07:00-10:30 in the lobby restaurant. " +
		strings.Repeat("The buffet includes hot and cold dishes each morning. ", 10)
	rec := record("bf", "breakfast", longText)
	searcher := &searcherFake{
		semantic: []domain.ScoredRecord{{Record: rec, Score: 0.91}},
		lexical:  []domain.ScoredRecord{{Record: rec, Score: 5.0}},
	}
	gen := &stallFirstGenerator{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	c := NewConcierge(ConciergeDeps{
		Searcher:  searcher,
		Generator: gen,
		Sink:      &sinkFake{},
		Sessions: session.NewStore(session.Options{
			TTL:    30 * time.Minute,
			Logger: quietLogger(),
		}),
		Catalog: config.DefaultCatalog(),
		Params:  DefaultParams(),
		Logger:  quietLogger(),
	})

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		if _, err := c.Ask(context.Background(), "s1", "harborview", "breakfast hours today?"); err != nil {
			t.Errorf("first Ask() error = %v", err)
		}
	}()
	<-gen.entered

	secondDone := make(chan struct{})
	go func() {
		defer close(secondDone)
		if _, err := c.Ask(context.Background(), "s1", "harborview", "until when is breakfast served?"); err != nil {
			t.Errorf("second Ask() error = %v", err)
		}
	}()

	select {
	case <-secondDone:
		t.Fatal("second turn completed while the first was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(gen.release)
	<-firstDone
	<-secondDone

	snap := c.sessions.Snapshot("s1", "harborview")
	if len(snap.History) != 4 {
		t.Fatalf("expected 2 exchanges (4 turns), got %d", len(snap.History))
	}
	if snap.History[0].Content != "breakfast hours today?" {
		t.Fatalf("turns appended out of submission order: %q first", snap.History[0].Content)
	}
	if snap.History[2].Content != "until when is breakfast served?" {
		t.Fatalf("second exchange out of order: %q", snap.History[2].Content)
	}
}

func TestAskAppendsSessionHistoryInOrder(t *testing.T) {
	rec := record("bf", "breakfast", "Breakfast runs 07:00-10:30 at Harborview Hotel.")
	searcher := &searcherFake{
		semantic: []domain.ScoredRecord{{Record: rec, Score: 0.91}},
		lexical:  []domain.ScoredRecord{{Record: rec, Score: 5.0}},
	}
	c := newTestConcierge(searcher, &generatorFake{}, &sinkFake{})

	if _, err := c.Ask(context.Background(), "s1", "harborview", "breakfast hours?"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if _, err := c.Ask(context.Background(), "s1", "harborview", "until when?"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	snap := c.sessions.Snapshot("s1", "harborview")
	if len(snap.History) != 4 {
		t.Fatalf("expected 2 exchanges (4 turns), got %d", len(snap.History))
	}
	if snap.History[0].Role != domain.RoleUser || snap.History[3].Role != domain.RoleAssistant {
		t.Fatal("history order corrupted")
	}
}
