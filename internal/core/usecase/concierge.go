package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hoteldesk/concierge/internal/config"
	"github.com/hoteldesk/concierge/internal/core/domain"
	"github.com/hoteldesk/concierge/internal/core/ports"
	"github.com/hoteldesk/concierge/internal/observability/logging"
	"github.com/hoteldesk/concierge/internal/session"
)

const rephrasePrompt = "Could you tell me a bit more about what you're looking for?"

// Observer receives pipeline events for instrumentation. All methods must
// be cheap and non-blocking.
type Observer interface {
	TurnCompleted(outcome string, duration time.Duration)
	RetrievalObserved(candidateCount int, topScore float64)
	EvidenceRejected(reason string)
	VerificationIssue(issue string)
	ClarificationIssued(clarificationType string)
	PolicyBlocked(rule string)
}

type noopObserver struct{}

func (noopObserver) TurnCompleted(string, time.Duration) {}
func (noopObserver) RetrievalObserved(int, float64)      {}
func (noopObserver) EvidenceRejected(string)             {}
func (noopObserver) VerificationIssue(string)            {}
func (noopObserver) ClarificationIssued(string)          {}
func (noopObserver) PolicyBlocked(string)                {}

// Concierge runs the pipeline: normalization, disambiguation, retrieval,
// evidence gating, composition, verification, and policy filtering, in that
// order, with short circuits at the disambiguation and evidence gates. The
// policy query check runs before everything and cannot be bypassed.
type Concierge struct {
	normalizer   *Normalizer
	clarifier    *DisambiguationGate
	retriever    *HybridRetriever
	evidenceGate *EvidenceGate
	composer     *Composer
	verifier     *Verifier
	policy       *PolicyFilter

	sessions *session.Store
	sink     ports.TurnSink
	catalog  config.Catalog
	observer Observer
	logger   *slog.Logger
}

type ConciergeDeps struct {
	Searcher  ports.EvidenceSearcher
	Reranker  ports.Reranker
	Generator ports.AnswerGenerator
	Sink      ports.TurnSink
	Sessions  *session.Store
	Catalog   config.Catalog
	Params    Params
	Observer  Observer
	Logger    *slog.Logger
}

func NewConcierge(d ConciergeDeps) *Concierge {
	if d.Observer == nil {
		d.Observer = noopObserver{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	params := d.Params.normalize()

	return &Concierge{
		normalizer:   NewNormalizer(d.Catalog, params),
		clarifier:    NewDisambiguationGate(d.Catalog),
		retriever:    NewHybridRetriever(d.Searcher, d.Reranker, params, d.Logger),
		evidenceGate: NewEvidenceGate(params),
		composer:     NewComposer(d.Generator, d.Catalog, params),
		verifier:     NewVerifier(d.Catalog, params),
		policy:       NewPolicyFilter(d.Catalog),
		sessions:     d.Sessions,
		sink:         d.Sink,
		catalog:      d.Catalog,
		observer:     d.Observer,
		logger:       d.Logger,
	}
}

func (c *Concierge) Ask(ctx context.Context, sessionID, propertyID, query string) (*domain.Answer, error) {
	start := time.Now()

	// One turn at a time per session: a concurrent second request waits
	// here until the first exchange is appended, so its normalizer and
	// clarifier see complete history.
	release := c.sessions.BeginTurn(sessionID, propertyID)
	defer release()

	snap := c.sessions.Snapshot(sessionID, propertyID)
	state := &domain.PipelineState{
		OriginalQuery: query,
		PropertyID:    propertyID,
		History:       snap.History,
		CarriedTopic:  snap.LastTopic,
		CarriedChunks: snap.LastChunks,
	}

	if rule := c.policy.CheckQuery(query); rule != "" {
		state.FinalAnswer = c.policy.BlockText(rule, propertyID)
		state.PolicyReason = rule
		state.Outcome = domain.OutcomePolicyBlock
		c.observer.PolicyBlocked(rule)
		return c.finish(ctx, sessionID, state, start), nil
	}

	c.normalizer.Normalize(state)
	if !state.ValidQuery {
		state.NeedsClarification = true
		state.ClarificationType = "rephrase"
		state.FinalAnswer = rephrasePrompt
		state.Outcome = domain.OutcomeClarification
		c.observer.ClarificationIssued(state.ClarificationType)
		return c.finish(ctx, sessionID, state, start), nil
	}

	c.clarifier.Check(state)
	if state.NeedsClarification {
		state.FinalAnswer = state.ClarificationPrompt
		state.Outcome = domain.OutcomeClarification
		c.observer.ClarificationIssued(state.ClarificationType)
		return c.finish(ctx, sessionID, state, start), nil
	}

	// A detected context (pet, child) that answered directly still steers
	// retrieval toward that context's documents.
	if state.DetectedContext != "" && !containsFold(state.SearchQuery, state.DetectedContext) {
		state.SearchQuery = state.SearchQuery + " " + state.DetectedContext
	}

	if err := c.retriever.Retrieve(ctx, state); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Error("retrieval_failed",
			"request_id", logging.RequestID(ctx),
			"session_id", sessionID,
			"error", err,
		)
		state.EvidenceReason = GateReasonNoEvidence
		c.observer.EvidenceRejected(state.EvidenceReason)
		return c.refuse(ctx, sessionID, state, start), nil
	}
	c.observer.RetrievalObserved(len(state.Candidates), state.TopScore)

	c.evidenceGate.Evaluate(state)
	if !state.EvidenceAdmitted {
		c.observer.EvidenceRejected(state.EvidenceReason)
		return c.refuse(ctx, sessionID, state, start), nil
	}

	if err := c.composer.Compose(ctx, state); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Error("composition_failed",
			"request_id", logging.RequestID(ctx),
			"session_id", sessionID,
			"error", err,
		)
		state.FinalAnswer = fmt.Sprintf(c.catalog.Templates.GenerationFailure, c.catalog.ContactLine(propertyID))
		state.Outcome = domain.OutcomeRefusal
		return c.finish(ctx, sessionID, state, start), nil
	}

	c.verifier.Verify(state)
	for _, issue := range state.VerificationIssues {
		c.observer.VerificationIssue(issue)
	}
	if !state.VerificationPassed {
		return c.refuse(ctx, sessionID, state, start), nil
	}

	c.policy.Finalize(state)
	if state.Outcome == domain.OutcomePolicyBlock {
		c.observer.PolicyBlocked(state.PolicyReason)
	}

	return c.finish(ctx, sessionID, state, start), nil
}

// refuse terminates the turn with a refusal template and official contact
// pointer. Transit questions get the variant that links the property's
// location page. Refusals carry no source attribution.
func (c *Concierge) refuse(ctx context.Context, sessionID string, state *domain.PipelineState, start time.Time) *domain.Answer {
	contact := c.catalog.ContactLine(state.PropertyID)

	prop := c.catalog.PropertyByID(state.PropertyID)
	if (state.Topic == "transit" || state.Category == "transit") && prop.LocationURL != "" {
		state.FinalAnswer = fmt.Sprintf(c.catalog.Templates.TransitRefusal, contact, prop.LocationURL)
	} else {
		state.FinalAnswer = fmt.Sprintf(c.catalog.Templates.Refusal, contact)
	}
	state.UsedSources = nil
	state.Outcome = domain.OutcomeRefusal
	return c.finish(ctx, sessionID, state, start)
}

func (c *Concierge) finish(ctx context.Context, sessionID string, state *domain.PipelineState, start time.Time) *domain.Answer {
	text := state.FinalAnswer
	if state.RedirectNotice != "" && state.Outcome == domain.OutcomeAnswered {
		text = state.RedirectNotice + " " + text
	}

	answer := &domain.Answer{
		Text:               text,
		Score:              state.TopScore,
		Sources:            state.UsedSources,
		NeedsClarification: state.NeedsClarification,
	}
	if state.NeedsClarification {
		answer.ClarificationOptions = state.ClarificationOptions
		answer.ClarificationType = state.ClarificationType
		answer.OriginalQuery = state.OriginalQuery
	}

	c.sessions.AppendExchange(sessionID, state.PropertyID, state.OriginalQuery, text)
	if state.Outcome == domain.OutcomeAnswered {
		records := make([]domain.EvidenceRecord, 0, len(state.Candidates))
		for _, cand := range state.Candidates {
			records = append(records, cand.Record)
		}
		c.sessions.SetContext(sessionID, state.PropertyID, state.Topic, state.Category, records)
	}

	duration := time.Since(start)
	c.observer.TurnCompleted(string(state.Outcome), duration)
	c.emitTurnRecord(ctx, sessionID, state, duration)
	return answer
}

// emitTurnRecord publishes the audit record. Emission is best effort and
// never fails the request; the publish context is detached so a client
// disconnect cannot drop the record.
func (c *Concierge) emitTurnRecord(ctx context.Context, sessionID string, state *domain.PipelineState, duration time.Duration) {
	if c.sink == nil {
		return
	}

	record := domain.TurnRecord{
		ID:                 uuid.NewString(),
		RequestID:          logging.RequestID(ctx),
		SessionID:          sessionID,
		PropertyID:         state.PropertyID,
		CreatedAt:          time.Now().UTC(),
		Query:              state.OriginalQuery,
		NormalizedQuery:    state.NormalizedQuery,
		Topic:              state.Topic,
		Outcome:            state.Outcome,
		TopScore:           state.TopScore,
		CandidateCount:     len(state.Candidates),
		EvidenceAdmitted:   state.EvidenceAdmitted,
		VerificationIssues: state.VerificationIssues,
		FinalAnswer:        state.FinalAnswer,
		Sources:            state.UsedSources,
		Duration:           duration,
	}

	if err := c.sink.PublishTurnLogged(context.WithoutCancel(ctx), record); err != nil {
		c.logger.Warn("turn_record_publish_failed",
			"request_id", record.RequestID,
			"session_id", sessionID,
			"error", err,
		)
	}
}
