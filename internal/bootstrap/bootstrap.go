package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hoteldesk/concierge/internal/config"
	"github.com/hoteldesk/concierge/internal/core/ports"
	"github.com/hoteldesk/concierge/internal/core/usecase"
	"github.com/hoteldesk/concierge/internal/infrastructure/llm/ollama"
	"github.com/hoteldesk/concierge/internal/infrastructure/queue/nats"
	"github.com/hoteldesk/concierge/internal/infrastructure/rerank"
	"github.com/hoteldesk/concierge/internal/infrastructure/resilience"
	"github.com/hoteldesk/concierge/internal/infrastructure/vector/qdrant"
	"github.com/hoteldesk/concierge/internal/observability/logging"
	"github.com/hoteldesk/concierge/internal/observability/metrics"
	"github.com/hoteldesk/concierge/internal/session"
)

type App struct {
	Config  config.Config
	Catalog config.Catalog
	Logger  *slog.Logger
	Metrics *metrics.HTTPServerMetrics

	Concierge ports.ConciergeService
	Sessions  *session.Store
	Queue     *nats.Queue
	Upstreams map[string]ports.Pinger

	closeFn func()
}

func New(_ context.Context, cfg config.Config) (*App, error) {
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	catalog := config.LoadCatalog(cfg.CatalogPath, logger)
	httpMetrics := metrics.NewHTTPServerMetrics("api")
	executor := resilience.NewExecutor(resilience.DefaultConfig(), logger)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init turn queue: %w", err)
	}

	ollamaClient := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		HTTPTimeout:        cfg.GenerateTimeout,
		Temperature:        0.1,
		ResilienceExecutor: executor,
	})
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	searcher := qdrant.NewSearcherWithOptions(cfg.QdrantURL, cfg.QdrantCollection, embedder, qdrant.Options{
		HTTPTimeout:        cfg.SearchTimeout,
		ResilienceExecutor: executor,
	})

	reranker := rerank.NewWithOptions(cfg.RerankerURL, cfg.RerankModel, rerank.Options{
		HTTPTimeout:        cfg.RerankTimeout,
		ResilienceExecutor: executor,
	})

	sessions := session.NewStore(session.Options{
		TTL:           cfg.SessionTTL,
		SweepInterval: cfg.SessionSweepInterval,
		MaxSessions:   cfg.SessionMax,
		Logger:        logger,
	})

	concierge := usecase.NewConcierge(usecase.ConciergeDeps{
		Searcher:  searcher,
		Reranker:  reranker,
		Generator: generator,
		Sink:      queue,
		Sessions:  sessions,
		Catalog:   catalog,
		Params:    pipelineParams(cfg),
		Observer:  &metricsObserver{metrics: httpMetrics, sessions: sessions},
		Logger:    logger,
	})

	return &App{
		Config:    cfg,
		Catalog:   catalog,
		Logger:    logger,
		Metrics:   httpMetrics,
		Concierge: concierge,
		Sessions:  sessions,
		Queue:     queue,
		Upstreams: map[string]ports.Pinger{
			"search":    searcher,
			"reranker":  reranker,
			"generator": ollamaClient,
			"queue":     queue,
		},
		closeFn: func() {
			queue.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func pipelineParams(cfg config.Config) usecase.Params {
	return usecase.Params{
		HistoryWindow: cfg.HistoryWindow,
		MinQueryChars: cfg.MinQueryChars,

		RetrievalTopK:           cfg.RetrievalTopK,
		HybridCandidates:        cfg.HybridCandidates,
		SemanticWeight:          cfg.SemanticWeight,
		LexicalWeight:           cfg.LexicalWeight,
		RerankTopN:              cfg.RerankTopN,
		RerankRelativeThreshold: cfg.RerankRelativeThreshold,
		RerankSkipThreshold:     cfg.RerankSkipThreshold,
		RerankMinKeep:           cfg.RerankMinKeep,
		RerankPoorQualityFloor:  cfg.RerankPoorQualityFloor,
		CategoryFloor:           cfg.CategoryFloor,

		EvidenceAdmitThreshold: cfg.EvidenceAdmitThreshold,
		MinEvidenceCount:       cfg.MinEvidenceCount,
		GroundingThreshold:     cfg.GroundingThreshold,
		FAQDirectThreshold:     cfg.FAQDirectThreshold,
		FAQRelaxedThreshold:    cfg.FAQRelaxedThreshold,
	}
}

// metricsObserver bridges pipeline events to the Prometheus registry
// without the usecase package importing the metrics package.
type metricsObserver struct {
	metrics  *metrics.HTTPServerMetrics
	sessions *session.Store
}

func (o *metricsObserver) TurnCompleted(outcome string, duration time.Duration) {
	o.metrics.RecordChatOutcome("api", outcome, duration)
	o.metrics.SetActiveSessions(o.sessions.Len())
}

func (o *metricsObserver) RetrievalObserved(candidateCount int, topScore float64) {
	o.metrics.RecordRetrieval("api", candidateCount, topScore)
}

func (o *metricsObserver) EvidenceRejected(reason string) {
	o.metrics.RecordEvidenceRejected("api", reason)
}

func (o *metricsObserver) VerificationIssue(issue string) {
	o.metrics.RecordVerificationIssue("api", issue)
}

func (o *metricsObserver) ClarificationIssued(clarificationType string) {
	o.metrics.RecordClarification("api", clarificationType)
}

func (o *metricsObserver) PolicyBlocked(rule string) {
	o.metrics.RecordPolicyBlock("api", rule)
}
