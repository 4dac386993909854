package ports

import (
	"context"

	"github.com/hoteldesk/concierge/internal/core/domain"
)

// EvidenceSearcher retrieves evidence records from the index. Semantic and
// lexical search are separate so the usecase can fan them out concurrently
// and fuse the scored results.
type EvidenceSearcher interface {
	SearchSemantic(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.ScoredRecord, error)
	SearchLexical(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.ScoredRecord, error)
}

// Reranker scores each passage against the query with a cross-encoder.
// Scores are returned in passage order.
type Reranker interface {
	Rerank(ctx context.Context, query string, passages []string) ([]float64, error)
}

// AnswerGenerator produces model text from a fully assembled prompt.
type AnswerGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// TurnSink publishes completed turn records for asynchronous persistence.
type TurnSink interface {
	PublishTurnLogged(ctx context.Context, record domain.TurnRecord) error
	SubscribeTurnLogged(ctx context.Context, handler func(context.Context, domain.TurnRecord) error) error
}

// TurnRepository stores turn records durably.
type TurnRepository interface {
	SaveTurn(ctx context.Context, record domain.TurnRecord) error
}

// Pinger reports upstream reachability for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}
