package ports

import (
	"context"

	"github.com/hoteldesk/concierge/internal/core/domain"
)

// ConciergeService is the inbound contract for answering one guest turn.
// Implementations run the full pipeline: normalization, clarification,
// retrieval, gating, composition, verification, and policy filtering.
type ConciergeService interface {
	Ask(ctx context.Context, sessionID, propertyID, query string) (*domain.Answer, error)
}
