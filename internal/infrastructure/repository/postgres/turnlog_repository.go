package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hoteldesk/concierge/internal/core/domain"
)

// TurnLogRepository persists turn records for audit. Inserts are keyed by
// record ID so redelivered queue messages do not duplicate rows.
type TurnLogRepository struct {
	db *sql.DB
}

func NewTurnLogRepository(db *sql.DB) *TurnLogRepository {
	return &TurnLogRepository{db: db}
}

func (r *TurnLogRepository) SaveTurn(ctx context.Context, record domain.TurnRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	issues, err := json.Marshal(record.VerificationIssues)
	if err != nil {
		return fmt.Errorf("marshal verification issues: %w", err)
	}
	sources, err := json.Marshal(record.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO turn_logs (
	id, request_id, session_id, property_id, created_at,
	query, normalized_query, topic, outcome,
	top_score, candidate_count, evidence_admitted,
	verification_issues, final_answer, sources, duration_ms
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
ON CONFLICT (id) DO NOTHING
`,
		record.ID,
		record.RequestID,
		record.SessionID,
		record.PropertyID,
		record.CreatedAt,
		record.Query,
		record.NormalizedQuery,
		nullableString(record.Topic),
		string(record.Outcome),
		record.TopScore,
		record.CandidateCount,
		record.EvidenceAdmitted,
		issues,
		record.FinalAnswer,
		sources,
		record.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert turn log: %w", err)
	}
	return nil
}

// RecentOutcomes returns outcome counts since the cutoff, newest data first
// used by operational queries against the audit store.
func (r *TurnLogRepository) RecentOutcomes(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT outcome, COUNT(*)
FROM turn_logs
WHERE created_at >= $1
GROUP BY outcome
`, since)
	if err != nil {
		return nil, fmt.Errorf("query recent outcomes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("scan outcome row: %w", err)
		}
		out[outcome] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome rows: %w", err)
	}
	return out, nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
