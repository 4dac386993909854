package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hoteldesk/concierge/internal/core/domain"
	"github.com/hoteldesk/concierge/internal/infrastructure/resilience"
)

// Embedder produces the dense query vector for semantic search.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher reads the evidence collection over qdrant's HTTP query API.
// The collection carries two named vectors per point: "dense" written by
// the indexing pipeline's embedder and "lexical" holding hashed BM25
// weights. The write path lives outside this service.
type Searcher struct {
	baseURL    string
	collection string
	httpClient *http.Client
	embedder   Embedder
	executor   *resilience.Executor
}

type Options struct {
	HTTPTimeout        time.Duration
	ResilienceExecutor *resilience.Executor
}

func NewSearcher(baseURL, collection string, embedder Embedder) *Searcher {
	return NewSearcherWithOptions(baseURL, collection, embedder, Options{})
}

func NewSearcherWithOptions(baseURL, collection string, embedder Embedder, options Options) *Searcher {
	timeout := options.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Searcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: timeout},
		embedder:   embedder,
		executor:   options.ResilienceExecutor,
	}
}

func (s *Searcher) SearchSemantic(
	ctx context.Context,
	query string,
	limit int,
	filter domain.SearchFilter,
) ([]domain.ScoredRecord, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vector) == 0 {
		return nil, nil
	}

	reqBody := map[string]any{
		"query":        vector,
		"using":        "dense",
		"limit":        limit,
		"with_payload": true,
	}
	if f := buildFilter(filter); f != nil {
		reqBody["filter"] = f
	}
	return s.queryPoints(ctx, "semantic", reqBody)
}

func (s *Searcher) SearchLexical(
	ctx context.Context,
	query string,
	limit int,
	filter domain.SearchFilter,
) ([]domain.ScoredRecord, error) {
	sparse := encodeSparseQuery(query)
	if len(sparse.Indices) == 0 {
		return nil, nil
	}

	reqBody := map[string]any{
		"query": map[string]any{
			"indices": sparse.Indices,
			"values":  sparse.Values,
		},
		"using":        "lexical",
		"limit":        limit,
		"with_payload": true,
	}
	if f := buildFilter(filter); f != nil {
		reqBody["filter"] = f
	}
	return s.queryPoints(ctx, "lexical", reqBody)
}

// Ping reports collection reachability for health checks.
func (s *Searcher) Ping(ctx context.Context) error {
	url := fmt.Sprintf("%s/collections/%s", s.baseURL, s.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create collection info request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant collection info request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return newStatusError("collection_info", resp)
	}
	return nil
}

func (s *Searcher) queryPoints(ctx context.Context, operation string, reqBody map[string]any) ([]domain.ScoredRecord, error) {
	var out []domain.ScoredRecord
	call := func(callCtx context.Context) error {
		records, err := s.doQuery(callCtx, operation, reqBody)
		if err != nil {
			return err
		}
		out = records
		return nil
	}

	var err error
	if s.executor != nil {
		err = s.executor.Execute(ctx, "qdrant."+operation, call, classifyQdrantError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded(operation, err)
	}
	return out, nil
}

func (s *Searcher) doQuery(ctx context.Context, operation string, reqBody map[string]any) ([]domain.ScoredRecord, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal %s query body: %w", operation, err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/query", s.baseURL, s.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s query request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, newStatusError(operation, resp)
	}

	var queryResp struct {
		Result struct {
			Points []struct {
				Score   float64        `json:"score"`
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&queryResp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", operation, err)
	}

	out := make([]domain.ScoredRecord, 0, len(queryResp.Result.Points))
	for _, p := range queryResp.Result.Points {
		out = append(out, domain.ScoredRecord{
			Record: recordFromPayload(p.Payload),
			Score:  p.Score,
		})
	}
	return out, nil
}

func buildFilter(filter domain.SearchFilter) map[string]any {
	var must []map[string]any
	if filter.PropertyID != "" {
		must = append(must, map[string]any{
			"key":   "property_id",
			"match": map[string]any{"value": filter.PropertyID},
		})
	}
	if filter.Category != "" {
		must = append(must, map[string]any{
			"key":   "category",
			"match": map[string]any{"value": filter.Category},
		})
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func recordFromPayload(payload map[string]any) domain.EvidenceRecord {
	rec := domain.EvidenceRecord{
		ID:         getStringPayload(payload, "record_id"),
		PropertyID: getStringPayload(payload, "property_id"),
		Category:   getStringPayload(payload, "category"),
		Language:   getStringPayload(payload, "language"),
		SourceURL:  getStringPayload(payload, "source_url"),
		Text:       getStringPayload(payload, "text"),
	}
	if raw := getStringPayload(payload, "updated_at"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			rec.UpdatedAt = ts
		}
	}
	return rec
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func newStatusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}
