package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hoteldesk/concierge/internal/config"
	"github.com/hoteldesk/concierge/internal/core/ports"
	"github.com/hoteldesk/concierge/internal/observability/logging"
	"github.com/hoteldesk/concierge/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	concierge ports.ConciergeService
	catalog   config.Catalog
	upstreams map[string]ports.Pinger
	metrics   *metrics.HTTPServerMetrics
	logger    *slog.Logger

	ratePerSecond float64
	rateBurst     int
}

type RouterDeps struct {
	Concierge ports.ConciergeService
	Catalog   config.Catalog
	Upstreams map[string]ports.Pinger
	Metrics   *metrics.HTTPServerMetrics
	Logger    *slog.Logger

	RatePerSecond float64
	RateBurst     int
}

func NewRouter(d RouterDeps) *Router {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		concierge:     d.Concierge,
		catalog:       d.Catalog,
		upstreams:     d.Upstreams,
		metrics:       d.Metrics,
		logger:        logger,
		ratePerSecond: d.RatePerSecond,
		rateBurst:     d.RateBurst,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/v1/chat", rt.rateLimitMiddleware(http.HandlerFunc(rt.chat)))
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = rt.accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return handler
}

type chatRequest struct {
	Message    string `json:"message"`
	PropertyID string `json:"propertyId"`
	SessionID  string `json:"sessionId"`
}

type chatResponse struct {
	Answer               string   `json:"answer"`
	Score                float64  `json:"score,omitempty"`
	Sources              []string `json:"sources"`
	NeedsClarification   bool     `json:"needsClarification"`
	ClarificationOptions []string `json:"clarificationOptions,omitempty"`
	ClarificationType    string   `json:"clarificationType,omitempty"`
	OriginalQuery        string   `json:"originalQuery,omitempty"`
	SessionID            string   `json:"sessionId"`
}

func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}
	if prop := rt.catalog.PropertyByID(req.PropertyID); prop.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown propertyId"})
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	answer, err := rt.concierge.Ask(r.Context(), sessionID, req.PropertyID, req.Message)
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		rt.logger.Error("chat_failed",
			"request_id", logging.RequestID(r.Context()),
			"session_id", sessionID,
			"status", status,
			"error", err,
		)
		writeJSON(w, status, map[string]string{"error": publicErrorMessage(status)})
		return
	}

	sources := answer.Sources
	if sources == nil {
		sources = []string{}
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Answer:               answer.Text,
		Score:                answer.Score,
		Sources:              sources,
		NeedsClarification:   answer.NeedsClarification,
		ClarificationOptions: answer.ClarificationOptions,
		ClarificationType:    answer.ClarificationType,
		OriginalQuery:        answer.OriginalQuery,
		SessionID:            sessionID,
	})
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	type componentStatus struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}

	components := make(map[string]componentStatus, len(rt.upstreams))
	healthy := true
	for name, pinger := range rt.upstreams {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := pinger.Ping(ctx)
		cancel()
		if err != nil {
			healthy = false
			components[name] = componentStatus{Status: "unreachable", Error: err.Error()}
			continue
		}
		components[name] = componentStatus{Status: "ok"}
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"components": components,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
