package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	chatOutcomeTotal       *prometheus.CounterVec
	chatDuration           *prometheus.HistogramVec
	retrievalCandidates    *prometheus.HistogramVec
	retrievalTopScore      *prometheus.HistogramVec
	evidenceRejectedTotal  *prometheus.CounterVec
	verificationIssueTotal *prometheus.CounterVec
	clarificationTotal     *prometheus.CounterVec
	policyBlockTotal       *prometheus.CounterVec
	activeSessions         prometheus.Gauge
	rateLimitedTotal       *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "concierge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "concierge",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	chatOutcomeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "chat",
			Name:      "outcomes_total",
			Help:      "Total chat turns by pipeline outcome.",
		},
		[]string{"service", "outcome"},
	)
	chatDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "concierge",
			Subsystem: "chat",
			Name:      "pipeline_duration_seconds",
			Help:      "End-to-end pipeline duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)
	retrievalCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "concierge",
			Subsystem: "retrieval",
			Name:      "candidates",
			Help:      "Distribution of retained candidates per retrieval.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	retrievalTopScore := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "concierge",
			Subsystem: "retrieval",
			Name:      "top_score",
			Help:      "Distribution of the best candidate score per retrieval.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"service"},
	)
	evidenceRejectedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "retrieval",
			Name:      "evidence_rejected_total",
			Help:      "Total turns rejected by the evidence gate, by reason.",
		},
		[]string{"service", "reason"},
	)
	verificationIssueTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "verify",
			Name:      "issues_total",
			Help:      "Total verification issues by type.",
		},
		[]string{"service", "issue"},
	)
	clarificationTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "chat",
			Name:      "clarifications_total",
			Help:      "Total clarification prompts by type.",
		},
		[]string{"service", "type"},
	)
	policyBlockTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "chat",
			Name:      "policy_blocks_total",
			Help:      "Total turns blocked by the policy filter, by rule.",
		},
		[]string{"service", "rule"},
	)
	activeSessions := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "concierge",
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of live sessions in the store.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	rateLimitedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by the rate limiter.",
		},
		[]string{"service", "path"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		chatOutcomeTotal,
		chatDuration,
		retrievalCandidates,
		retrievalTopScore,
		evidenceRejectedTotal,
		verificationIssueTotal,
		clarificationTotal,
		policyBlockTotal,
		activeSessions,
		rateLimitedTotal,
	)

	return &HTTPServerMetrics{
		registry:               registry,
		requestTotal:           requestTotal,
		requestDuration:        requestDuration,
		requestInFlight:        requestInFlight,
		chatOutcomeTotal:       chatOutcomeTotal,
		chatDuration:           chatDuration,
		retrievalCandidates:    retrievalCandidates,
		retrievalTopScore:      retrievalTopScore,
		evidenceRejectedTotal:  evidenceRejectedTotal,
		verificationIssueTotal: verificationIssueTotal,
		clarificationTotal:     clarificationTotal,
		policyBlockTotal:       policyBlockTotal,
		activeSessions:         activeSessions,
		rateLimitedTotal:       rateLimitedTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := r.URL.Path
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func (m *HTTPServerMetrics) RecordChatOutcome(service, outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.chatOutcomeTotal.WithLabelValues(service, outcome).Inc()
	m.chatDuration.WithLabelValues(service, outcome).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordRetrieval(service string, candidateCount int, topScore float64) {
	m.retrievalCandidates.WithLabelValues(service).Observe(float64(candidateCount))
	if topScore > 0 {
		m.retrievalTopScore.WithLabelValues(service).Observe(topScore)
	}
}

func (m *HTTPServerMetrics) RecordEvidenceRejected(service, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.evidenceRejectedTotal.WithLabelValues(service, reason).Inc()
}

func (m *HTTPServerMetrics) RecordVerificationIssue(service, issue string) {
	if issue == "" {
		issue = "unknown"
	}
	m.verificationIssueTotal.WithLabelValues(service, issue).Inc()
}

func (m *HTTPServerMetrics) RecordClarification(service, clarificationType string) {
	if clarificationType == "" {
		clarificationType = "unknown"
	}
	m.clarificationTotal.WithLabelValues(service, clarificationType).Inc()
}

func (m *HTTPServerMetrics) RecordPolicyBlock(service, rule string) {
	if rule == "" {
		rule = "unknown"
	}
	m.policyBlockTotal.WithLabelValues(service, rule).Inc()
}

func (m *HTTPServerMetrics) SetActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}

func (m *HTTPServerMetrics) RecordRateLimited(service, path string) {
	m.rateLimitedTotal.WithLabelValues(service, path).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
