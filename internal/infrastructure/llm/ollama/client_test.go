package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hoteldesk/concierge/internal/core/domain"
	"github.com/hoteldesk/concierge/internal/infrastructure/resilience"
)

func TestGenerateSendsLowTemperatureOptions(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"response":"  Breakfast runs 07:00-10:30. REFS: 1  "}`))
	}))
	defer server.Close()

	gen := NewGenerator(NewWithOptions(server.URL, "llama3", "nomic", Options{Temperature: 0.1}))
	got, err := gen.Generate(context.Background(), "prompt text")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "Breakfast runs 07:00-10:30. REFS: 1" {
		t.Fatalf("expected trimmed response, got %q", got)
	}
	if gotBody["model"] != "llama3" || gotBody["stream"] != false {
		t.Fatalf("unexpected request body: %v", gotBody)
	}
	opts, ok := gotBody["options"].(map[string]any)
	if !ok || opts["temperature"] != 0.1 {
		t.Fatalf("expected temperature option, got %v", gotBody["options"])
	}
}

func TestEmbedQueryReturnsFirstVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "llama3", "nomic"))
	vec, err := embedder.EmbedQuery(context.Background(), "breakfast hours")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Fatalf("unexpected vector: %v", vec)
	}
}

func TestGenerateRetriesRetryableStatus(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "loading model", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer server.Close()

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
	}, nil)
	gen := NewGenerator(NewWithOptions(server.URL, "llama3", "nomic", Options{
		ResilienceExecutor: executor,
	}))

	got, err := gen.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "ok" {
		t.Fatalf("expected retried success, got %q", got)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestGenerateClientErrorIsNotTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad model name", http.StatusBadRequest)
	}))
	defer server.Close()

	gen := NewGenerator(New(server.URL, "llama3", "nomic"))
	_, err := gen.Generate(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("4xx must not be temporary, got %v", err)
	}
	if !strings.Contains(err.Error(), "bad model name") {
		t.Fatalf("expected body in error, got %v", err)
	}
}
