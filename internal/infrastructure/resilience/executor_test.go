package resilience

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

var errFlaky = errors.New("upstream flaky")

func fastRetryConfig() Config {
	return Config{
		RetryMaxAttempts:    4,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	}
}

func retryableClassifier(err error) ErrorClassification {
	return ErrorClassification{Retryable: errors.Is(err, errFlaky), RecordFailure: true}
}

// failNTimes returns an operation that fails the first n calls and counts
// every call through the pointer.
func failNTimes(n int, calls *int) func(context.Context) error {
	return func(context.Context) error {
		*calls++
		if *calls <= n {
			return errFlaky
		}
		return nil
	}
}

func TestRetryStopsAtFirstSuccess(t *testing.T) {
	exec := NewExecutor(fastRetryConfig(), nil)

	calls := 0
	if err := exec.Execute(context.Background(), "search", failNTimes(2, &calls), retryableClassifier); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 2 failures then success, got %d calls", calls)
	}
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	exec := NewExecutor(fastRetryConfig(), nil)

	calls := 0
	err := exec.Execute(context.Background(), "search", failNTimes(10, &calls), retryableClassifier)
	if !errors.Is(err, errFlaky) {
		t.Fatalf("expected the operation's error, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected exactly max attempts, got %d calls", calls)
	}
}

func TestNonRetryableErrorShortCircuits(t *testing.T) {
	exec := NewExecutor(fastRetryConfig(), nil)

	errBadRequest := errors.New("bad request")
	calls := 0
	err := exec.Execute(context.Background(), "generate", func(context.Context) error {
		calls++
		return errBadRequest
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	})
	if !errors.Is(err, errBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("non-retryable error must not repeat, got %d calls", calls)
	}
}

func TestCancelledContextStopsRetrying(t *testing.T) {
	exec := NewExecutor(fastRetryConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := exec.Execute(ctx, "search", func(context.Context) error {
		calls++
		cancel()
		return errFlaky
	}, retryableClassifier)
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
	if calls != 1 {
		t.Fatalf("cancelled context must end the retry loop, got %d calls", calls)
	}
}

func TestInjectedLoggerRecordsRetries(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	exec := NewExecutor(fastRetryConfig(), logger)

	calls := 0
	if err := exec.Execute(context.Background(), "rerank", failNTimes(1, &calls), retryableClassifier); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	logged := buf.String()
	if !strings.Contains(logged, "retry_attempt") {
		t.Fatalf("expected a retry log line, got:\n%s", logged)
	}
	if !strings.Contains(logged, "operation=rerank") {
		t.Fatalf("retry log must name the operation, got:\n%s", logged)
	}
}

func TestBreakerOpensAndBlocksCalls(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.RetryMaxAttempts = 1
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 3
	cfg.BreakerFailureRatio = 0.6
	cfg.BreakerOpenTimeout = 100 * time.Millisecond
	cfg.BreakerHalfOpenMaxCalls = 1

	var buf bytes.Buffer
	exec := NewExecutor(cfg, slog.New(slog.NewTextHandler(&buf, nil)))

	recording := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}
	for i := 0; i < 3; i++ {
		err := exec.Execute(context.Background(), "queue.publish", func(context.Context) error {
			return errFlaky
		}, recording)
		if !errors.Is(err, errFlaky) {
			t.Fatalf("call %d: expected upstream error, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "queue.publish", func(context.Context) error {
		t.Fatal("operation must not run while the circuit is open")
		return nil
	}, recording)
	if !IsCircuitOpen(err) {
		t.Fatalf("expected an open circuit, got %v", err)
	}
	if !strings.Contains(buf.String(), "circuit_breaker_state_change") {
		t.Fatalf("expected a state-change log line, got:\n%s", buf.String())
	}
}

func TestBreakersAreIsolatedPerOperation(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.RetryMaxAttempts = 1
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 2
	cfg.BreakerFailureRatio = 0.5
	cfg.BreakerOpenTimeout = 100 * time.Millisecond
	cfg.BreakerHalfOpenMaxCalls = 1
	exec := NewExecutor(cfg, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	recording := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}
	for i := 0; i < 2; i++ {
		_ = exec.Execute(context.Background(), "rerank", func(context.Context) error {
			return errFlaky
		}, recording)
	}

	err := exec.Execute(context.Background(), "rerank", func(context.Context) error { return nil }, recording)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("rerank circuit should be open, got %v", err)
	}
	if err := exec.Execute(context.Background(), "generate", func(context.Context) error { return nil }, recording); err != nil {
		t.Fatalf("an open rerank circuit must not affect generate: %v", err)
	}
}
