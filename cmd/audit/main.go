package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hoteldesk/concierge/internal/config"
	"github.com/hoteldesk/concierge/internal/core/domain"
	"github.com/hoteldesk/concierge/internal/infrastructure/queue/nats"
	"github.com/hoteldesk/concierge/internal/infrastructure/repository/postgres"
	"github.com/hoteldesk/concierge/internal/infrastructure/resilience"
	"github.com/hoteldesk/concierge/internal/observability/logging"
	"github.com/hoteldesk/concierge/internal/observability/metrics"
)

const service = "audit"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := postgres.NewTurnLogRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig(), logger)
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		log.Fatalf("init turn queue: %v", err)
	}
	defer queue.Close()

	workerMetrics := metrics.NewWorkerMetrics(service)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsMux(workerMetrics),
	}
	go func() {
		logger.Info("audit_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("metrics server error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("audit_subscribed", "subject", cfg.NATSSubject)
	err = queue.SubscribeTurnLogged(ctx, func(handlerCtx context.Context, record domain.TurnRecord) error {
		if !record.CreatedAt.IsZero() {
			workerMetrics.ObserveQueueLag(service, time.Since(record.CreatedAt))
		}

		workerMetrics.StartTurn()
		start := time.Now()

		saveCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
		defer cancel()
		saveErr := repo.SaveTurn(saveCtx, record)

		workerMetrics.FinishTurn(service, time.Since(start), saveErr)
		return saveErr
	})
	if err != nil {
		log.Fatalf("audit subscribe error: %v", err)
	}
}

func metricsMux(m *metrics.WorkerMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
