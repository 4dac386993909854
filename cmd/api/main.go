package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/hoteldesk/concierge/internal/adapters/http"
	"github.com/hoteldesk/concierge/internal/bootstrap"
	"github.com/hoteldesk/concierge/internal/config"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	go app.Sessions.Run(ctx)

	router := httpadapter.NewRouter(httpadapter.RouterDeps{
		Concierge:     app.Concierge,
		Catalog:       app.Catalog,
		Upstreams:     app.Upstreams,
		Metrics:       app.Metrics,
		Logger:        app.Logger,
		RatePerSecond: cfg.ChatRatePerSecond,
		RateBurst:     cfg.ChatRateBurst,
	}).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		app.Logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("api_shutdown_error", "error", err)
	}
}
