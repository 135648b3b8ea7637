package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/senigami/factorywatch/internal/config"
	"github.com/senigami/factorywatch/internal/status"
	"github.com/senigami/factorywatch/internal/telemetry"
	"github.com/senigami/factorywatch/internal/watcher"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[watcher] ", log.LstdFlags|log.Lmsgprefix)

	ctx := context.Background()
	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "factorywatch",
		Exporter:     cfg.Trace.Exporter,
		OTLPEndpoint: cfg.Trace.OTLPEndpoint,
		OTLPInsecure: cfg.Trace.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}

	session, err := watcher.New(logger, cfg)
	if err != nil {
		logger.Fatalf("watcher setup failed: %v", err)
	}

	app := status.NewServer(logger, session)
	httpServer := &http.Server{
		Addr:         cfg.Status.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	session.Start(ctx)
	logger.Printf("watching %s as session %s", cfg.Server.URL, session.SessionID())

	go func() {
		logger.Printf("status listening on %s", cfg.Status.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("status server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
	session.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Printf("tracing shutdown failed: %v", err)
	}
}
