/**
 * @description
 * This is the entry point for the standalone ledger simulator. It serves
 * the in-memory ledger/identity API the gateway talks to, so the whole
 * system runs locally without any external service.
 */
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/swiftlend/wallet-gateway/internal/ledgersim"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	port := os.Getenv("LEDGERSIM_PORT")
	if port == "" {
		port = "5000"
	}

	var latency time.Duration
	if raw := os.Getenv("LEDGERSIM_LOOKUP_LATENCY_MS"); raw != "" {
		var millis int
		if _, err := fmt.Sscanf(raw, "%d", &millis); err == nil && millis > 0 {
			latency = time.Duration(millis) * time.Millisecond
		}
	}

	sim := ledgersim.New(logger, ledgersim.Options{
		APIKey:        os.Getenv("LEDGER_API_KEY"),
		LookupLatency: latency,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: sim.Router(),
	}

	go func() {
		logger.Info("starting ledger simulator", "port", port, "lookup_latency", latency)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received, gracefully shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	logger.Info("ledger simulator stopped")
}
