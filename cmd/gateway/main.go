/**
 * @description
 * This is the main entry point for the wallet gateway. It initializes and
 * wires together all the components of the application: configuration, the
 * structured logger, session persistence (file or Redis), the ledger client,
 * the verification engine, the loan and wallet workflows, the scan runner,
 * and the HTTP router. Finally, it starts the HTTP server and shuts it down
 * gracefully on SIGINT/SIGTERM.
 */
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/swiftlend/wallet-gateway/internal/api"
	"github.com/swiftlend/wallet-gateway/internal/config"
	"github.com/swiftlend/wallet-gateway/internal/loan"
	"github.com/swiftlend/wallet-gateway/internal/scan"
	"github.com/swiftlend/wallet-gateway/internal/session"
	"github.com/swiftlend/wallet-gateway/internal/verify"
	"github.com/swiftlend/wallet-gateway/internal/wallet"
	"github.com/swiftlend/wallet-gateway/pkg/ledgerclient"
)

func main() {
	// Load .env file for local development. In production, env vars are set directly.
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot load config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Session persistence: local state directory by default, Redis when
	// configured.
	var persister session.Persister
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Error("could not reach redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		persister = session.NewRedisPersister(client)
		logger.Info("session persistence on redis")
	default:
		fp, err := session.NewFilePersister(cfg.StateDir)
		if err != nil {
			logger.Error("could not prepare state directory", "dir", cfg.StateDir, "error", err)
			os.Exit(1)
		}
		persister = fp
		logger.Info("session persistence on disk", "dir", cfg.StateDir)
	}

	sessions := session.NewStore(persister, logger)
	sessions.Restore(ctx)

	ledger := ledgerclient.NewClient(cfg.LedgerBaseURL, cfg.LedgerAPIKey)
	engine := verify.NewEngine(ledger, logger)
	scanner := scan.NewRunner(sessions, ledger, logger, cfg.ScanTick())
	loans := loan.NewWorkflow(sessions, engine, ledger, logger, nil)
	wallets := wallet.NewWorkflow(sessions, engine, ledger, persister, logger)
	wallets.RestoreSnapshot(ctx)

	handlers := api.NewHandlers(
		sessions, engine, scanner, loans, wallets, ledger, logger,
		[]byte(cfg.JWTSigningKey), cfg.SessionTokenTTL(),
	)
	router := api.Routes(handlers, []byte(cfg.JWTSigningKey), cfg.AllowedOrigins())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		logger.Info("starting gateway", "port", cfg.ServerPort, "ledger", cfg.LedgerBaseURL)
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

	// Let any in-flight account lookups settle before exit.
	engine.Wait()
	logger.Info("gateway stopped")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
