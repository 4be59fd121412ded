package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/feedsync/feedsync/internal/config"
	"github.com/feedsync/feedsync/internal/server"
	"github.com/feedsync/feedsync/internal/store"
	"github.com/feedsync/feedsync/internal/ws"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Setup logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	// Load config
	cfg, err := config.LoadDevRelayConfig()
	if err != nil {
		logger.Error("failed to load config", zap.Error(err))
		return 1
	}

	logger.Info("configuration loaded",
		zap.String("port", cfg.Port),
		zap.String("name", cfg.Name),
		zap.String("fixturePath", cfg.FixturePath),
		zap.Bool("authEnabled", cfg.Token != ""),
		zap.Bool("wsEnabled", cfg.WSEnabled),
	)

	// Create store
	st := store.New(logger)

	// Load fixture data (optional)
	if cfg.FixturePath != "" {
		logger.Info("loading fixture...", zap.String("path", cfg.FixturePath))
		start := time.Now()
		if err := st.LoadFixture(cfg.FixturePath); err != nil {
			logger.Error("failed to load fixture", zap.Error(err))
			return 1
		}
		logger.Info("fixture loaded",
			zap.Int("users", len(st.Users())),
			zap.Duration("duration", time.Since(start)),
		)
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// WebSocket hub (optional)
	var hub *ws.Hub
	if cfg.WSEnabled {
		hub = ws.NewHub(cfg.Name, logger)
		go hub.Run(ctx)
		logger.Info("WebSocket enabled")
	}

	// Create server
	srv := server.NewServer(st, hub, cfg, logger)

	// Create router
	router, err := server.NewRouter(srv, logger)
	if err != nil {
		logger.Error("failed to create router", zap.Error(err))
		return 1
	}

	// Setup HTTP server
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting relay", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down relay...")

	// Cancel context to stop the hub
	cancel()

	// Graceful HTTP server shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("relay shutdown error", zap.Error(err))
		return 1
	}

	logger.Info("relay stopped")
	return 0
}
