// Command table-server serves the artworks table over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/artic-table/internal/config"
	"github.com/Sternrassler/artic-table/pkg/client"
	"github.com/Sternrassler/artic-table/pkg/logging"
	"github.com/Sternrassler/artic-table/pkg/view"
	"github.com/rs/zerolog/log"
)

func main() {
	logging.Setup(logging.DefaultConfig())

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	_, logFile, err := logging.SetupFile(cfg.LoggingConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}
	defer logFile.Close()
	logger := logging.NewLogger(logging.ComponentServer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := config.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	if redisClient != nil {
		defer redisClient.Close()
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis, shared rate limit tracking enabled")
	}

	clientCfg := cfg.ClientConfig()
	clientCfg.Redis = redisClient
	articClient, err := client.New(clientCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create artworks client")
	}
	defer articClient.Close()

	v := view.New(articClient, cfg.PaginationConfig())
	if err := v.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("Initial page load failed, serving empty table")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newServer(v, redisClient, cfg.Bulk.PageTimeout).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", cfg.Server.Addr).
			Str("base_url", cfg.API.BaseURL).
			Str("user_agent", cfg.API.UserAgent).
			Msg("Starting table server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Shutdown failed")
	}
}
