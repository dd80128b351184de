// Command artic-table browses the Art Institute of Chicago artworks
// collection in a terminal table with cross-page selection.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/artic-table/internal/config"
	"github.com/Sternrassler/artic-table/internal/tui"
	"github.com/Sternrassler/artic-table/pkg/client"
	"github.com/Sternrassler/artic-table/pkg/logging"
	"github.com/Sternrassler/artic-table/pkg/view"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "artic-table: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// The terminal belongs to the UI; logs go to a file or nowhere.
	logCfg := cfg.LoggingConfig()
	logCfg.Output = io.Discard
	_, logFile, err := logging.SetupFile(logCfg)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	redisClient, err := config.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	clientCfg := cfg.ClientConfig()
	clientCfg.Redis = redisClient
	articClient, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}
	defer articClient.Close()

	v := view.New(articClient, cfg.PaginationConfig())
	return tui.Run(ctx, v)
}
