// Command harvester-mcp serves the schema tools over MCP on stdio.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/usestring/schema-harvester/pkg/mcpsrv"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to the YAML configuration (default: $HARVESTER_CONFIG or config.yaml)")
	redisAddr := flag.String("redis", "", "Redis address of the schema registry to expose as resources")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Logging, Redis and other settings come from the configuration file and
	// HARVESTER_* environment variables (see internal/config).
	server, err := mcpsrv.NewServer(ctx,
		mcpsrv.WithConfigFile(*configPath),
		mcpsrv.WithRedis(*redisAddr),
		mcpsrv.WithVersion(version),
	)
	if err != nil {
		slog.Error("failed to create MCP server", "error", err)
		os.Exit(1)
	}
	defer server.Close()

	slog.Info("starting schema harvester MCP server on stdio", "version", version)
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
