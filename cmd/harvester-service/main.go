// Command harvester-service consumes Kafka topics and publishes a JSON
// schema for every topic whenever the observed structure changes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/usestring/schema-harvester/internal/config"
	"github.com/usestring/schema-harvester/internal/logging"
	"github.com/usestring/schema-harvester/internal/stream"
)

func main() {
	// A missing .env file is fine; the environment may be set already.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("harvester-service", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to the YAML configuration (default: $HARVESTER_CONFIG or config.yaml)")
	printSchema := fs.Bool("config-schema", false, "print the JSON schema of the configuration file and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *printSchema {
		schema, err := config.JSONSchema()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, string(schema))
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	logCleanup, err := logging.Setup(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logCleanup()

	logger := slog.Default()
	logger.Info("starting schema harvester", "topics", cfg.Source.Topics, "sink", cfg.Sink.Topic, "registry", cfg.Registry.Kind)
	if err := stream.RunService(ctx, cfg, logger); err != nil {
		logger.Error("service stopped", "error", err)
		return err
	}
	logger.Info("service stopped")
	return nil
}
