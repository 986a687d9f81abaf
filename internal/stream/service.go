package stream

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/usestring/schema-harvester/internal/config"
	"github.com/usestring/schema-harvester/internal/management"
	"github.com/usestring/schema-harvester/internal/metrics"
	"github.com/usestring/schema-harvester/internal/registry"
	"github.com/usestring/schema-harvester/internal/selector"
)

// OpenStore opens the registry configured in cfg.
func OpenStore(ctx context.Context, cfg config.Registry) (registry.Store, error) {
	switch cfg.Kind {
	case config.RegistryRedis:
		return registry.NewRedis(ctx, cfg.Redis)
	default:
		return registry.NewMemory(cfg.Size)
	}
}

// RunService wires Kafka, the registry and the management server from cfg
// and runs until ctx is cancelled or a component fails.
func RunService(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	sourceSettings, err := ParseSettings(cfg.SourceProperties())
	if err != nil {
		return fmt.Errorf("kafka source configuration: %w", err)
	}
	sinkSettings, err := ParseSettings(cfg.SinkProperties())
	if err != nil {
		return fmt.Errorf("kafka sink configuration: %w", err)
	}
	for _, p := range sourceSettings.Ignored {
		logger.Warn("ignoring unsupported kafka property", "scope", "source", "property", p)
	}
	for _, p := range sinkSettings.Ignored {
		logger.Warn("ignoring unsupported kafka property", "scope", "sink", "property", p)
	}

	sel, err := selector.Compile(cfg.Source.Select)
	if err != nil {
		return fmt.Errorf("source select: %w", err)
	}

	topics, err := ResolveTopics(ctx, NewKafkaTopics(sourceSettings), cfg.Source.Topics, cfg.Sink.Topic)
	if err != nil {
		return err
	}
	logger.Info("resolved source topics", "topics", topics, "sink", cfg.Sink.Topic)

	store, err := OpenStore(ctx, cfg.Registry)
	if err != nil {
		return fmt.Errorf("opening registry: %w", err)
	}
	defer store.Close()

	m := metrics.New(true)

	source, err := NewKafkaSource(sourceSettings, topics, logger)
	if err != nil {
		return err
	}
	defer source.Close()

	sink, err := NewKafkaSink(sinkSettings, cfg.Sink.Topic, logger)
	if err != nil {
		return err
	}
	defer sink.Close()

	dispatcher, err := NewDispatcher(source, sink, Options{
		Topics:         topics,
		QueueSize:      cfg.Source.QueueSize,
		PublishRetries: cfg.Sink.PublishRetries,
		Selector:       sel,
		Resume:         cfg.Registry.Resume,
		Store:          store,
		Metrics:        m,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	metricsHandler := m.Handler()
	if !cfg.Management.Metrics {
		metricsHandler = nil
	}
	mgmt := management.New(store, metricsHandler, logger)

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	g.Go(func() error {
		defer stop()
		return dispatcher.Run(runCtx)
	})
	g.Go(func() error {
		return mgmt.ListenAndServe(runCtx, cfg.Management.Port)
	})
	return g.Wait()
}
