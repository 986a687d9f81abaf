package mcpsrv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/schema-harvester/internal/config"
	"github.com/usestring/schema-harvester/internal/logging"
	"github.com/usestring/schema-harvester/internal/mcp"
	"github.com/usestring/schema-harvester/internal/mcp/tools"
	"github.com/usestring/schema-harvester/internal/registry"
)

// Server is the schema harvester MCP server.
// It wraps the internal implementation and provides extension points.
type Server struct {
	internal   *mcp.Server
	deps       *Deps
	store      registry.Store
	logCleanup func() error
}

// NewServer creates a new MCP server with the builtin schema tools.
//
// Configuration is read like the harvester service reads it: config.yaml
// (or the file given with WithConfigFile) and HARVESTER_* environment
// variables. When the registry is Redis backed, the harvested schemas are
// exposed as resources.
func NewServer(ctx context.Context, opts ...Option) (*Server, error) {
	cfg := &serverConfig{version: "dev"}
	for _, opt := range opts {
		opt(cfg)
	}

	conf, err := config.Load(cfg.configFile)
	if err != nil {
		return nil, err
	}

	logCfg := conf.Logging
	if cfg.logLevel != "" {
		logCfg.Level = cfg.logLevel
	}
	if cfg.logFile != "" {
		logCfg.FilePath = cfg.logFile
	}
	logCleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}

	var store registry.Store
	if !cfg.noRegistry && (cfg.redisAddr != "" || conf.Registry.Kind == config.RegistryRedis) {
		redisCfg := conf.Registry.Redis
		if cfg.redisAddr != "" {
			redisCfg.Addr = cfg.redisAddr
		}
		rs, err := registry.NewRedis(ctx, redisCfg)
		if err != nil {
			_ = logCleanup()
			return nil, fmt.Errorf("failed to open schema registry: %w", err)
		}
		store = rs
		slog.Info("serving harvested schemas", "redis", redisCfg.Addr)
	}

	toolDeps := &tools.Deps{Store: store}
	deps := &Deps{tools: toolDeps}

	internalOpts := []mcp.ServerOption{mcp.WithVersion(cfg.version)}
	if !cfg.disableBuiltinTools {
		internalOpts = append(internalOpts, mcp.WithBuiltinTools())
	}
	if !cfg.disableBuiltinPrompts {
		internalOpts = append(internalOpts, mcp.WithBuiltinPrompts())
	}

	for _, fn := range cfg.toolRegistrations {
		internalOpts = append(internalOpts, mcp.WithCustomRegistration(fn))
	}
	for _, fn := range cfg.promptRegistrations {
		internalOpts = append(internalOpts, mcp.WithCustomRegistration(fn))
	}
	for _, fn := range cfg.resourceRegistrations {
		internalOpts = append(internalOpts, mcp.WithCustomRegistration(fn))
	}
	for _, fn := range cfg.deferredToolRegistrations {
		internalOpts = append(internalOpts, mcp.WithCustomRegistration(func(srv *sdkmcp.Server) {
			fn(srv, deps)
		}))
	}

	internal, err := mcp.NewServer(toolDeps, internalOpts...)
	if err != nil {
		_ = logCleanup()
		if store != nil {
			_ = store.Close()
		}
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return &Server{
		internal:   internal,
		deps:       deps,
		store:      store,
		logCleanup: logCleanup,
	}, nil
}

// Run starts the MCP server with stdio transport.
// The server runs until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.internal.Run(ctx)
}

// Close cleans up server resources.
func (s *Server) Close() error {
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.logCleanup != nil {
		errs = append(errs, s.logCleanup())
	}
	return errors.Join(errs...)
}

// Deps returns the dependencies for building custom tools.
func (s *Server) Deps() *Deps {
	return s.deps
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *sdkmcp.Server {
	return s.internal.MCPServer()
}
