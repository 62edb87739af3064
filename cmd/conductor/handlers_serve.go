package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/conductorhq/conductor/internal/agentlock"
	"github.com/conductorhq/conductor/internal/agentloop"
	"github.com/conductorhq/conductor/internal/agentmem"
	"github.com/conductorhq/conductor/internal/broadcaster"
	"github.com/conductorhq/conductor/internal/config"
	"github.com/conductorhq/conductor/internal/convrepo"
	"github.com/conductorhq/conductor/internal/ctxrepo"
	"github.com/conductorhq/conductor/internal/flow"
	"github.com/conductorhq/conductor/internal/llmgw"
	"github.com/conductorhq/conductor/internal/observability"
	"github.com/conductorhq/conductor/internal/sandboxgw"
	"github.com/conductorhq/conductor/internal/toolcat"
	"github.com/conductorhq/conductor/internal/toolkit"
	"github.com/conductorhq/conductor/internal/web"
)

// runServe implements the serve command: load config, open repositories,
// build the LLM provider and sandbox gateway, wire the tool registry, and
// run the HTTP server until a shutdown signal arrives.
func runServe(cmd *cobra.Command, configPath string, debug bool) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Info("configuration loaded",
		"http_port", cfg.Server.HTTPPort,
		"llm_provider", cfg.LLM.DefaultProvider,
		"sandbox_driver", cfg.Sandbox.Driver,
	)

	ctx := cmd.Context()

	contextRepo, err := ctxrepo.NewPostgresRepository(cfg.Database.ContextRepoConfig())
	if err != nil {
		return fmt.Errorf("open context repository: %w", err)
	}
	eventsRepo, err := convrepo.NewPostgresRepository(cfg.Database.EventsRepoConfig())
	if err != nil {
		return fmt.Errorf("open events repository: %w", err)
	}

	locks := agentlock.New(agentlock.DefaultLockTimeout)
	bc := broadcaster.New(eventsRepo, locks)

	gateway, err := sandboxgw.New(ctx, cfg.Sandbox.GatewayConfig())
	if err != nil {
		return fmt.Errorf("build sandbox gateway: %w", err)
	}

	provider, err := cfg.LLM.BuildProvider(ctx)
	if err != nil {
		return fmt.Errorf("build llm provider: %w", err)
	}

	metrics := observability.NewMetrics()
	bc.WithMetrics(metrics)
	obsLogger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName: "conductor",
	})
	defer func() { _ = shutdownTracer(context.Background()) }()

	stopMetricsServer := serveMetrics(cfg.Server.Host, cfg.Server.MetricsPort, logger)
	defer stopMetricsServer()

	runner := web.NewAgentRunner(controllerFactory(contextRepo, bc, gateway, provider, tracer, metrics, obsLogger), logger)

	handler, err := web.NewHandler(&web.Config{
		ContextRepo: contextRepo,
		Events:      eventsRepo,
		Broadcaster: bc,
		Gateway:     gateway,
		Runner:      runner,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("build http handler: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	server := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

// controllerFactory builds a per-agent flow.Controller on demand, reading
// the agent's stored model/provider choice from its AgentContext and
// registering the sandbox-backed tool set every agent shares.
func controllerFactory(contextRepo ctxrepo.Repository, bc *broadcaster.Broadcaster, gateway sandboxgw.Gateway, provider llmgw.Provider, tracer *observability.Tracer, metrics *observability.Metrics, obsLogger *observability.Logger) web.ControllerFactory {
	return func(ctx context.Context, agentID string) (*flow.Controller, error) {
		ac, err := contextRepo.Get(ctx, agentID)
		if err != nil {
			return nil, fmt.Errorf("load agent context: %w", err)
		}

		model := ac.Agent.Model

		registry := toolkit.NewRegistry()
		registry.Register(toolcat.NewShellTool(gateway))
		registry.Register(toolcat.NewFileTool(gateway))
		registry.Register(toolcat.NewBrowserTool(gateway))

		invoker := toolkit.NewInvoker(registry, toolkit.DefaultInvokerConfig()).WithMetrics(metrics)
		emitter := agentloop.NewBroadcasterEmitter(bc, agentID)

		plannerMem := agentmem.New(ac.Agent.PlannerMemory.Config).WithObservability(agentID+":planner", metrics)
		executorMem := agentmem.New(ac.Agent.ExecutionMemory.Config).WithObservability(agentID+":executor", metrics)

		planner := agentloop.NewPlanner(plannerMem, provider, emitter, model).WithObservability(tracer, metrics, obsLogger)
		executor := agentloop.NewExecutor(executorMem, provider, registry, invoker, emitter, model).WithObservability(tracer, metrics, obsLogger)

		return flow.New(planner, executor, plannerMem, executorMem, emitter), nil
	}
}

// serveMetrics starts a best-effort HTTP server exposing /metrics on its own
// port, separate from the agent-facing API server, returning a func that
// shuts it down. A listen failure (e.g. port already bound) is logged but
// does not fail serve startup, since metrics scraping is not on the agent
// request path.
func serveMetrics(host string, port int, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", host, port), Handler: mux}

	go func() {
		logger.Info("serving metrics", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
}
