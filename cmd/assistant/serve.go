package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/agent"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/config"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/confirm"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/google"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/kvstore"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/llms"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/observability"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/query"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/server"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/tenant"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/tools"
)

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Port int `help:"Port override." default:"0"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	if err := initLogging(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File, cli); err != nil {
		return err
	}

	if _, err := observability.Init(); err != nil {
		return err
	}

	pool := config.NewDBPool()
	defer pool.Close()

	db, err := pool.Get(&cfg.Database)
	if err != nil {
		return err
	}

	store := kvstore.NewMemoryStore()
	resolver := tenant.NewResolver(db, store, cfg.Agent.TenantCacheTTL.Std())
	runner := query.NewRunner(db, cfg.Database.Driver, cfg.Tools.Query.MaxRows,
		time.Duration(cfg.Tools.Query.TimeoutSeconds)*time.Second)

	var calendarService *google.CalendarService
	var gmailService *google.GmailService
	if cfg.Tools.Google.Enabled {
		tokenStore := google.NewTokenStore(db, cfg.Tools.Google)
		calendarService = google.NewCalendarService(tokenStore)
		gmailService = google.NewGmailService(tokenStore)
	}

	gate := confirm.NewGate(store,
		tools.NewActionRunner(calendarService, gmailService),
		cfg.Agent.ConfirmationTTL.Std())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	toolRegistry, err := tools.BuildRegistry(ctx, cfg.Tools, tools.BuildDeps{
		Resolver: resolver,
		Runner:   runner,
		Gate:     gate,
		Calendar: calendarService,
		Gmail:    gmailService,
	})
	if err != nil {
		return err
	}
	slog.Info("tool catalog ready", "tools", toolRegistry.Names())

	providers, err := llms.NewProviderRegistry(cfg.LLMs)
	if err != nil {
		return err
	}
	defer providers.Close()

	orchestrator := agent.New(providers, toolRegistry, tools.NewExecutor(toolRegistry),
		cfg.Routing, cfg.Agent)

	srv := server.New(cfg.Server, orchestrator, gate)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
