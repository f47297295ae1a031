package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/nvandessel/alliance/internal/config"
	"github.com/nvandessel/alliance/internal/decision"
	"github.com/nvandessel/alliance/internal/engine"
	"github.com/nvandessel/alliance/internal/llm"
	"github.com/nvandessel/alliance/internal/logging"
	"github.com/nvandessel/alliance/internal/payoff"
	"github.com/nvandessel/alliance/internal/session"
	"github.com/nvandessel/alliance/internal/store"
	"github.com/spf13/cobra"
)

// app is the wired dependency graph shared by serve, mcp and play.
type app struct {
	cfg          *config.AllianceConfig
	logger       *slog.Logger
	table        *payoff.Table
	tableSource  string
	providerName string
	engine       *engine.Engine
	svc          *session.Service
	archive      *store.Archive
	roundLogger  *logging.RoundLogger
	closer       llm.Closer
}

// loadConfig reads the config named by --config (or the default location)
// and validates it.
func loadConfig(cmd *cobra.Command) (*config.AllianceConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newApp builds the payoff table, decision provider, engine and session
// service from cfg. The archive is opened only when withArchive is set and a
// path is configured.
func newApp(ctx context.Context, cfg *config.AllianceConfig, withArchive bool) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logging.NewLogger(cfg.Logging.Level, os.Stderr),
	}

	table, source, err := payoff.Open(cfg.Payoff.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load payoff table: %w", err)
	}
	a.table, a.tableSource = table, source

	reasoner, err := llm.NewReasoner(ctx, llm.ClientConfig{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Model:    cfg.LLM.Model,
		Timeout:  cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}
	if c, ok := reasoner.(llm.Closer); ok {
		a.closer = c
	}

	var chatter decision.Chatter
	var provider decision.Provider
	if reasoner == nil || !reasoner.Available() {
		s := decision.NewScripted(table)
		provider, chatter, a.providerName = s, s, s.Name()
	} else {
		rp := decision.NewReasonerProvider(reasoner, table, a.logger)
		provider, chatter, a.providerName = rp, rp, rp.Name()
	}

	a.roundLogger = logging.NewRoundLogger(cfg.Logging.DataDir, cfg.Logging.Level)
	a.engine = engine.New(table, provider,
		engine.WithLogger(a.logger),
		engine.WithRoundLogger(a.roundLogger),
	)

	opts := []session.ServiceOption{
		session.WithChatter(chatter),
		session.WithServiceLogger(a.logger),
	}
	if withArchive && cfg.Archive.Path != "" {
		archive, err := store.Open(ctx, cfg.Archive.Path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open archive: %w", err)
		}
		a.archive = archive
		opts = append(opts, session.WithArchiver(archive))
	}

	a.svc = session.NewService(session.NewRegistry(), a.engine, opts...)
	a.logger.Debug("app ready",
		"provider", a.providerName,
		"payoff_source", a.tableSource,
		"archive", cfg.Archive.Path,
	)
	return a, nil
}

// Close releases the llm client, the archive and the round log.
func (a *app) Close() error {
	a.roundLogger.Close()
	if a.closer != nil {
		a.closer.Close()
	}
	if a.archive != nil {
		return a.archive.Close()
	}
	return nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
