package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/alliance/internal/api"
	"github.com/nvandessel/alliance/internal/ratelimit"
	"github.com/nvandessel/alliance/internal/session"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the alliance HTTP API.

Simulations live in memory for the life of the process. When archive.path
is configured, every completed simulation is also written to a SQLite
archive that can be read back through /api/archive.

Examples:
  alliance serve                      # listen on 127.0.0.1:8000
  alliance serve --port 9000 --ttl 1h # prune finished simulations after an hour`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host, _ = cmd.Flags().GetString("host")
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port, _ = cmd.Flags().GetInt("port")
			}
			if cmd.Flags().Changed("ttl") {
				cfg.Server.SessionTTL, _ = cmd.Flags().GetDuration("ttl")
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := newApp(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := []api.Option{
				api.WithLogger(a.logger),
				api.WithRequestTimeout(cfg.Server.RequestTimeout),
				api.WithVersion(version),
			}
			if cfg.Server.RateLimit {
				opts = append(opts, api.WithLimits(ratelimit.DefaultLimits()))
			}
			if a.archive != nil {
				opts = append(opts, api.WithArchive(a.archive))
			}
			srv := api.NewServer(a.svc, opts...)

			addr := cfg.Server.Addr()
			a.logger.Info("alliance api listening",
				"addr", addr,
				"provider", a.providerName,
				"payoff_source", a.tableSource,
			)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.ListenAndServe(gctx, addr)
			})
			if ttl := cfg.Server.SessionTTL; ttl > 0 {
				g.Go(func() error {
					pruneLoop(gctx, a.svc, ttl)
					return nil
				})
			}
			return g.Wait()
		},
	}

	cmd.Flags().String("host", "", "Interface to bind (default from config, 127.0.0.1)")
	cmd.Flags().Int("port", 0, "Port to listen on (default from config or PORT, 8000)")
	cmd.Flags().Duration("ttl", 0, "Remove completed simulations idle for longer than this (0 keeps them)")

	return cmd
}

// pruneLoop removes completed simulations idle for ttl until ctx is done.
func pruneLoop(ctx context.Context, svc *session.Service, ttl time.Duration) {
	interval := ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.Prune(ttl)
		}
	}
}
