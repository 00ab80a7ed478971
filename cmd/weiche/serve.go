package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway",
	Long:  `Start the HTTP gateway and serve until SIGINT or SIGTERM, then drain in-flight requests.`,
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	g, err := newGateway(cfg)
	if err != nil {
		return err
	}
	defer g.Close()

	// Fail fast on a broken route table; later parse failures surface per request.
	table, err := g.router.Table()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if g.routesFile != nil && cfg.Routes.Watch {
		go watchRoutes(ctx, g)
	}

	slog.Info("weiche starting",
		"version", Version,
		"addr", listenAddr(cfg),
		"routes", len(table.Names()),
		"auth", cfg.Auth.Enabled(),
		"tools", cfg.Tools.Enabled,
		"metrics", cfg.Observability.Metrics.Enabled,
	)
	return g.server.ListenAndServeContext(ctx)
}

// watchRoutes follows the routes file and logs the route count after each
// reload. Table logs the error when the new contents do not parse.
func watchRoutes(ctx context.Context, g *gateway) {
	err := g.routesFile.Watch(ctx, func() {
		if t, err := g.router.Table(); err == nil {
			slog.Info("routes updated", "routes", len(t.Names()))
		}
	})
	if err != nil {
		slog.Error("routes file watch stopped", "path", g.routesFile.Path(), "error", err)
	}
}
