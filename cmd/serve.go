package cmd

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"blissbuilder/internal/app"
	"blissbuilder/internal/metrics"
	"blissbuilder/internal/server"
	"blissbuilder/pkg/config"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve an HTTP API to trigger and inspect pipeline runs",
	Long: `Start an HTTP server. POST /runs starts a run (409 while one is in progress),
GET /runs lists the audit log, GET /runs/latest returns the last run, GET /metrics
exposes prometheus metrics.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	m := metrics.New()
	built, err := app.BuildService(ctx, cfg, app.BuildOptions{
		Logger:  slog.Default(),
		Metrics: m,
		Verbose: verbose,
	})
	if err != nil {
		return err
	}
	defer func() { _ = built.Close() }()

	srv := server.New(server.Options{
		Addr:     addr,
		Runner:   app.NewPipeline(built.Service),
		AuditLog: built.Service.Audit(),
		Metrics:  m.Handler(),
		Logger:   slog.Default(),
	})
	return srv.ListenAndServe(ctx)
}
