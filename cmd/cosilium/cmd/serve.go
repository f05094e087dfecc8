package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sozercan/cosilium/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the cosilium HTTP server.

The API lives under /api/v1: POST /analyze runs an analysis, GET /events
streams telemetry as Server-Sent Events, and the prompt, usage, activity and
config endpoints back the control plane UI.

Examples:
  # Start with defaults (0.0.0.0:8000)
  cosilium serve

  # Start on a custom port with JSON logs
  cosilium serve --port 9000 --log-format json`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "host address to bind to")
	serveCmd.Flags().String("port", "8000", "port to listen on")

	_ = v.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = v.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := []server.Option{
		server.WithRoster(a.roster),
		server.WithLogger(logger),
		server.WithHeartbeat(cfg.Telemetry.Heartbeat),
	}
	if a.store != nil {
		opts = append(opts, server.WithStore(a.store))
	}
	srv := server.New(*cfg, a.analyzer, a.bus, opts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}
