package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/tb-variance/pkg/server"
)

var serveAddr string

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the variance analysis over HTTP",
	Long: `Start an HTTP server exposing the pipeline.

Endpoints:
- GET  /health
- POST /api/v1/analyze  (multipart: current, prior, optional threshold_percent,
                         absolute_threshold, policy)
- POST /api/v1/export   (same fields, ?format=csv|xlsx)

The server keeps no state between requests. When server.require_principal is
set, requests must carry the identity header configured by
server.principal_header; the value is an opaque identifier set by an upstream
proxy.

Example:
  tb-variance serve --addr :9090`,
	Args: cobra.NoArgs,
	Run:  runServe,
}

func init() {
	addVarianceFlags(serveCmd.Flags())
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from server.addr)")
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	if changed(cmd.Flags(), "addr") {
		cfg.Server.Addr = serveAddr
	}
	if err := cfg.Validate([]string{"server", "addr"}); err != nil {
		exitOnError(err, "invalid configuration")
	}

	pcfg, err := cfg.Pipeline()
	exitOnError(err, "failed to build pipeline configuration")

	srv := server.New(server.Options{
		Pipeline:         pcfg,
		PrincipalHeader:  cfg.Server.PrincipalHeader,
		RequirePrincipal: cfg.Server.RequirePrincipal,
	})

	// Graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exitOnError(srv.ListenAndServe(ctx, cfg.Server.Addr), "server error")
}
