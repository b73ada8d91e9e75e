package cmd

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/kilianp07/unitcommit/api"
	"github.com/kilianp07/unitcommit/app"
	"github.com/kilianp07/unitcommit/infra/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the solver over HTTP",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	return withService(func(ctx context.Context, svc *app.Service) error {
		cfg := svc.Config()
		log := logger.New("api")
		router := api.NewRouter(cfg.API, svc, svc.Journal(), prometheus.DefaultGatherer, log)
		return api.Serve(ctx, cfg.API, router, log)
	})
}
