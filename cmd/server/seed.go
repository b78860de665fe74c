package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"compliancehub/internal/app"
	"compliancehub/internal/platform/config"
)

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo accounts if they do not exist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Database.Driver == config.DriverMemory {
				log.Warn("memory backend is not persistent; serve seeds it at startup")
				return nil
			}
			// Seeding needs only the backend and identity service.
			cfg.Kafka.Brokers = nil
			cfg.Redis.URL = ""
			cfg.Policy.File = ""
			a, err := app.Build(cmd.Context(), cfg, log, app.Options{
				Registerer: prometheus.NewRegistry(),
				Migrate:    true,
			})
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.Identity.Seed(cmd.Context())
			if err != nil {
				return err
			}
			log.Info("seed complete", "created", created)
			return nil
		},
	}
}
