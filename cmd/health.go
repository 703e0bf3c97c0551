package cmd

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"worker-proxy-server/logger"
	"worker-proxy-server/services"
)

func newHealthCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the local worker binary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			executor := services.NewProcessExecutor(services.ExecutorConfig{Binary: cfg.Worker.Binary}, logger.New(cfg.Log.Level, cfg.Log.Format))
			health := executor.Probe(cmd.Context())

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(health); err != nil {
				return err
			}
			if !health.WorkerAvailable {
				return errors.New("worker unavailable")
			}
			return nil
		},
	}
}
