package cmd

import (
	"github.com/spf13/cobra"

	"worker-proxy-server/config"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "worker-proxy",
		Short:         "Bounded execution proxy for a streaming CLI worker",
		Long:          "worker-proxy admits executions through a fixed number of worker slots with a short FIFO queue, runs the worker as a subprocess, normalizes its streamed JSON output and keeps a ledger of recent sessions.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a yaml, toml or json config file")

	load := func() (*config.Config, error) {
		return config.Load(configPath)
	}

	rootCmd.AddCommand(
		newServeCmd(load),
		newSubmitCmd(load),
		newHealthCmd(load),
		newStatusCmd(),
	)

	return rootCmd
}
