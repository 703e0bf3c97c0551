package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"worker-proxy-server/models"
)

func newSubmitCmd(load configLoader) *cobra.Command {
	var (
		kind    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Run one execution in-process with the payload read from stdin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			cfg.Warm.Enabled = false

			payload, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}
			if strings.TrimSpace(string(payload)) == "" {
				return errors.New("payload on stdin is empty")
			}

			a, err := wireApp(cfg, false)
			if err != nil {
				return err
			}

			response, err := a.proxy.Submit(cmd.Context(), models.SubmitRequest{
				Kind:      kind,
				Payload:   string(payload),
				TimeoutMs: timeout.Milliseconds(),
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(response)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "cli", "session kind recorded in the ledger")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "run timeout (0 uses worker.run_timeout)")
	return cmd
}
