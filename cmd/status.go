package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/spf13/cobra"

	"worker-proxy-server/middleware"
	"worker-proxy-server/models"
)

func newStatusCmd() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
		trace   bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show gate occupancy of a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if trace {
				var seg *xray.Segment
				ctx, seg = xray.BeginSegment(ctx, "worker-proxy-status")
				defer seg.Close(nil)
			}

			client := middleware.NewHTTPClient(timeout, trace)
			status, err := fetchQueueStatus(ctx, client, addr)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "active %d/%d, queued %d/%d\n",
				status.Active, status.MaxConcurrent, status.Queued, status.MaxQueue)
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "base URL of the server")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	cmd.Flags().BoolVar(&trace, "trace", false, "record the request in X-Ray")
	return cmd
}

func fetchQueueStatus(ctx context.Context, client *http.Client, addr string) (models.QueueStatus, error) {
	var status models.QueueStatus

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(addr, "/")+"/api/queue", nil)
	if err != nil {
		return status, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return status, fmt.Errorf("fetch queue status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return status, fmt.Errorf("fetch queue status: unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return status, fmt.Errorf("decode queue status: %w", err)
	}
	return status, nil
}
