package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/entrhq/quatro-rpa/pkg/logging"
)

func (a *app) statusCmd() *cobra.Command {
	var serveAddr string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the published browser session status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			client, err := a.redisClient()
			if err != nil {
				return err
			}
			defer client.Close()
			publisher := a.redisPublisher(client)

			if serveAddr != "" {
				return serveStatus(ctx, newStatusServer(serveAddr, publisher), logging.NewLogger("status"))
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(publisher.Get(ctx)); err != nil {
				return fmt.Errorf("failed to write status: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&serveAddr, "serve", "", "serve the status endpoint on this address instead of printing once")
	return cmd
}
