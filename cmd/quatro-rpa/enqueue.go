package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/entrhq/quatro-rpa/pkg/jobs"
)

func (a *app) enqueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <proceso-id>...",
		Short: "Queue RPA jobs for existing procesos",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid proceso id %q", arg)
				}
				ids = append(ids, id)
			}

			client, err := a.redisClient()
			if err != nil {
				return err
			}
			defer client.Close()

			queue := jobs.NewRedisQueue(client, a.cfg.Redis.RPAQueue)
			for _, id := range ids {
				task := jobs.NewTask(jobs.KindRPA, id)
				if err := queue.Enqueue(cmd.Context(), task); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queued proceso %d as %s\n", id, task.ID)
			}
			return nil
		},
	}
}
