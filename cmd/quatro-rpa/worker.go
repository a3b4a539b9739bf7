package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/entrhq/quatro-rpa/pkg/browser"
	"github.com/entrhq/quatro-rpa/pkg/jobs"
	"github.com/entrhq/quatro-rpa/pkg/logging"
)

func (a *app) workerCmd() *cobra.Command {
	var (
		statusAddr  string
		skipInstall bool
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process queued RPA jobs one at a time until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runWorker(cmd.Context(), statusAddr, skipInstall)
		},
	}
	cmd.Flags().StringVar(&statusAddr, "status-addr", "", "serve the session status endpoint on this address (e.g. :8081)")
	cmd.Flags().BoolVar(&skipInstall, "skip-install", false, "assume the playwright driver and chromium are already installed")
	return cmd
}

func (a *app) runWorker(ctx context.Context, statusAddr string, skipInstall bool) error {
	log := logging.NewLogger("worker")

	client, err := a.redisClient()
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	pool, err := pgxpool.New(ctx, a.cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to create database pool: %w", err)
	}
	defer pool.Close()

	store, err := jobs.NewPostgresStore(ctx, pool, logging.NewLogger("store"))
	if err != nil {
		return err
	}

	cipher, err := jobs.NewCipher(a.cfg.Security.EncryptionKey, a.cfg.Security.SecretKey)
	if err != nil {
		return err
	}

	publisher := a.redisPublisher(client)
	svc, manager, err := a.automation(browser.NewPlaywright(skipInstall), publisher)
	if err != nil {
		return err
	}
	defer shutdownSessions(ctx, manager, log)

	pdfQueue := jobs.NewRedisQueue(client, a.cfg.Redis.PDFQueue)
	rpaQueue := jobs.NewRedisQueue(client, a.cfg.Redis.RPAQueue)
	runner := jobs.NewRunner(store, cipher, svc, pdfQueue, logging.NewLogger("runner"))
	worker := jobs.NewWorker(rpaQueue, runner, nil, log)

	if statusAddr != "" {
		srv := newStatusServer(statusAddr, publisher)
		go func() {
			if err := serveStatus(ctx, srv, log); err != nil {
				log.Errorf("%v", err)
			}
		}()
	}

	log.Infof("Worker consuming %s (headless=%t, idle=%ds, cooldown=%ds)",
		rpaQueue.Name(), a.cfg.Browser.Headless, a.cfg.Browser.IdleSeconds, a.cfg.Browser.CooldownSeconds)
	return worker.Run(ctx)
}
