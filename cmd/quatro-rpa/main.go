// Package main provides the quatro-rpa command: the worker that checks
// vehicle plates against the ENARGAS portal, plus operator commands to run a
// single query, read the published session status and enqueue jobs by hand.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/entrhq/quatro-rpa/pkg/config"
	"github.com/entrhq/quatro-rpa/pkg/logging"
)

const version = "0.1.0"

func main() {
	// Create context with signal handling
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nShutting down gracefully...")
		cancel()
	}()

	err := newRootCmd().ExecuteContext(ctx)
	_ = logging.NewLogger("main").Sync()
	cancel()
	if err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

// app carries what the persistent pre-run resolves for every subcommand.
type app struct {
	configFile string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "quatro-rpa",
		Short:         "ENARGAS compliance-check automation",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configFile)
			if err != nil {
				return err
			}
			if err := logging.Initialize(cfg.Logging, nil); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}
			a.cfg = cfg
			logging.NewLogger("main").Debugf("quatro-rpa v%s, run %s", version, logging.GetRunID())
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "path to a YAML config file")
	root.SetVersionTemplate("quatro-rpa v{{.Version}}\n")

	root.AddCommand(
		a.workerCmd(),
		a.runCmd(),
		a.statusCmd(),
		a.enqueueCmd(),
	)
	return root
}
