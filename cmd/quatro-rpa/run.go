package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/entrhq/quatro-rpa/pkg/browser"
	"github.com/entrhq/quatro-rpa/pkg/enargas"
	"github.com/entrhq/quatro-rpa/pkg/logging"
	"github.com/entrhq/quatro-rpa/pkg/status"
)

// runOptions holds the flags of the run command.
type runOptions struct {
	username    string
	password    string
	headless    bool
	outDir      string
	skipInstall bool
}

func (a *app) runCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <plate>",
		Short: "Query one plate on the portal and save the certificate PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var headless *bool
			if cmd.Flags().Changed("headless") {
				headless = &opts.headless
			}
			launcher := browser.NewPlaywright(opts.skipInstall)
			return a.runOnce(cmd.Context(), cmd.OutOrStdout(), launcher, args[0], opts, headless)
		},
	}

	cmd.Flags().StringVarP(&opts.username, "user", "u", os.Getenv("ENARGAS_USER"), "portal username (default $ENARGAS_USER)")
	cmd.Flags().StringVarP(&opts.password, "password", "p", "", "portal password (default $ENARGAS_PASSWORD)")
	cmd.Flags().BoolVar(&opts.headless, "headless", true, "override the configured headless mode")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", ".", "directory the PDF is written to")
	cmd.Flags().BoolVar(&opts.skipInstall, "skip-install", false, "assume the playwright driver and chromium are already installed")
	return cmd
}

// runOnce runs a single automation with an in-memory status store, then
// closes the browser.
func (a *app) runOnce(ctx context.Context, out io.Writer, launcher browser.Launcher, plate string, opts runOptions, headless *bool) error {
	log := logging.NewLogger("run")

	if opts.password == "" {
		opts.password = os.Getenv("ENARGAS_PASSWORD")
	}

	clock := clockwork.NewRealClock()
	publisher := status.NewPublisher(status.NewMemoryStore(clock), clock, a.cfg.Redis.StatusTTL, logging.NewLogger("status"))

	svc, manager, err := a.automation(launcher, publisher)
	if err != nil {
		return err
	}
	defer shutdownSessions(ctx, manager, log)

	result, err := svc.RunAutomation(ctx, plate, enargas.Credentials{
		Username: opts.username,
		Password: opts.password,
	}, headless)
	if err != nil {
		return err
	}

	if result.Kind != enargas.KindSuccess {
		fmt.Fprintf(out, "%s: %s\n", result.Kind, describe(result))
		return nil
	}

	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(opts.outDir, result.Filename)
	if err := os.WriteFile(path, result.PDF, 0o644); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	fmt.Fprintf(out, "%s: %s (%d bytes, %d pages)\n", result.Kind, path, len(result.PDF), result.Pages)
	return nil
}

func describe(o enargas.Outcome) string {
	if label := o.Label(); label != "" {
		return label
	}
	return o.Detail
}
