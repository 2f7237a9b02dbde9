package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"crawlqueue/internal/daemon"
	"crawlqueue/internal/liveness"
	"crawlqueue/internal/logging"
	"crawlqueue/internal/preflight"
	"crawlqueue/internal/queue"
	"crawlqueue/internal/registry"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var noRegistry bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the metrics endpoint and the stale-assignment reaper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.log()

			checks := preflight.RunAll(cmd.Context(), cfg, preflight.Options{Redis: !noRegistry})
			if failed := preflight.Failed(checks); len(failed) > 0 {
				parts := make([]string, 0, len(failed))
				for _, f := range failed {
					parts = append(parts, fmt.Sprintf("%s: %s", f.Name, f.Detail))
				}
				return errors.New("preflight failed: " + strings.Join(parts, "; "))
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := queue.Open(cfg, logger)
			if err != nil {
				return fmt.Errorf("open queue store: %w", err)
			}

			var source liveness.ExpiredSource
			if !noRegistry {
				reg, err := registry.Dial(runCtx, cfg, logger)
				if err != nil {
					_ = store.Close()
					return err
				}
				defer reg.Close()
				source = reg
			}

			d, err := daemon.New(cfg, store, source, logger)
			if err != nil {
				_ = store.Close()
				return fmt.Errorf("create daemon: %w", err)
			}
			defer d.Close()

			if err := d.Start(runCtx); err != nil {
				return err
			}
			status := d.Status(runCtx)
			fmt.Fprintf(cmd.OutOrStdout(), "crawlqueue serving metrics on %s\n", status.MetricsAddr)

			<-runCtx.Done()
			logger.Info("crawlqueue shutting down", slog.String(logging.FieldEventType, "shutdown"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&noRegistry, "no-registry", false, "Serve metrics without Redis liveness sweeps")
	return cmd
}
