package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"crawlqueue/internal/preflight"
	"crawlqueue/internal/queue"
)

func newQueueCleanupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete executed entries older than queue.retention_hours",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lock := flock.New(cfg.CleanupLockPath())
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire cleanup lock: %w", err)
			}
			if !ok {
				return errors.New("another queue cleanup is already running")
			}
			defer func() {
				_ = lock.Unlock()
				_ = os.Remove(cfg.CleanupLockPath())
			}()

			return ctx.withStore(func(store *queue.Store) error {
				removed, err := store.CleanupQueue(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"removed": removed, "retention": store.Retention().String()})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d executed entries older than %s\n", removed, store.Retention())
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check queue database health (schema, integrity, columns)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			checks := preflight.RunAll(cmd.Context(), cfg, preflight.Options{})
			return ctx.withStore(func(store *queue.Store) error {
				resp, healthErr := store.CheckHealth(cmd.Context())
				if ctx.JSONMode() {
					if err := writeJSON(cmd, map[string]any{"database": resp, "checks": checks}); err != nil {
						return err
					}
					return healthErr
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Driver: %s\n", resp.Driver)
				if resp.DBPath != "" {
					fmt.Fprintf(out, "Database path: %s\n", resp.DBPath)
				}
				fmt.Fprintf(out, "Database exists: %s\n", yesNo(resp.DatabaseExists))
				fmt.Fprintf(out, "Readable: %s\n", yesNo(resp.DatabaseReadable))
				fmt.Fprintf(out, "Schema version: %d\n", resp.SchemaVersion)
				fmt.Fprintf(out, "crawler_queue table present: %s\n", yesNo(resp.TableExists))
				if len(resp.ColumnsPresent) > 0 {
					cols := append([]string(nil), resp.ColumnsPresent...)
					sort.Strings(cols)
					fmt.Fprintf(out, "Columns: %s\n", strings.Join(cols, ", "))
				}
				if len(resp.MissingColumns) > 0 {
					fmt.Fprintf(out, "Missing columns: %s\n", strings.Join(resp.MissingColumns, ", "))
				} else {
					fmt.Fprintln(out, "Missing columns: none")
				}
				fmt.Fprintf(out, "Integrity check: %s\n", yesNo(resp.IntegrityCheck))
				fmt.Fprintf(out, "Total items: %d\n", resp.TotalItems)
				if resp.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", resp.Error)
				}
				for _, check := range checks {
					status := "ok"
					if !check.Passed {
						status = "FAIL"
					}
					fmt.Fprintf(out, "%s: %s %s\n", check.Name, status, check.Detail)
				}
				return healthErr
			})
		},
	}
}
