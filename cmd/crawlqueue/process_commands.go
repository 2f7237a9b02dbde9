package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"crawlqueue/internal/queue"
	"crawlqueue/internal/registry"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	processCmd := &cobra.Command{
		Use:   "process",
		Short: "Manage worker process registrations",
	}

	processCmd.AddCommand(newProcessRegisterCommand(ctx))
	processCmd.AddCommand(newProcessHeartbeatCommand(ctx))
	processCmd.AddCommand(newProcessDeregisterCommand(ctx))
	processCmd.AddCommand(newProcessActiveCommand(ctx))
	processCmd.AddCommand(newProcessStatsCommand(ctx))

	return processCmd
}

func newProcessRegisterCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "register [process-id]",
		Short: "Register a worker process, generating an id when none is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			processID := uuid.NewString()
			if len(args) == 1 {
				processID = strings.TrimSpace(args[0])
			}
			return ctx.withRegistry(cmd.Context(), func(reg *registry.Registry) error {
				if err := reg.Register(cmd.Context(), processID); err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"processId": processID, "ttl": reg.TTL().String()})
				}
				fmt.Fprintln(cmd.OutOrStdout(), processID)
				return nil
			})
		},
	}
}

func newProcessHeartbeatCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "heartbeat <process-id>",
		Short: "Refresh a registered process before its registration expires",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRegistry(cmd.Context(), func(reg *registry.Registry) error {
				err := reg.Heartbeat(cmd.Context(), args[0])
				if errors.Is(err, registry.ErrNotRegistered) {
					return fmt.Errorf("process %s is not registered; register it again", args[0])
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Process %s refreshed for %s\n", args[0], reg.TTL())
				return nil
			})
		},
	}
}

func newProcessDeregisterCommand(ctx *commandContext) *cobra.Command {
	var keep bool

	cmd := &cobra.Command{
		Use:   "deregister <process-id>...",
		Short: "Remove process registrations and release their pending entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRegistry(cmd.Context(), func(reg *registry.Registry) error {
				for _, id := range args {
					if err := reg.Deregister(cmd.Context(), id); err != nil {
						return err
					}
				}
				if keep {
					fmt.Fprintf(cmd.OutOrStdout(), "Deregistered %d process(es)\n", len(args))
					return nil
				}
				return ctx.withStore(func(store *queue.Store) error {
					released, err := store.UnsetProcessScheduledAndProcessIDForQueueEntries(cmd.Context(), args)
					if err != nil {
						return err
					}
					if ctx.JSONMode() {
						return writeJSON(cmd, map[string]any{"deregistered": args, "released": released})
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Deregistered %d process(es), released %d entries\n", len(args), released)
					return nil
				})
			})
		},
	}

	cmd.Flags().BoolVar(&keep, "keep-assignments", false, "Leave pending entries assigned to the process")
	return cmd
}

func newProcessActiveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "active",
		Short: "List processes with a live registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRegistry(cmd.Context(), func(reg *registry.Registry) error {
				ids, err := reg.Active(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, ids)
				}
				out := cmd.OutOrStdout()
				if len(ids) == 0 {
					fmt.Fprintln(out, "No active processes")
					return nil
				}
				for _, id := range ids {
					fmt.Fprintln(out, id)
				}
				return nil
			})
		},
	}
}

type processStats struct {
	ProcessID string       `json:"processId"`
	Executed  int          `json:"executed"`
	Pending   int          `json:"pending"`
	Youngest  *queue.Entry `json:"youngest,omitempty"`
	Oldest    *queue.Entry `json:"oldest,omitempty"`
}

func newProcessStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <process-id>",
		Short: "Show bookkeeping for entries handled by a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			process := queue.Process{ProcessID: args[0]}
			return ctx.withStore(func(store *queue.Store) error {
				c := cmd.Context()
				stats := processStats{ProcessID: process.ProcessID}
				var err error
				if stats.Executed, err = store.CountExecutedItemsByProcess(c, process); err != nil {
					return err
				}
				if stats.Pending, err = store.CountNonExecutedItemsByProcess(c, process); err != nil {
					return err
				}
				if stats.Youngest, err = store.FindYoungestEntryForProcess(c, process); err != nil {
					return err
				}
				if stats.Oldest, err = store.FindOldestEntryForProcess(c, process); err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, stats)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Process: %s\n", stats.ProcessID)
				fmt.Fprintf(out, "Executed: %d\n", stats.Executed)
				fmt.Fprintf(out, "Pending: %d\n", stats.Pending)
				if stats.Youngest != nil {
					fmt.Fprintf(out, "Youngest completed: %d (page %d)\n", stats.Youngest.ID, stats.Youngest.PageID)
				}
				if stats.Oldest != nil {
					fmt.Fprintf(out, "Oldest completed: %d (page %d)\n", stats.Oldest.ID, stats.Oldest.PageID)
				}
				return nil
			})
		},
	}
}
