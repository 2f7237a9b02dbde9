package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"crawlqueue/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the crawl queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueCheckCommand(ctx))
	queueCmd.AddCommand(newQueueAssignCommand(ctx))
	queueCmd.AddCommand(newQueueReleaseCommand(ctx))
	queueCmd.AddCommand(newQueueCompleteCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueCleanupCommand(ctx))
	queueCmd.AddCommand(newQueueSetsCommand(ctx))
	queueCmd.AddCommand(newQueueRecentCommand(ctx))
	queueCmd.AddCommand(newQueuePerformanceCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func parseQueueIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid queue id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue counts overall and per configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				counts, err := store.Counts(cmd.Context())
				if err != nil {
					return err
				}
				byConfig, err := store.CountPendingItemsGroupedByConfiguration(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{
						"counts":          counts,
						"byConfiguration": byConfig,
					})
				}

				out := cmd.OutOrStdout()
				if counts.Total == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTable(out, []string{"Entries", "Count"}, buildStatusRows(counts), []columnAlignment{alignLeft, alignRight}))
				if len(byConfig) > 0 {
					fmt.Fprint(out, renderTable(out,
						[]string{"Configuration", "Pending", "Assigned"},
						buildConfigurationRows(byConfig),
						[]columnAlignment{alignLeft, alignRight, alignRight},
					))
				}
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending entries in crawl order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				n := limit
				if n <= 0 {
					n = ctx.config.Queue.FetchLimit
				}
				entries, err := store.FetchRecordsToBeCrawled(cmd.Context(), n)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, entries)
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No pending entries")
					return nil
				}
				fmt.Fprint(out, renderTable(out, entryHeaders, buildEntryRows(entries), entryAligns))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum entries to list (defaults to queue.fetch_limit)")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <qid>",
		Short: "Show one queue entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseQueueIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				entry, err := store.FindByQueueID(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, entry)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Queue ID: %d\n", entry.ID)
				fmt.Fprintf(out, "Page ID: %d\n", entry.PageID)
				fmt.Fprintf(out, "State: %s\n", entryState(entry))
				fmt.Fprintf(out, "Configuration: %s\n", orDash(entry.ConfigurationName))
				fmt.Fprintf(out, "Configuration hash: %s\n", orDash(entry.ConfigurationHash))
				fmt.Fprintf(out, "Set ID: %d\n", entry.SetID)
				fmt.Fprintf(out, "Scheduled: %s\n", formatUnix(entry.ScheduledAt))
				fmt.Fprintf(out, "Assigned process: %s\n", orDash(entry.AssignedProcessID))
				fmt.Fprintf(out, "Assigned at: %s\n", formatUnix(entry.ProcessScheduledAt))
				fmt.Fprintf(out, "Executed: %s\n", formatUnix(entry.ExecutedAt))
				fmt.Fprintf(out, "Completed by: %s\n", orDash(entry.CompletedByProcessID))
				if entry.Parameters != "" {
					fmt.Fprintf(out, "Parameters: %s\n", entry.Parameters)
				}
				return nil
			})
		},
	}
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var (
		configuration string
		configHash    string
		parameters    string
		setID         int64
		scheduledAt   int64
		unique        bool
	)

	cmd := &cobra.Command{
		Use:   "add <page-id>",
		Short: "Enqueue a crawl task for a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pageID, err := queue.ParsePageID(args[0])
			if err != nil {
				return err
			}
			entry := queue.NewEntry{
				PageID:            pageID,
				Parameters:        parameters,
				ConfigurationName: configuration,
				ConfigurationHash: configHash,
				SetID:             setID,
				ScheduledAt:       scheduledAt,
			}
			return ctx.withStore(func(store *queue.Store) error {
				var (
					added    *queue.Entry
					inserted = true
				)
				if unique {
					added, inserted, err = store.EnqueueUnique(cmd.Context(), entry)
				} else {
					added, err = store.Enqueue(cmd.Context(), entry)
				}
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"entry": added, "inserted": inserted})
				}
				if !inserted {
					fmt.Fprintf(cmd.OutOrStdout(), "Page %d already pending as entry %d\n", pageID, added.ID)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added entry %d for page %d\n", added.ID, pageID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&configuration, "configuration", "", "Crawl configuration name")
	cmd.Flags().StringVar(&configHash, "configuration-hash", "", "Crawl configuration hash")
	cmd.Flags().StringVar(&parameters, "parameters", "", "Serialized crawl parameters")
	cmd.Flags().Int64Var(&setID, "set", 0, "Set identifier")
	cmd.Flags().Int64Var(&scheduledAt, "at", 0, "Unix timestamp the entry is scheduled for (0 = as soon as possible)")
	cmd.Flags().BoolVar(&unique, "unique", false, "Skip when a pending entry with the same page and configuration hash exists")
	return cmd
}

func newQueueCheckCommand(ctx *commandContext) *cobra.Command {
	var (
		unprocessed bool
		timed       bool
		at          int64
		configHash  string
	)

	cmd := &cobra.Command{
		Use:   "check <page-id>",
		Short: "Check whether a page is already queued",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pageID, err := queue.ParsePageID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				var queued bool
				if configHash != "" {
					none, err := store.NoUnprocessedEntriesForPageWithConfigurationHash(cmd.Context(), pageID, configHash)
					if err != nil {
						return err
					}
					queued = !none
				} else {
					queued, err = store.IsPageInQueue(cmd.Context(), pageID, queue.PageQueueFilter{
						UnprocessedOnly: unprocessed,
						TimedOnly:       timed,
						ScheduledAt:     at,
					})
					if err != nil {
						return err
					}
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"pageId": pageID, "queued": queued})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Page %d queued: %s\n", pageID, yesNo(queued))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&unprocessed, "unprocessed", false, "Only consider pending entries")
	cmd.Flags().BoolVar(&timed, "timed", false, "Only consider entries scheduled for a specific time")
	cmd.Flags().Int64Var(&at, "at", 0, "Only consider entries scheduled at this unix timestamp")
	cmd.Flags().StringVar(&configHash, "configuration-hash", "", "Check pending entries with this configuration hash")
	return cmd
}

func newQueueAssignCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <process-id> <qid>...",
		Short: "Assign pending entries to a worker process",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseQueueIDs(args[1:])
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				assigned, err := store.UpdateProcessIDAndSchedulerForQueueIDs(cmd.Context(), ids, args[0])
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"requested": len(ids), "assigned": assigned})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Assigned %d of %d entries to %s\n", assigned, len(ids), args[0])
				return nil
			})
		},
	}
}

func newQueueReleaseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "release <process-id>...",
		Short: "Return the pending entries of processes to the unassigned pool",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				released, err := store.UnsetProcessScheduledAndProcessIDForQueueEntries(cmd.Context(), args)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"released": released})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Released %d entries\n", released)
				return nil
			})
		},
	}
}

func newQueueCompleteCommand(ctx *commandContext) *cobra.Command {
	var result string

	cmd := &cobra.Command{
		Use:   "complete <qid> <process-id>",
		Short: "Record that a process executed an entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseQueueIDs(args[:1])
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				if err := store.MarkExecuted(cmd.Context(), ids[0], args[1], result); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Entry %d executed by %s\n", ids[0], args[1])
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&result, "result", "", "Result data to store with the entry")
	return cmd
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <qid>...",
		Short: "Delete queue entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseQueueIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				out := cmd.OutOrStdout()
				for _, id := range ids {
					removed, err := store.Remove(cmd.Context(), id)
					if err != nil {
						return err
					}
					if removed {
						fmt.Fprintf(out, "Removed entry %d\n", id)
					} else {
						fmt.Fprintf(out, "Entry %d not found\n", id)
					}
				}
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every queue entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("refusing to clear the queue without --yes")
			}
			return ctx.withStore(func(store *queue.Store) error {
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d entries\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&confirm, "yes", false, "Confirm removal of all entries")
	return cmd
}
