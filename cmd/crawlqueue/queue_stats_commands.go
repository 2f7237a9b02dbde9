package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"crawlqueue/internal/queue"
)

func newQueueSetsCommand(ctx *commandContext) *cobra.Command {
	var pendingOnly bool
	var totalsFor []int64

	cmd := &cobra.Command{
		Use:   "sets",
		Short: "Summarize sets of queue entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				out := cmd.OutOrStdout()
				switch {
				case len(totalsFor) > 0:
					totals, err := store.TotalQueueEntriesByConfiguration(cmd.Context(), totalsFor)
					if err != nil {
						return err
					}
					if ctx.JSONMode() {
						return writeJSON(cmd, totals)
					}
					names := make([]string, 0, len(totals))
					for name := range totals {
						names = append(names, name)
					}
					sort.Strings(names)
					rows := make([][]string, 0, len(names))
					for _, name := range names {
						rows = append(rows, []string{orDash(name), strconv.Itoa(totals[name])})
					}
					fmt.Fprint(out, renderTable(out, []string{"Configuration", "Entries"}, rows, []columnAlignment{alignLeft, alignRight}))
					return nil

				case pendingOnly:
					ids, err := store.SetIDsWithUnprocessedEntries(cmd.Context())
					if err != nil {
						return err
					}
					if ctx.JSONMode() {
						return writeJSON(cmd, ids)
					}
					for _, id := range ids {
						fmt.Fprintln(out, id)
					}
					return nil

				default:
					sets, err := store.AvailableSets(cmd.Context())
					if err != nil {
						return err
					}
					if ctx.JSONMode() {
						return writeJSON(cmd, sets)
					}
					if len(sets) == 0 {
						fmt.Fprintln(out, "Queue is empty")
						return nil
					}
					fmt.Fprint(out, renderTable(out, []string{"Set", "Entries", "Scheduled"}, buildSetRows(sets),
						[]columnAlignment{alignRight, alignRight, alignLeft}))
					return nil
				}
			})
		},
	}

	cmd.Flags().BoolVar(&pendingOnly, "pending", false, "List only set ids that still have pending entries")
	cmd.Flags().Int64SliceVar(&totalsFor, "totals", nil, "Count entries per configuration for these set ids")
	return cmd
}

func newQueueRecentCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the most recently executed entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				entries, err := store.LastProcessedEntries(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					timestamps, err := store.LastProcessedEntriesTimestamps(cmd.Context(), limit)
					if err != nil {
						return err
					}
					return writeJSON(cmd, map[string]any{"entries": entries, "timestamps": timestamps})
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No executed entries")
					return nil
				}
				fmt.Fprint(out, renderTable(out, entryHeaders, buildEntryRows(entries), entryAligns))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of entries to show")
	return cmd
}

func newQueuePerformanceCommand(ctx *commandContext) *cobra.Command {
	var (
		from   int64
		to     int64
		window time.Duration
	)

	cmd := &cobra.Command{
		Use:   "performance",
		Short: "Summarize executed entries per worker process",
		RunE: func(cmd *cobra.Command, args []string) error {
			end := to
			if end == 0 {
				end = time.Now().Unix()
			}
			start := from
			if start == 0 {
				start = end - int64(window/time.Second)
			}
			return ctx.withStore(func(store *queue.Store) error {
				data, err := store.PerformanceData(cmd.Context(), start, end)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, data)
				}
				out := cmd.OutOrStdout()
				if len(data) == 0 {
					fmt.Fprintf(out, "No entries executed between %s and %s\n", formatUnix(start), formatUnix(end))
					return nil
				}
				fmt.Fprint(out, renderTable(out, []string{"Process", "First", "Last", "URLs"}, buildPerformanceRows(data),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight}))
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&from, "from", 0, "Window start as unix timestamp")
	cmd.Flags().Int64Var(&to, "to", 0, "Window end as unix timestamp (defaults to now)")
	cmd.Flags().DurationVar(&window, "window", time.Hour, "Window length when --from is not set")
	return cmd
}
