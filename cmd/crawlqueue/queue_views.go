package main

import (
	"sort"
	"strconv"
	"time"

	"crawlqueue/internal/queue"
)

func formatUnix(ts int64) string {
	if ts == 0 {
		return "-"
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func entryState(e *queue.Entry) string {
	switch {
	case !e.IsPending():
		return "executed"
	case e.IsAssigned():
		return "assigned"
	default:
		return "pending"
	}
}

func buildEntryRows(entries []*queue.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			strconv.FormatInt(e.PageID, 10),
			orDash(e.ConfigurationName),
			strconv.FormatInt(e.SetID, 10),
			entryState(e),
			formatUnix(e.ScheduledAt),
			orDash(e.AssignedProcessID),
			formatUnix(e.ExecutedAt),
		})
	}
	return rows
}

var entryHeaders = []string{"QID", "Page", "Configuration", "Set", "State", "Scheduled", "Process", "Executed"}

var entryAligns = []columnAlignment{alignRight, alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignLeft}

func buildStatusRows(counts queue.Counts) [][]string {
	return [][]string{
		{"Total", strconv.Itoa(counts.Total)},
		{"Pending", strconv.Itoa(counts.Pending)},
		{"Assigned", strconv.Itoa(counts.AssignedPending)},
		{"Unassigned", strconv.Itoa(counts.UnassignedPending)},
	}
}

func buildConfigurationRows(rows []queue.ConfigurationCount) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, []string{
			orDash(row.ConfigurationName),
			strconv.Itoa(row.Unprocessed),
			strconv.Itoa(row.AssignedButUnprocessed),
		})
	}
	return out
}

func buildSetRows(sets []queue.SetSummary) [][]string {
	rows := make([][]string, 0, len(sets))
	for _, set := range sets {
		rows = append(rows, []string{
			strconv.FormatInt(set.SetID, 10),
			strconv.Itoa(set.Count),
			formatUnix(set.ScheduledAt),
		})
	}
	return rows
}

func buildPerformanceRows(data map[string]queue.ProcessPerformance) [][]string {
	ids := make([]string, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		perf := data[id]
		rows = append(rows, []string{
			orDash(id),
			formatUnix(perf.Start),
			formatUnix(perf.End),
			strconv.Itoa(perf.URLCount),
		})
	}
	return rows
}
