package queue

import (
	"context"
)

// Counts is a single-statement snapshot of the queue partition. Pending always
// equals AssignedPending + UnassignedPending.
type Counts struct {
	Total             int `db:"total" json:"total"`
	Pending           int `db:"pending" json:"pending"`
	AssignedPending   int `db:"assigned" json:"assignedPending"`
	UnassignedPending int `db:"-" json:"unassignedPending"`
}

// Counts returns total, pending, and assigned-pending counts read together.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	if err := s.get(ctx, "queue counts", &c,
		`SELECT COUNT(1) AS total,
                COUNT(CASE WHEN `+wherePending+` THEN 1 END) AS pending,
                COUNT(CASE WHEN `+whereAssigned+` THEN 1 END) AS assigned
         FROM `+queueTable,
	); err != nil {
		return Counts{}, err
	}
	c.UnassignedPending = c.Pending - c.AssignedPending
	return c, nil
}

// CountAll counts every entry, executed or not.
func (s *Store) CountAll(ctx context.Context) (int, error) {
	return s.count(ctx, "count all entries", `SELECT COUNT(1) FROM `+queueTable)
}

// CountUnprocessedItems counts pending entries.
func (s *Store) CountUnprocessedItems(ctx context.Context) (int, error) {
	return s.count(ctx, "count pending entries", `SELECT COUNT(1) FROM `+queueTable+` WHERE `+wherePending)
}

// CountAllPendingItems is an alias for CountUnprocessedItems.
func (s *Store) CountAllPendingItems(ctx context.Context) (int, error) {
	return s.CountUnprocessedItems(ctx)
}

// CountAllAssignedPendingItems counts pending entries claimed by a process.
func (s *Store) CountAllAssignedPendingItems(ctx context.Context) (int, error) {
	return s.count(ctx, "count assigned pending entries", `SELECT COUNT(1) FROM `+queueTable+` WHERE `+whereAssigned)
}

// CountAllUnassignedPendingItems counts pending entries no process has claimed.
func (s *Store) CountAllUnassignedPendingItems(ctx context.Context) (int, error) {
	return s.count(ctx, "count unassigned pending entries", `SELECT COUNT(1) FROM `+queueTable+` WHERE `+whereUnassigned)
}

// CountPendingItemsGroupedByConfiguration returns one row per configuration
// present among pending entries, ordered by configuration name.
func (s *Store) CountPendingItemsGroupedByConfiguration(ctx context.Context) ([]ConfigurationCount, error) {
	rows := []ConfigurationCount{}
	if err := s.sel(ctx, "count pending by configuration", &rows,
		`SELECT COALESCE(configuration, '') AS configuration,
                COUNT(1) AS unprocessed,
                COUNT(CASE WHEN process_scheduled != 0 THEN 1 END) AS assigned_but_unprocessed
         FROM `+queueTable+`
         WHERE `+wherePending+`
         GROUP BY COALESCE(configuration, '')
         ORDER BY COALESCE(configuration, '') ASC`,
	); err != nil {
		return nil, err
	}
	return rows, nil
}

// SetIDsWithUnprocessedEntries returns the distinct set ids among pending
// entries in ascending order.
func (s *Store) SetIDsWithUnprocessedEntries(ctx context.Context) ([]int64, error) {
	ids := []int64{}
	if err := s.sel(ctx, "list sets with pending entries", &ids,
		`SELECT DISTINCT set_id FROM `+queueTable+` WHERE `+wherePending+` ORDER BY set_id ASC`,
	); err != nil {
		return nil, err
	}
	return ids, nil
}

// TotalQueueEntriesByConfiguration counts all entries, executed or not, whose
// set id is in setIDs, keyed by configuration name.
func (s *Store) TotalQueueEntriesByConfiguration(ctx context.Context, setIDs []int64) (map[string]int, error) {
	totals := make(map[string]int)
	if len(setIDs) == 0 {
		return totals, nil
	}
	query, args, err := expandIn(
		`SELECT COALESCE(configuration, '') AS configuration, COUNT(1) AS total
         FROM `+queueTable+`
         WHERE set_id IN (?)
         GROUP BY COALESCE(configuration, '')`,
		setIDs,
	)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Configuration string `db:"configuration"`
		Total         int    `db:"total"`
	}
	if err := s.sel(ctx, "count entries by configuration", &rows, query, args...); err != nil {
		return nil, err
	}
	for _, row := range rows {
		totals[row.Configuration] = row.Total
	}
	return totals, nil
}

// AvailableSets returns one row per set id with the set's total entry count
// and the scheduled timestamp of its lowest queue id member, ordered by set id.
func (s *Store) AvailableSets(ctx context.Context) ([]SetSummary, error) {
	sets := []SetSummary{}
	if err := s.sel(ctx, "list available sets", &sets,
		`SELECT g.set_id AS set_id, g.count_value AS count_value, q.scheduled AS scheduled
         FROM (
             SELECT set_id, COUNT(1) AS count_value, MIN(qid) AS first_qid
             FROM `+queueTable+`
             GROUP BY set_id
         ) g
         JOIN `+queueTable+` q ON q.qid = g.first_qid
         ORDER BY g.set_id ASC`,
	); err != nil {
		return nil, err
	}
	return sets, nil
}

// LastProcessedEntriesTimestamps returns the execution timestamps of the limit
// most recently executed entries, newest first. Equal timestamps are kept.
func (s *Store) LastProcessedEntriesTimestamps(ctx context.Context, limit int) ([]int64, error) {
	if limit < 0 {
		return nil, invalidArgument("limit %d is negative", limit)
	}
	timestamps := []int64{}
	if limit == 0 {
		return timestamps, nil
	}
	if err := s.sel(ctx, "list last processed timestamps", &timestamps,
		`SELECT exec_time FROM `+queueTable+` WHERE `+whereExecuted+` ORDER BY exec_time DESC, qid DESC LIMIT ?`,
		limit,
	); err != nil {
		return nil, err
	}
	return timestamps, nil
}

// LastProcessedEntries returns the limit most recently executed entries,
// ordered by execution time then queue id, both descending.
func (s *Store) LastProcessedEntries(ctx context.Context, limit int) ([]*Entry, error) {
	if limit < 0 {
		return nil, invalidArgument("limit %d is negative", limit)
	}
	if limit == 0 {
		return []*Entry{}, nil
	}
	var rows []entryRow
	if err := s.sel(ctx, "list last processed entries", &rows,
		selectEntries+` WHERE `+whereExecuted+` ORDER BY exec_time DESC, qid DESC LIMIT ?`,
		limit,
	); err != nil {
		return nil, err
	}
	return entriesFromRows(rows), nil
}

// PerformanceData groups executed entries with an execution time in
// [start, end] by completing process.
func (s *Store) PerformanceData(ctx context.Context, start, end int64) (map[string]ProcessPerformance, error) {
	if end < start {
		return nil, invalidArgument("window end %d precedes start %d", end, start)
	}
	var rows []ProcessPerformance
	if err := s.sel(ctx, "query performance data", &rows,
		`SELECT COALESCE(process_id_completed, '') AS process_id_completed,
                MIN(exec_time) AS start_time,
                MAX(exec_time) AS end_time,
                COUNT(1) AS url_count
         FROM `+queueTable+`
         WHERE `+whereExecuted+` AND exec_time >= ? AND exec_time <= ?
         GROUP BY COALESCE(process_id_completed, '')`,
		start, end,
	); err != nil {
		return nil, err
	}

	data := make(map[string]ProcessPerformance, len(rows))
	for _, row := range rows {
		data[row.ProcessID] = row
	}
	return data, nil
}
