package queue

import (
	"context"
	"log/slog"
	"strings"

	"crawlqueue/internal/logging"
)

// UpdateProcessIDAndSchedulerForQueueIDs assigns the pending entries in ids to
// processID and returns the number of rows this call won.
//
// The update is one conditional statement: an entry is taken only while it is
// still pending and either unassigned or already owned by processID. Executed
// entries and entries owned by another process are left untouched, so two
// schedulers racing for the same entry cannot both win it.
func (s *Store) UpdateProcessIDAndSchedulerForQueueIDs(ctx context.Context, ids []int64, processID string) (int64, error) {
	if strings.TrimSpace(processID) == "" {
		return 0, invalidArgument("process id is required")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := expandIn(
		`UPDATE `+queueTable+`
         SET process_id = ?, process_scheduled = ?
         WHERE qid IN (?) AND `+wherePending+` AND (process_scheduled = 0 OR process_id = ?)`,
		processID, s.unixNow(), ids, processID,
	)
	if err != nil {
		return 0, err
	}
	affected, err := s.execAffected(ctx, "assign queue entries", query, args...)
	if err != nil {
		return 0, err
	}

	s.logger.Debug("queue entries assigned",
		slog.String(logging.FieldProcessID, processID),
		slog.Int("requested", len(ids)),
		slog.Int64("assigned", affected),
	)
	return affected, nil
}

// UnsetProcessScheduledAndProcessIDForQueueEntries releases every pending entry
// owned by any of processIDs back to the unassigned pool. Running it twice
// leaves the same state.
func (s *Store) UnsetProcessScheduledAndProcessIDForQueueEntries(ctx context.Context, processIDs []string) (int64, error) {
	if len(processIDs) == 0 {
		return 0, nil
	}
	query, args, err := expandIn(
		`UPDATE `+queueTable+`
         SET process_id = NULL, process_scheduled = 0
         WHERE `+wherePending+` AND process_id IN (?)`,
		processIDs,
	)
	if err != nil {
		return 0, err
	}
	affected, err := s.execAffected(ctx, "release queue entries", query, args...)
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		s.logger.Info("queue entries released",
			slog.Any("process_ids", processIDs),
			slog.Int64("released", affected),
		)
	}
	return affected, nil
}

// sortDirection is the closed set of orderings firstOrLastByProcess accepts.
type sortDirection int

const (
	ascending sortDirection = iota
	descending
)

func (d sortDirection) sql() string {
	if d == descending {
		return "DESC"
	}
	return "ASC"
}

// firstOrLastByProcess returns the extreme entry by queue id among the entries
// completed by processID, or nil when the process has none.
func (s *Store) firstOrLastByProcess(ctx context.Context, processID string, direction sortDirection) (*Entry, error) {
	var rows []entryRow
	if err := s.sel(ctx, "find entry by process", &rows,
		selectEntries+` WHERE process_id_completed = ? ORDER BY qid `+direction.sql()+` LIMIT 1`,
		processID,
	); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].entry(), nil
}

// FindYoungestEntryForProcess returns the first entry, by queue id, completed
// by process. It returns nil when the process completed nothing.
func (s *Store) FindYoungestEntryForProcess(ctx context.Context, process Process) (*Entry, error) {
	return s.firstOrLastByProcess(ctx, process.ProcessID, ascending)
}

// FindOldestEntryForProcess returns the last entry, by queue id, completed by
// process. It returns nil when the process completed nothing.
func (s *Store) FindOldestEntryForProcess(ctx context.Context, process Process) (*Entry, error) {
	return s.firstOrLastByProcess(ctx, process.ProcessID, descending)
}

// CountExecutedItemsByProcess counts executed entries completed by process.
func (s *Store) CountExecutedItemsByProcess(ctx context.Context, process Process) (int, error) {
	return s.count(ctx, "count executed by process",
		`SELECT COUNT(1) FROM `+queueTable+` WHERE `+whereExecuted+` AND process_id_completed = ?`,
		process.ProcessID,
	)
}

// CountNonExecutedItemsByProcess counts pending entries still assigned to
// process.
func (s *Store) CountNonExecutedItemsByProcess(ctx context.Context, process Process) (int, error) {
	return s.count(ctx, "count pending by process",
		`SELECT COUNT(1) FROM `+queueTable+` WHERE `+wherePending+` AND process_id = ?`,
		process.ProcessID,
	)
}
