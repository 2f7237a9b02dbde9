package queue

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"

	"crawlqueue/internal/logging"
)

// FindByQueueID fetches a queue entry by identifier. It returns ErrNotFound
// when no entry matches.
func (s *Store) FindByQueueID(ctx context.Context, id int64) (*Entry, error) {
	var rows []entryRow
	if err := s.sel(ctx, "find queue entry", &rows, selectEntries+` WHERE qid = ?`, id); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, notFound("qid %d", id)
	}
	return rows[0].entry(), nil
}

// FetchRecordsToBeCrawled returns up to limit pending entries, oldest queue id
// first.
func (s *Store) FetchRecordsToBeCrawled(ctx context.Context, limit int) ([]*Entry, error) {
	if limit < 0 {
		return nil, invalidArgument("limit %d is negative", limit)
	}
	if limit == 0 {
		return []*Entry{}, nil
	}
	var rows []entryRow
	if err := s.sel(ctx, "fetch records to be crawled", &rows,
		selectEntries+` WHERE `+wherePending+` ORDER BY qid ASC LIMIT ?`, limit,
	); err != nil {
		return nil, err
	}
	return entriesFromRows(rows), nil
}

// IsPageInQueue reports whether any entry for pageID matches filter.
func (s *Store) IsPageInQueue(ctx context.Context, pageID int64, filter PageQueueFilter) (bool, error) {
	if pageID < 0 {
		return false, invalidArgument("page id %d is negative", pageID)
	}
	var clauses strings.Builder
	clauses.WriteString(`SELECT COUNT(1) FROM ` + queueTable + ` WHERE page_id = ?`)
	args := []any{pageID}
	if filter.UnprocessedOnly {
		clauses.WriteString(` AND ` + wherePending)
	}
	if filter.TimedOnly {
		clauses.WriteString(` AND scheduled > 0`)
	}
	if filter.ScheduledAt != 0 {
		clauses.WriteString(` AND scheduled = ?`)
		args = append(args, filter.ScheduledAt)
	}
	n, err := s.count(ctx, "check page in queue", clauses.String(), args...)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IsPageInQueueTimed reports whether pageID has an entry scheduled for a
// specific time.
func (s *Store) IsPageInQueueTimed(ctx context.Context, pageID int64) (bool, error) {
	return s.IsPageInQueue(ctx, pageID, PageQueueFilter{TimedOnly: true})
}

// NoUnprocessedEntriesForPageWithConfigurationHash reports whether no pending
// entry exists for the page and configuration hash. Schedulers call it before
// enqueueing to avoid duplicate work.
func (s *Store) NoUnprocessedEntriesForPageWithConfigurationHash(ctx context.Context, pageID int64, configurationHash string) (bool, error) {
	n, err := s.count(ctx, "check pending duplicates",
		`SELECT COUNT(1) FROM `+queueTable+` WHERE page_id = ? AND configuration_hash = ? AND `+wherePending,
		pageID, configurationHash,
	)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

func validateNewEntry(e NewEntry) error {
	if e.PageID < 0 {
		return invalidArgument("page id %d is negative", e.PageID)
	}
	if e.SetID < 0 {
		return invalidArgument("set id %d is negative", e.SetID)
	}
	if e.ScheduledAt < 0 {
		return invalidArgument("scheduled timestamp %d is negative", e.ScheduledAt)
	}
	return nil
}

func insertEntry(ctx context.Context, q sqlx.QueryerContext, e NewEntry) (int64, error) {
	var id int64
	err := q.QueryRowxContext(ctx, sqlx.Rebind(sqlx.BindType(driverNameOf(q)),
		`INSERT INTO `+queueTable+` (
            page_id, parameters, parameters_hash, configuration, configuration_hash,
            set_id, scheduled, exec_time, result_data, process_scheduled
        ) VALUES (?, ?, ?, ?, ?, ?, ?, 0, '', 0) RETURNING qid`),
		e.PageID,
		e.Parameters,
		hashParameters(e.Parameters),
		e.ConfigurationName,
		e.ConfigurationHash,
		e.SetID,
		e.ScheduledAt,
	).Scan(&id)
	return id, err
}

func driverNameOf(q sqlx.QueryerContext) string {
	if named, ok := q.(interface{ DriverName() string }); ok {
		return named.DriverName()
	}
	return ""
}

// Enqueue inserts a pending, unassigned entry and returns it.
func (s *Store) Enqueue(ctx context.Context, e NewEntry) (*Entry, error) {
	if err := validateNewEntry(e); err != nil {
		return nil, err
	}
	ctx = ensureContext(ctx)

	var id int64
	if err := retryOnBusy(ctx, func() error {
		var err error
		id, err = insertEntry(ctx, s.db, e)
		return err
	}); err != nil {
		return nil, storageError("insert queue entry", err)
	}

	s.logger.Debug("queue entry added",
		slog.Int64(logging.FieldQueueID, id),
		slog.Int64(logging.FieldPageID, e.PageID),
		slog.String(logging.FieldConfiguration, e.ConfigurationName),
	)
	return s.FindByQueueID(ctx, id)
}

// EnqueueUnique inserts e unless a pending entry with the same page and
// configuration hash already exists. The check and insert share one
// transaction. When nothing is inserted the existing pending entry is returned
// with inserted=false.
func (s *Store) EnqueueUnique(ctx context.Context, e NewEntry) (*Entry, bool, error) {
	if err := validateNewEntry(e); err != nil {
		return nil, false, err
	}
	ctx = ensureContext(ctx)

	var (
		existing *Entry
		id       int64
	)
	err := retryOnBusy(ctx, func() error {
		existing, id = nil, 0
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var rows []entryRow
		if err := tx.SelectContext(ctx, &rows, tx.Rebind(
			selectEntries+` WHERE page_id = ? AND configuration_hash = ? AND `+wherePending+` ORDER BY qid ASC LIMIT 1`),
			e.PageID, e.ConfigurationHash,
		); err != nil {
			return err
		}
		if len(rows) > 0 {
			existing = rows[0].entry()
			return nil
		}
		if id, err = insertEntry(ctx, tx, e); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, false, storageError("enqueue unique entry", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	entry, err := s.FindByQueueID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

// MarkExecuted records completion of a pending entry by processID. It returns
// ErrNotFound when the entry does not exist or was already executed.
func (s *Store) MarkExecuted(ctx context.Context, id int64, processID, resultData string) error {
	if strings.TrimSpace(processID) == "" {
		return invalidArgument("process id is required")
	}
	affected, err := s.execAffected(ctx, "mark entry executed",
		`UPDATE `+queueTable+`
         SET exec_time = ?, result_data = ?, process_id_completed = ?
         WHERE qid = ? AND `+wherePending,
		s.unixNow(), resultData, processID, id,
	)
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound("pending qid %d", id)
	}
	s.logger.Debug("queue entry executed",
		slog.Int64(logging.FieldQueueID, id),
		slog.String(logging.FieldProcessID, processID),
	)
	return nil
}

// Remove deletes an entry by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	affected, err := s.execAffected(ctx, "delete queue entry", `DELETE FROM `+queueTable+` WHERE qid = ?`, id)
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Clear removes every entry from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	affected, err := s.execAffected(ctx, "clear queue", `DELETE FROM `+queueTable)
	if err != nil {
		return 0, err
	}
	s.logger.Info("queue cleared", slog.Int64("removed", affected))
	return affected, nil
}
