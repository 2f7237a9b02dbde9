package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"
)

// CleanupQueue deletes executed entries older than the retention window and
// returns how many were removed. Pending entries are never deleted here.
func (s *Store) CleanupQueue(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention).Unix()
	removed, err := s.execAffected(ctx, "cleanup queue",
		`DELETE FROM `+queueTable+` WHERE `+whereExecuted+` AND exec_time < ?`,
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	s.logger.Info("queue cleanup finished",
		slog.Int64("removed", removed),
		slog.Int64("cutoff", cutoff),
		slog.Duration("retention", s.retention),
	)
	return removed, nil
}

// CheckHealth returns diagnostic information about the queue database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{
		Driver:        s.dialect.name,
		DBPath:        s.path,
		SchemaVersion: schemaVersion,
	}

	if s.dialect.name == DriverSQLite {
		if s.path == "" {
			return health, errors.New("queue database path is unknown")
		}
		info, err := os.Stat(s.path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return health, nil
			}
			return health, fmt.Errorf("stat queue database: %w", err)
		}
		if info.IsDir() {
			return health, fmt.Errorf("queue database path %q is a directory", s.path)
		}
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("queue database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, storageError("ping queue database", err)
	}
	health.DatabaseReadable = true

	exists, err := s.tableExists(connCtx, queueTable)
	if err != nil {
		health.Error = err.Error()
		return health, storageError("query table info", err)
	}
	health.TableExists = exists

	if health.TableExists {
		var columns []string
		if err := s.db.SelectContext(connCtx, &columns, s.dialect.tableColumns); err != nil {
			health.Error = err.Error()
			return health, storageError("table info", err)
		}
		health.ColumnsPresent = append(health.ColumnsPresent, columns...)

		missing := make(map[string]struct{}, len(expectedColumns))
		for _, col := range expectedColumns {
			missing[col] = struct{}{}
		}
		for _, col := range columns {
			delete(missing, col)
		}
		for col := range missing {
			health.MissingColumns = append(health.MissingColumns, col)
		}
		sort.Strings(health.MissingColumns)

		if err := s.db.GetContext(connCtx, &health.TotalItems, `SELECT COUNT(*) FROM `+queueTable); err != nil {
			health.Error = err.Error()
			return health, storageError("count queue entries", err)
		}
	}

	if s.dialect.name != DriverSQLite {
		health.IntegrityCheck = true
		return health, nil
	}

	var integrityResult string
	if err := s.db.GetContext(connCtx, &integrityResult, "PRAGMA integrity_check"); err != nil {
		health.Error = err.Error()
		return health, storageError("integrity check", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}
