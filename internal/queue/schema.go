package queue

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// schemaVersion is the current schema version. Bump this when the schema changes.
// Users will need to clear their queue database after schema changes.
const schemaVersion = 1

const queueTable = "crawler_queue"

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Supported record store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type dialect struct {
	name         string
	driverName   string
	schemaFile   string
	tableExists  string
	tableColumns string
}

var dialects = map[string]dialect{
	DriverSQLite: {
		name:         DriverSQLite,
		driverName:   "sqlite",
		schemaFile:   "schema/sqlite.sql",
		tableExists:  "SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?",
		tableColumns: "SELECT name FROM pragma_table_info('" + queueTable + "')",
	},
	DriverPostgres: {
		name:         DriverPostgres,
		driverName:   "pgx",
		schemaFile:   "schema/postgres.sql",
		tableExists:  "SELECT COUNT(1) FROM information_schema.tables WHERE table_name = ?",
		tableColumns: "SELECT column_name FROM information_schema.columns WHERE table_name = '" + queueTable + "'",
	},
}

func lookupDialect(driver string) (dialect, error) {
	d, ok := dialects[strings.ToLower(strings.TrimSpace(driver))]
	if !ok {
		return dialect{}, invalidArgument("unsupported store driver %q", driver)
	}
	return d, nil
}

// expectedColumns lists the queue table columns CheckHealth looks for.
var expectedColumns = []string{
	"qid",
	"page_id",
	"parameters",
	"parameters_hash",
	"configuration",
	"configuration_hash",
	"set_id",
	"scheduled",
	"exec_time",
	"result_data",
	"process_id",
	"process_scheduled",
	"process_id_completed",
}

func (s *Store) tableExists(ctx context.Context, name string) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, s.db.Rebind(s.dialect.tableExists), name); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	// A schema_version table indicates an initialized database.
	exists, err := s.tableExists(ctx, "schema_version")
	if err != nil {
		return storageError("check schema_version table", err)
	}
	if !exists {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.GetContext(ctx, &version, "SELECT version FROM schema_version LIMIT 1"); err != nil {
		return storageError("read schema version", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (run 'crawlqueue queue clear' or delete the database)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	raw, err := schemaFS.ReadFile(s.dialect.schemaFile)
	if err != nil {
		return fmt.Errorf("read schema %s: %w", s.dialect.schemaFile, err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageError("begin schema tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, statement := range splitStatements(string(raw)) {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			return storageError("create schema", err)
		}
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind("INSERT INTO schema_version (version) VALUES (?)"), schemaVersion); err != nil {
		return storageError("record schema version", err)
	}
	if err := tx.Commit(); err != nil {
		return storageError("commit schema", err)
	}
	return nil
}

func splitStatements(script string) []string {
	parts := strings.Split(script, ";")
	statements := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			statements = append(statements, trimmed)
		}
	}
	return statements
}
