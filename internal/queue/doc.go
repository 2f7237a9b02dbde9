// Package queue persists crawl queue entries and exposes the scheduling,
// assignment, and statistics operations built on them.
//
// The Store wraps an explicit database handle (SQLite by default, Postgres via
// pgx) and keeps no in-memory queue, lock, or background goroutine. All
// coordination between schedulers and workers happens through single-statement
// conditional updates: assignment only takes rows that are still pending and
// unowned, and release only touches rows still pending and owned by the named
// processes.
//
// An entry is pending while exec_time is 0 and assigned while it is pending
// with a non-zero process_scheduled. CleanupQueue only ever deletes executed
// entries older than the configured retention window.
//
// Schema changes bump the version in schema.go; users clear the database to
// adopt the new schema.
package queue
