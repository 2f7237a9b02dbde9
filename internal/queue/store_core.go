package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"crawlqueue/internal/config"
	"crawlqueue/internal/logging"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know about.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Store manages crawl queue persistence. It holds an explicit database handle;
// there is no package-level connection.
type Store struct {
	db        *sqlx.DB
	dialect   dialect
	path      string
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// Options configures a Store.
type Options struct {
	// Driver is DriverSQLite or DriverPostgres.
	Driver string
	// Path is the SQLite database file.
	Path string
	// DSN is the Postgres connection string.
	DSN string
	// Retention is how long executed entries survive CleanupQueue.
	Retention time.Duration
	// Clock overrides time.Now; tests use it to pin "now".
	Clock  func() time.Time
	Logger *slog.Logger
}

// DefaultRetention is the cleanup window used when Options.Retention is unset.
const DefaultRetention = 24 * time.Hour

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// execAffected runs a single mutating statement and returns the affected row
// count. The query is written with '?' placeholders and rebound per driver.
func (s *Store) execAffected(ctx context.Context, op, query string, args ...any) (int64, error) {
	ctx = ensureContext(ctx)
	query = s.db.Rebind(query)
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, storageError(op, err)
	}
	return affected, nil
}

func (s *Store) get(ctx context.Context, op string, dest any, query string, args ...any) error {
	if err := s.db.GetContext(ensureContext(ctx), dest, s.db.Rebind(query), args...); err != nil {
		return storageError(op, err)
	}
	return nil
}

func (s *Store) sel(ctx context.Context, op string, dest any, query string, args ...any) error {
	if err := s.db.SelectContext(ensureContext(ctx), dest, s.db.Rebind(query), args...); err != nil {
		return storageError(op, err)
	}
	return nil
}

func (s *Store) count(ctx context.Context, op, query string, args ...any) (int, error) {
	var n int
	if err := s.get(ctx, op, &n, query, args...); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) unixNow() int64 {
	return s.now().Unix()
}

// Open initializes or connects to the queue database described by cfg.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenWithOptions(context.Background(), Options{
		Driver:    cfg.Store.Driver,
		Path:      cfg.StorePath(),
		DSN:       cfg.Store.DSN,
		Retention: cfg.Retention(),
		Logger:    logger,
	})
}

// sqlitePragmas are applied by the driver to every pooled connection.
var sqlitePragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
}

func sqliteDSN(path string) string {
	params := make([]string, len(sqlitePragmas))
	for i, p := range sqlitePragmas {
		params[i] = "_pragma=" + p
	}
	return "file:" + path + "?" + strings.Join(params, "&")
}

// OpenWithOptions connects to the configured record store and ensures the
// schema exists.
func OpenWithOptions(ctx context.Context, opts Options) (*Store, error) {
	d, err := lookupDialect(opts.Driver)
	if err != nil {
		return nil, err
	}

	source := opts.DSN
	if d.name == DriverSQLite {
		if strings.TrimSpace(opts.Path) == "" {
			return nil, invalidArgument("sqlite store requires a path")
		}
		source = sqliteDSN(opts.Path)
	} else if strings.TrimSpace(source) == "" {
		return nil, invalidArgument("postgres store requires a dsn")
	}

	db, err := sqlx.Open(d.driverName, source)
	if err != nil {
		return nil, storageError("open database", err)
	}

	store := newStore(db, d, opts)
	if d.name == DriverSQLite {
		store.path = filepath.Clean(opts.Path)
	}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	store.logger.Debug("queue store opened",
		slog.String("driver", d.name),
		slog.String("path", store.path),
		slog.Duration("retention", store.retention),
	)
	return store, nil
}

// NewWithDB wraps an existing connection without touching the schema. The
// driver selects the SQL dialect; placeholders follow the driver name sqlx
// registered for db.
func NewWithDB(db *sqlx.DB, opts Options) (*Store, error) {
	if db == nil {
		return nil, invalidArgument("database handle is nil")
	}
	d, err := lookupDialect(opts.Driver)
	if err != nil {
		return nil, err
	}
	return newStore(db, d, opts), nil
}

func newStore(db *sqlx.DB, d dialect, opts Options) *Store {
	retention := opts.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{
		db:        db,
		dialect:   d,
		retention: retention,
		now:       clock,
		logger:    logger.With(slog.String(logging.FieldComponent, "queue")),
	}
}

// Driver reports the record store driver backing the store.
func (s *Store) Driver() string {
	return s.dialect.name
}

// Retention reports the cleanup window.
func (s *Store) Retention() time.Duration {
	return s.retention
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
