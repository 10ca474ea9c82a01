package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"newsdesk/internal/domain"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	sqlite "github.com/mattn/go-sqlite3"
)

const (
	busyTimeoutMillis = 5000

	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 50 * time.Millisecond
	busyRetryMaxBackoff     = time.Second
)

type retryPolicy struct {
	attempts       int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

type Database struct {
	db    *sql.DB
	path  string
	retry retryPolicy
	log   *slog.Logger
}

const (
	driverName = "sqlite3_newsdesk"

	// foldFunc lower-cases text in SQL with the same Unicode rules that topic
	// matching uses in Go. The built-in lower() only knows ASCII.
	foldFunc = "fold_case"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func init() {
	sql.Register(driverName, &sqlite.SQLiteDriver{
		ConnectHook: func(conn *sqlite.SQLiteConn) error {
			return conn.RegisterFunc(foldFunc, foldCase, true)
		},
	})
}

func foldCase(s string) string {
	return strings.ToLower(s)
}

func New(ctx context.Context, dbPath string, log *slog.Logger) (*Database, error) {
	dbFile, err := sql.Open(driverName, dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open DB file: %w", err)
	}

	d := &Database{
		db:   dbFile,
		path: dbPath,
		retry: retryPolicy{
			attempts:       busyRetryAttempts,
			initialBackoff: busyRetryInitialBackoff,
			maxBackoff:     busyRetryMaxBackoff,
		},
		log: log,
	}

	if err = d.InitSchema(ctx); err != nil {
		if closeErr := dbFile.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close DB file: %w", closeErr))
		}

		return nil, err
	}

	return d, nil
}

// InitSchema applies embedded migrations. Running it against an up to date
// database is a no-op.
func (d *Database) InitSchema(ctx context.Context) error {
	dbInstance, err := sqlite3.WithInstance(d.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create DB instance: %w", err)
	}

	srcInstance, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create source instance: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcInstance, "sqlite3", dbInstance)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	migrateErr := m.Up()

	version, dirty, versionErr := m.Version()
	fields := []any{
		"dbPath", d.path,
	}

	if versionErr == nil {
		fields = append(fields, "version", version, "dirty", dirty)
	} else if !errors.Is(versionErr, migrate.ErrNilVersion) {
		d.log.WarnContext(ctx, "Failed to fetch migration version",
			"error", versionErr,
			"dbPath", d.path)
	}

	if migrateErr != nil {
		if !errors.Is(migrateErr, migrate.ErrNoChange) {
			return fmt.Errorf("apply migrations: %w", migrateErr)
		}

		d.log.InfoContext(ctx, "No migrations to apply", fields...)
	} else {
		d.log.InfoContext(ctx, "DB is migrated", fields...)
	}

	return nil
}

func (d *Database) Path() string {
	return d.path
}

func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *Database) Close() error {
	return d.db.Close()
}

// WithTx runs fn inside a single transaction. The transaction commits when fn
// returns nil and rolls back otherwise, including on panic. Lock contention
// restarts the whole scope with exponential backoff; once retries are exhausted
// the returned error wraps domain.ErrStoreBusy. fn must not block on network
// calls and may run more than once.
func (d *Database) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	backoff := d.retry.initialBackoff

	for attempt := 1; ; attempt++ {
		err := d.runTx(ctx, fn)
		if err == nil {
			return nil
		}

		if !isBusy(err) {
			return err
		}

		if attempt >= d.retry.attempts {
			return fmt.Errorf("%w after %d attempts: %w", domain.ErrStoreBusy, attempt, err)
		}

		d.log.WarnContext(ctx, "Store is busy, retrying",
			"error", err,
			"attempt", attempt,
			"backoff", backoff,
			"dbPath", d.path)

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for store: %w", ctx.Err())
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, d.retry.maxBackoff)
	}
}

func (d *Database) runTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}

		if err != nil {
			if rollbackErr := sqlTx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback tx: %w", rollbackErr))
			}
		}
	}()

	if err = fn(&Tx{tx: sqlTx, log: d.log}); err != nil {
		return err
	}

	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func dsn(dbPath string) string {
	return fmt.Sprintf(
		"file:%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on&_txlock=immediate",
		dbPath,
		busyTimeoutMillis,
	)
}

func isBusy(err error) bool {
	var sqliteErr sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	return sqliteErr.Code == sqlite.ErrBusy || sqliteErr.Code == sqlite.ErrLocked
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	return sqliteErr.ExtendedCode == sqlite.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite.ErrConstraintPrimaryKey
}
