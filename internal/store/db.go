package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Registers the "pgx" driver.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"
)

const (
	driverSQLite   = "sqlite"
	driverPostgres = "pgx"
)

func init() {
	sqlx.BindDriver(driverSQLite, sqlx.QUESTION)
}

// DB implements Repo on top of SQLite or PostgreSQL.
type DB struct {
	db     *sqlx.DB
	loc    *time.Location
	driver string
	now    func() time.Time
}

var _ Repo = (*DB)(nil)

// Open connects to the database named by databaseURL, applies driver
// settings and runs the embedded migrations.
//
// Accepted forms: "postgres://...", "postgresql://...", "sqlite:///path.db",
// "file:...", or a bare SQLite path. Dates read back from the store are
// interpreted in loc.
func Open(ctx context.Context, databaseURL string, loc *time.Location) (*DB, error) {
	driver, dsn, err := ParseDatabaseURL(databaseURL)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}

	if driver == driverSQLite {
		if dir := sqliteDir(dsn); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, wrap("open", err)
	}

	if driver == driverSQLite {
		// Single writer engine; one connection also keeps :memory: databases alive.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		if err := applyPragmas(ctx, db); err != nil {
			_ = db.Close()
			return nil, wrap("apply pragmas", err)
		}
	} else {
		db.SetMaxOpenConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, wrap("ping", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, wrap("migrations", err)
	}

	return &DB{db: db, loc: loc, driver: driver, now: time.Now}, nil
}

// ParseDatabaseURL maps a DATABASE_URL value to a database/sql driver name
// and DSN.
func ParseDatabaseURL(raw string) (driver, dsn string, err error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return "", "", fmt.Errorf("empty database url")
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return driverPostgres, raw, nil
	case strings.HasPrefix(raw, "sqlite:///"):
		return driverSQLite, strings.TrimPrefix(raw, "sqlite:///"), nil
	case strings.HasPrefix(raw, "sqlite://"):
		return driverSQLite, strings.TrimPrefix(raw, "sqlite://"), nil
	case strings.Contains(raw, "://"):
		return "", "", fmt.Errorf("unsupported database url scheme: %s", strings.SplitN(raw, "://", 2)[0])
	default:
		return driverSQLite, raw, nil
	}
}

// sqliteDir returns the directory to create for a file-backed SQLite DSN.
func sqliteDir(dsn string) string {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return ""
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return ""
	}
	return dir
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Ping checks that the database answers.
func (s *DB) Ping(ctx context.Context) error {
	return wrap("ping", s.db.PingContext(ctx))
}

// Close releases the underlying database resources.
func (s *DB) Close() error {
	return s.db.Close()
}

// Driver is the database/sql driver in use ("sqlite" or "pgx").
func (s *DB) Driver() string { return s.driver }

// Location is the zone stored dates are interpreted in.
func (s *DB) Location() *time.Location { return s.loc }

func (s *DB) nowUnix() int64 { return s.now().UTC().Unix() }
