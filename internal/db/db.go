package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*/*.sql
var migrations embed.FS

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

type DB struct {
	SQL    *sql.DB
	Driver string
}

type Options struct {
	Driver string
	URL    string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Migrate applies the embedded directory migrations after connecting.
	Migrate bool
}

func Open(ctx context.Context, opts Options) (*DB, error) {
	dsn, dialect, err := resolve(opts.Driver, opts.URL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	maxOpen := opts.MaxOpenConns
	if opts.Driver == DriverSQLite {
		// one writer at a time; avoids SQLITE_BUSY under concurrent logins
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if opts.Migrate {
		if err := migrate(ctx, db, dialect); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	return &DB{SQL: db, Driver: opts.Driver}, nil
}

func (d *DB) Close() error {
	return d.SQL.Close()
}

func resolve(driver, url string) (dsn, dialect string, err error) {
	switch driver {
	case DriverPostgres:
		if url == "" {
			return "", "", fmt.Errorf("database url is required for driver %q", driver)
		}
		return url, "postgres", nil
	case DriverSQLite:
		if url == "" {
			url = "directory.db"
		}
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		return url + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", "sqlite3", nil
	default:
		return "", "", fmt.Errorf("unsupported db driver %q", driver)
	}
}

func migrate(ctx context.Context, db *sql.DB, dialect string) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	dir := "migrations/sqlite"
	if dialect == "postgres" {
		dir = "migrations/postgres"
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}
