package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// NewPostgres creates a PostgreSQL-backed repository from a lib/pq DSN.
func NewPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s, err := newSQLStore(db, postgresDialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Open returns the repository for driver, which is "sqlite" or "postgres".
func Open(ctx context.Context, driver, sqlitePath, postgresDSN string) (*SQLStore, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(sqlitePath)
	case "postgres":
		return NewPostgres(ctx, postgresDSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
