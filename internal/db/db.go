package db

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Conn is a single long-lived database connection bound to its dialect.
// The underlying handle is capped at one open connection, so calls made through
// it are serialized by database/sql rather than spread over a pool.
type Conn struct {
	*sqlx.DB
	Dialect Dialect
}

// Open opens driver/dsn as a single-connection handle and pings it.
// For SQLite it also enables foreign keys and a busy timeout.
func Open(ctx context.Context, driver, dsn string) (*Conn, error) {
	d, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	x, err := sqlx.Open(d.Name, dsn)
	if err != nil {
		return nil, err
	}
	x.SetMaxOpenConns(1)
	x.SetMaxIdleConns(1)
	x.SetConnMaxLifetime(0)
	x.SetConnMaxIdleTime(0)

	if err := x.PingContext(ctx); err != nil {
		_ = x.Close()
		return nil, fmt.Errorf("ping %s: %w", d.Name, err)
	}
	if d.Name == SQLite.Name {
		if _, err := x.ExecContext(ctx, `PRAGMA busy_timeout=5000`); err != nil {
			_ = x.Close()
			return nil, err
		}
		if _, err := x.ExecContext(ctx, `PRAGMA foreign_keys=ON`); err != nil {
			_ = x.Close()
			return nil, err
		}
	}
	return &Conn{DB: x, Dialect: d}, nil
}
