package db

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Dialect captures the per-database differences the repository cares about.
type Dialect struct {
	// Name is the database/sql driver name.
	Name string
	// Placeholder is the bind-variable format used by squirrel-built queries.
	Placeholder sq.PlaceholderFormat
	// Returning is set when generated keys come back through INSERT ... RETURNING
	// instead of LastInsertId.
	Returning bool
}

var (
	Postgres = Dialect{Name: "pgx", Placeholder: sq.Dollar, Returning: true}
	SQLite   = Dialect{Name: "sqlite3", Placeholder: sq.Question}
)

// driverAliases maps the identifiers found in properties files to registered drivers.
var driverAliases = map[string]Dialect{
	"pgx":                   Postgres,
	"pgx/v5":                Postgres,
	"postgres":              Postgres,
	"postgresql":            Postgres,
	"org.postgresql.driver": Postgres,
	"sqlite":                SQLite,
	"sqlite3":               SQLite,
	"org.sqlite.jdbc":       SQLite,
}

// DialectFor resolves a driver identifier (case-insensitive).
func DialectFor(driver string) (Dialect, error) {
	d, ok := driverAliases[strings.ToLower(strings.TrimSpace(driver))]
	if !ok {
		return Dialect{}, fmt.Errorf("unsupported driver %q", driver)
	}
	return d, nil
}

// IsPostgres reports whether d talks to PostgreSQL.
func (d Dialect) IsPostgres() bool {
	return d.Name == Postgres.Name
}

// normalizeURL strips JDBC prefixes so the URL can be handed to a Go driver.
//
//	jdbc:postgresql://host:5432/db -> postgresql://host:5432/db
//	jdbc:sqlite:app.db             -> app.db
func normalizeURL(d Dialect, raw string) string {
	u := strings.TrimSpace(raw)
	u = strings.TrimPrefix(u, "jdbc:")
	if !d.IsPostgres() {
		u = strings.TrimPrefix(u, "sqlite3:")
		u = strings.TrimPrefix(u, "sqlite:")
	}
	return u
}
