package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
)

// The schema files only create the users table when it is missing.
// Versioned migrations are out of scope for this module.
//
//go:embed schema/*.sql
var schemaFS embed.FS

// EnsureSchema creates the myusers table for the connection's dialect if it does not exist.
func EnsureSchema(ctx context.Context, c *Conn) error {
	if c == nil || c.DB == nil {
		return errors.New("nil connection")
	}
	file := "schema/sqlite.sql"
	if c.Dialect.IsPostgres() {
		file = "schema/postgres.sql"
	}
	text, err := schemaFS.ReadFile(file)
	if err != nil {
		return err
	}
	if _, err := c.ExecContext(ctx, string(text)); err != nil {
		return fmt.Errorf("apply %s: %w", file, err)
	}
	return nil
}
