package repository

import "errors"

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("user not found")
	// ErrNoGeneratedKey is returned when an insert did not produce exactly one row with a key.
	ErrNoGeneratedKey = errors.New("no generated key returned")
	// ErrNoConnection is returned by a repository constructed without a connection.
	ErrNoConnection = errors.New("repository has no connection")
)
