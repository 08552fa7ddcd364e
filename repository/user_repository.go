package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"userStore/internal/db"
	"userStore/internal/logging"
	"userStore/models"
)

const (
	createUserSQL     = `INSERT INTO myusers (firstname, lastname, age) VALUES (?, ?, ?)`
	updateUserSQL     = `UPDATE myusers SET firstname = ?, lastname = ?, age = ? WHERE id = ?`
	deleteUserSQL     = `DELETE FROM myusers WHERE id = ?`
	findUserByIDSQL   = `SELECT * FROM myusers WHERE id = ?`
	findUserByNameSQL = `SELECT * FROM myusers WHERE firstname = ?`
	findAllUsersSQL   = `SELECT * FROM myusers`
)

// UserRepository runs CRUD statements against the myusers table over one connection.
// Statements are prepared per call and closed before the call returns, so a single
// repository may be shared between goroutines; the connection serializes them.
type UserRepository struct {
	conn    *db.Conn
	log     zerolog.Logger
	timeout time.Duration
}

// Option configures a UserRepository.
type Option func(*UserRepository)

// WithTimeout bounds every call with a context deadline. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(r *UserRepository) { r.timeout = d }
}

// NewUserRepository wraps an open connection. A nil conn yields ErrNoConnection on every call.
func NewUserRepository(conn *db.Conn, logger zerolog.Logger, opts ...Option) *UserRepository {
	r := &UserRepository{conn: conn, log: logging.Component(logger, "user_repository")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open obtains a connection from the provider and wraps it in a repository.
func Open(ctx context.Context, provider *db.Provider, logger zerolog.Logger, opts ...Option) (*UserRepository, error) {
	conn, err := provider.Connect(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to get connection")
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return NewUserRepository(conn, logger, opts...), nil
}

// Close releases the repository's connection.
func (r *UserRepository) Close() error {
	if r.conn == nil || r.conn.DB == nil {
		return nil
	}
	return r.conn.Close()
}

// CreateUser inserts a user and returns its generated ID.
// ErrNoGeneratedKey is returned unless exactly one row was inserted and a key came back.
func (r *UserRepository) CreateUser(ctx context.Context, firstName, lastName string, age int) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	id, err := r.insert(ctx, firstName, lastName, age)
	if err != nil {
		r.log.Warn().Err(err).Str("first_name", firstName).Str("last_name", lastName).Msg("failed to create user")
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

func (r *UserRepository) insert(ctx context.Context, firstName, lastName string, age int) (int64, error) {
	if r.conn == nil {
		return 0, ErrNoConnection
	}
	if r.conn.Dialect.Returning {
		stmt, err := r.prepare(ctx, createUserSQL+" RETURNING id")
		if err != nil {
			return 0, err
		}
		defer r.release(stmt, "create user")

		var id int64
		if err := stmt.QueryRowxContext(ctx, firstName, lastName, age).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, ErrNoGeneratedKey
			}
			return 0, err
		}
		return id, nil
	}

	stmt, err := r.prepare(ctx, createUserSQL)
	if err != nil {
		return 0, err
	}
	defer r.release(stmt, "create user")

	res, err := stmt.ExecContext(ctx, firstName, lastName, age)
	if err != nil {
		return 0, err
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return 0, ErrNoGeneratedKey
	}
	id, err := res.LastInsertId()
	if err != nil || id == 0 {
		return 0, ErrNoGeneratedKey
	}
	return id, nil
}

// FindUserByID returns the user with the given ID, or ErrNotFound.
func (r *UserRepository) FindUserByID(ctx context.Context, id int64) (*models.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	u, err := r.findOne(ctx, findUserByIDSQL, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.log.Warn().Err(err).Int64("user_id", id).Msg("failed to find user by id")
		}
		return nil, fmt.Errorf("find user %d: %w", id, err)
	}
	return u, nil
}

// FindUserByName returns the first user, in result order, whose first name matches.
// Further matches are ignored. ErrNotFound is returned when there is none.
func (r *UserRepository) FindUserByName(ctx context.Context, firstName string) (*models.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	u, err := r.findOne(ctx, findUserByNameSQL, firstName)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.log.Warn().Err(err).Str("first_name", firstName).Msg("failed to find user by name")
		}
		return nil, fmt.Errorf("find user %q: %w", firstName, err)
	}
	return u, nil
}

// findOne maps the first row of query by column name.
func (r *UserRepository) findOne(ctx context.Context, query string, arg any) (*models.User, error) {
	if r.conn == nil {
		return nil, ErrNoConnection
	}
	stmt, err := r.prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	defer r.release(stmt, "find user")

	rows, err := stmt.QueryxContext(ctx, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	var u models.User
	if err := rows.StructScan(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// FindAllUsers returns every user in the order the database yields them.
// The slice is empty, never nil, when the table has no rows.
func (r *UserRepository) FindAllUsers(ctx context.Context) ([]models.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	out := make([]models.User, 0)
	if r.conn == nil {
		return out, fmt.Errorf("find all users: %w", ErrNoConnection)
	}
	stmt, err := r.prepare(ctx, findAllUsersSQL)
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to find all users")
		return out, fmt.Errorf("find all users: %w", err)
	}
	defer r.release(stmt, "find all users")

	if err := stmt.SelectContext(ctx, &out); err != nil {
		r.log.Warn().Err(err).Msg("failed to find all users")
		return make([]models.User, 0), fmt.Errorf("find all users: %w", err)
	}
	return out, nil
}

// UpdateUser overwrites first name, last name and age of the row with u.ID.
// It returns u unchanged together with the number of rows affected; an unknown
// ID affects zero rows and is not an error.
func (r *UserRepository) UpdateUser(ctx context.Context, u *models.User) (*models.User, int64, error) {
	if u == nil {
		return nil, 0, errors.New("update user: user is nil")
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	n, err := r.exec(ctx, updateUserSQL, "update user", u.FirstName, u.LastName, u.Age, u.ID)
	if err != nil {
		r.log.Warn().Err(err).Int64("user_id", u.ID).Msg("failed to update user")
		return u, 0, fmt.Errorf("update user %d: %w", u.ID, err)
	}
	return u, n, nil
}

// DeleteUser removes the row with the given ID and reports how many rows went away.
// Deleting an unknown ID returns (0, nil).
func (r *UserRepository) DeleteUser(ctx context.Context, id int64) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	n, err := r.exec(ctx, deleteUserSQL, "delete user", id)
	if err != nil {
		r.log.Warn().Err(err).Int64("user_id", id).Msg("failed to delete user")
		return 0, fmt.Errorf("delete user %d: %w", id, err)
	}
	return n, nil
}

func (r *UserRepository) exec(ctx context.Context, query, op string, args ...any) (int64, error) {
	if r.conn == nil {
		return 0, ErrNoConnection
	}
	stmt, err := r.prepare(ctx, query)
	if err != nil {
		return 0, err
	}
	defer r.release(stmt, op)

	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListUsersParams contains keyset pagination for ListUsers.
type ListUsersParams struct {
	PageSize int
	AfterID  int64
}

// ListUsers returns one page of users ordered by id asc, starting after p.AfterID.
func (r *UserRepository) ListUsers(ctx context.Context, p ListUsersParams) ([]models.User, error) {
	if p.PageSize <= 0 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
	if r.conn == nil {
		return nil, fmt.Errorf("list users: %w", ErrNoConnection)
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	q := sq.Select("id", "firstname", "lastname", "age").
		From("myusers").
		OrderBy("id ASC").
		Limit(uint64(p.PageSize)).
		PlaceholderFormat(r.conn.Dialect.Placeholder)
	if p.AfterID > 0 {
		q = q.Where(sq.Gt{"id": p.AfterID})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	out := make([]models.User, 0, p.PageSize)
	if err := r.conn.SelectContext(ctx, &out, query, args...); err != nil {
		r.log.Warn().Err(err).Int64("after_id", p.AfterID).Msg("failed to list users")
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

// prepare rebinds ? placeholders for the connection's driver and prepares the statement.
// Rows are mapped by column name; columns User has no field for are skipped.
func (r *UserRepository) prepare(ctx context.Context, query string) (*sqlx.Stmt, error) {
	return r.conn.Unsafe().PreparexContext(ctx, r.conn.Rebind(query))
}

// release closes a per-call statement. Close failures are logged, never returned.
func (r *UserRepository) release(stmt *sqlx.Stmt, op string) {
	if err := stmt.Close(); err != nil {
		r.log.Warn().Err(err).Str("op", op).Msg("failed to close statement")
	}
}

func (r *UserRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}
