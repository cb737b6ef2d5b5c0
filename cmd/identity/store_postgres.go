package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements identity persistence over PostgreSQL.
//
// The pgx pool is owned by the caller; this store must NOT close it.
// Users and their credentials live in separate tables and are written in one transaction.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the identity store (default "tasktrack").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "tasktrack",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

const pgSchemaSQL = `
CREATE SCHEMA IF NOT EXISTS %[1]s;

CREATE TABLE IF NOT EXISTS %[2]s (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  email_norm TEXT NOT NULL,
  name TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),

  CONSTRAINT chk_users_id_ulid_len CHECK (char_length(id) = 26),
  CONSTRAINT uq_users_email_norm UNIQUE (email_norm)
);

CREATE TABLE IF NOT EXISTS %[3]s (
  user_id TEXT PRIMARY KEY REFERENCES %[2]s(id) ON DELETE CASCADE,
  password_hash TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// ApplySchema creates the identity tables if they do not exist.
func (s *PostgresStore) ApplySchema(ctx context.Context) error {
	ddl := fmt.Sprintf(pgSchemaSQL,
		pgx.Identifier{s.schema}.Sanitize(),
		pgIdent(s.schema, "users"),
		pgIdent(s.schema, "user_credentials"),
	)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("identity: apply schema: %w", err)
	}
	return nil
}

// CreateUser inserts the user and its credentials transactionally.
func (s *PostgresStore) CreateUser(ctx context.Context, rec NewUserRecord) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if rec.ID == "" || rec.EmailNorm == "" || rec.PasswordHash == "" {
		return User{}, invalid(op, "incomplete user record")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return User{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	users := pgIdent(s.schema, "users")
	creds := pgIdent(s.schema, "user_credentials")

	_, err = tx.Exec(ctx,
		`INSERT INTO `+users+` (id, email, email_norm, name, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.Email, rec.EmailNorm, rec.Name, rec.CreatedAt,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, fmt.Errorf("%s: insert user: %w", op, err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO `+creds+` (user_id, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $3)`,
		rec.ID, rec.PasswordHash, rec.CreatedAt,
	)
	if err != nil {
		return User{}, fmt.Errorf("%s: insert credentials: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return User{}, err
	}

	return User{
		ID:        rec.ID,
		Email:     rec.Email,
		EmailNorm: rec.EmailNorm,
		Name:      rec.Name,
		CreatedAt: rec.CreatedAt,
	}, nil
}

func (s *PostgresStore) GetUserAuthByEmail(ctx context.Context, emailNorm string) (UserAuth, error) {
	const op = "identity.GetUserAuthByEmail"

	users := pgIdent(s.schema, "users")
	creds := pgIdent(s.schema, "user_credentials")

	var ua UserAuth
	err := s.pool.QueryRow(ctx,
		`SELECT u.id, u.email, u.email_norm, u.name, u.created_at, c.password_hash
		   FROM `+users+` u
		   JOIN `+creds+` c ON c.user_id = u.id
		  WHERE u.email_norm = $1`,
		emailNorm,
	).Scan(&ua.User.ID, &ua.User.Email, &ua.User.EmailNorm, &ua.User.Name, &ua.User.CreatedAt, &ua.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
		}
		return UserAuth{}, fmt.Errorf("%s: %w", op, err)
	}
	ua.User.CreatedAt = ua.User.CreatedAt.UTC()
	return ua, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	users := pgIdent(s.schema, "users")

	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, email_norm, name, created_at FROM `+users+` WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.EmailNorm, &u.Name, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func (s *PostgresStore) UpdatePasswordHash(ctx context.Context, userID, passwordHash string, now time.Time) error {
	const op = "identity.UpdatePasswordHash"
	if passwordHash == "" {
		return invalid(op, "empty password hash")
	}

	creds := pgIdent(s.schema, "user_credentials")

	tag, err := s.pool.Exec(ctx,
		`UPDATE `+creds+` SET password_hash = $2, updated_at = $3 WHERE user_id = $1`,
		userID, passwordHash, now,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable constraint names; fall back to substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case c == "uq_users_email_norm", strings.Contains(c, "email"):
		return "email", true
	case c == "users_pkey":
		return "id", true
	default:
		return "unique", true
	}
}
