package identity

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"tasktrack/cmd/internal/storage/sqlitedb"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

// SQLiteStore implements identity persistence over an embedded SQLite database.
// The *sql.DB is owned by the caller.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore constructs a SQLiteStore.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("identity: nil sqlite db")
	}
	return &SQLiteStore{db: db}, nil
}

// Migrate applies the bundled identity migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return sqlitedb.Migrate(ctx, s.db, sqliteMigrations, "migrations/sqlite", "identity")
}

func (s *SQLiteStore) CreateUser(ctx context.Context, rec NewUserRecord) (User, error) {
	const op = "identity.CreateUser"
	if rec.ID == "" || rec.EmailNorm == "" || rec.PasswordHash == "" {
		return User{}, invalid(op, "incomplete user record")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, err
	}
	defer func() { _ = tx.Rollback() }()

	created := sqlitedb.ToMillis(rec.CreatedAt)

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, email, email_norm, name, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Email, rec.EmailNorm, rec.Name, created,
	); err != nil {
		if detail, ok := sqlitedb.UniqueViolation(err); ok {
			field := "id"
			if strings.Contains(detail, "email_norm") {
				field = "email"
			}
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, fmt.Errorf("%s: insert user: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_credentials (user_id, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.PasswordHash, created, created,
	); err != nil {
		return User{}, fmt.Errorf("%s: insert credentials: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return User{}, err
	}

	return User{
		ID:        rec.ID,
		Email:     rec.Email,
		EmailNorm: rec.EmailNorm,
		Name:      rec.Name,
		CreatedAt: sqlitedb.FromMillis(created),
	}, nil
}

func (s *SQLiteStore) GetUserAuthByEmail(ctx context.Context, emailNorm string) (UserAuth, error) {
	const op = "identity.GetUserAuthByEmail"

	var (
		ua      UserAuth
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT u.id, u.email, u.email_norm, u.name, u.created_at, c.password_hash
		   FROM users u
		   JOIN user_credentials c ON c.user_id = u.id
		  WHERE u.email_norm = ?`,
		emailNorm,
	).Scan(&ua.User.ID, &ua.User.Email, &ua.User.EmailNorm, &ua.User.Name, &created, &ua.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
		}
		return UserAuth{}, fmt.Errorf("%s: %w", op, err)
	}
	ua.User.CreatedAt = sqlitedb.FromMillis(created)
	return ua, nil
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	var (
		u       User
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, email_norm, name, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &u.EmailNorm, &u.Name, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	u.CreatedAt = sqlitedb.FromMillis(created)
	return u, nil
}

func (s *SQLiteStore) UpdatePasswordHash(ctx context.Context, userID, passwordHash string, now time.Time) error {
	const op = "identity.UpdatePasswordHash"
	if passwordHash == "" {
		return invalid(op, "empty password hash")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE user_credentials SET password_hash = ?, updated_at = ? WHERE user_id = ?`,
		passwordHash, sqlitedb.ToMillis(now), userID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}
