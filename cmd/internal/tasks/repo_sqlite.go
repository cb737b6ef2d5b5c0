package tasks

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"tasktrack/cmd/internal/storage/sqlitedb"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

// SQLiteRepository implements task persistence over an embedded SQLite database.
// The *sql.DB is owned by the caller.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository constructs a SQLiteRepository.
func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("tasks: nil sqlite db")
	}
	return &SQLiteRepository{db: db}, nil
}

// Migrate applies the bundled task migrations.
func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	return sqlitedb.Migrate(ctx, r.db, sqliteMigrations, "migrations/sqlite", "tasks")
}

const sqliteTaskColumns = `id, owner_id, title, description, status, created_at, updated_at`

func (r *SQLiteRepository) Insert(ctx context.Context, t Task) (Task, error) {
	const op = "tasks.Insert"

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (`+sqliteTaskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Owner, t.Title, t.Description, string(t.Status),
		sqlitedb.ToMillis(t.CreatedAt), sqlitedb.ToMillis(t.UpdatedAt),
	)
	if err != nil {
		return Task{}, fmt.Errorf("%s: %w", op, err)
	}
	t.CreatedAt = sqlitedb.FromMillis(sqlitedb.ToMillis(t.CreatedAt))
	t.UpdatedAt = sqlitedb.FromMillis(sqlitedb.ToMillis(t.UpdatedAt))
	return t, nil
}

// List filters by owner and status in SQL. The title query is matched in Go
// because SQLite's lower() folds ASCII only.
func (r *SQLiteRepository) List(ctx context.Context, owner string, f Filter) ([]Task, error) {
	const op = "tasks.List"

	var (
		where = []string{"owner_id = ?"}
		args  = []any{owner}
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	q := strings.ToLower(f.Query)

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sqliteTaskColumns+` FROM tasks
		  WHERE `+strings.Join(where, " AND ")+`
		  ORDER BY created_at DESC, id DESC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]Task, 0)
	for rows.Next() {
		t, err := scanSQLiteTask(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		if q != "" && !strings.Contains(strings.ToLower(t.Title), q) {
			continue
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, owner, id string) (Task, error) {
	const op = "tasks.Get"

	row := r.db.QueryRowContext(ctx,
		`SELECT `+sqliteTaskColumns+` FROM tasks WHERE id = ? AND owner_id = ?`, id, owner,
	)
	t, err := scanSQLiteTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, NotFoundError{Op: op, ID: id}
		}
		return Task{}, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, owner, id string, ch Changes) (Task, error) {
	const op = "tasks.Update"

	var status *string
	if ch.Status != nil {
		s := string(*ch.Status)
		status = &s
	}

	row := r.db.QueryRowContext(ctx,
		`UPDATE tasks
		    SET title = COALESCE(?, title),
		        description = COALESCE(?, description),
		        status = COALESCE(?, status),
		        updated_at = ?
		  WHERE id = ? AND owner_id = ?
		RETURNING `+sqliteTaskColumns,
		ch.Title, ch.Description, status, sqlitedb.ToMillis(ch.UpdatedAt), id, owner,
	)
	t, err := scanSQLiteTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, NotFoundError{Op: op, ID: id}
		}
		return Task{}, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, owner, id string) error {
	const op = "tasks.Delete"

	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND owner_id = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return NotFoundError{Op: op, ID: id}
	}
	return nil
}

type sqlScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTask(row sqlScanner) (Task, error) {
	var (
		t                Task
		status           string
		created, updated int64
	)
	if err := row.Scan(&t.ID, &t.Owner, &t.Title, &t.Description, &status, &created, &updated); err != nil {
		return Task{}, err
	}
	t.Status = Status(status)
	t.CreatedAt = sqlitedb.FromMillis(created)
	t.UpdatedAt = sqlitedb.FromMillis(updated)
	return t, nil
}
