package tasks

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements task persistence over PostgreSQL.
//
// The pgx pool is owned by the caller; this repository must NOT close it.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the repository.
type PostgresOption func(*PostgresRepository) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema (default "tasktrack").
func WithSchema(schema string) PostgresOption {
	return func(r *PostgresRepository) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("tasks: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("tasks: invalid schema identifier")
		}
		r.schema = schema
		return nil
	}
}

// NewPostgresRepository constructs a PostgresRepository.
func NewPostgresRepository(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresRepository, error) {
	r := &PostgresRepository{
		pool:   pool,
		schema: "tasktrack",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.pool == nil {
		return nil, fmt.Errorf("tasks: nil pool")
	}
	return r, nil
}

const pgSchemaSQL = `
CREATE SCHEMA IF NOT EXISTS %[1]s;

CREATE TABLE IF NOT EXISTS %[2]s (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'pending',
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,

  CONSTRAINT chk_tasks_id_ulid_len CHECK (char_length(id) = 26),
  CONSTRAINT chk_tasks_status CHECK (status IN ('pending', 'in-progress', 'completed')),
  CONSTRAINT chk_tasks_title_nonempty CHECK (char_length(btrim(title)) > 0)
);

CREATE INDEX IF NOT EXISTS idx_tasks_owner_created ON %[2]s (owner_id, created_at DESC, id DESC);
`

// ApplySchema creates the tasks table if it does not exist.
func (r *PostgresRepository) ApplySchema(ctx context.Context) error {
	ddl := fmt.Sprintf(pgSchemaSQL,
		pgx.Identifier{r.schema}.Sanitize(),
		pgIdent(r.schema, "tasks"),
	)
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("tasks: apply schema: %w", err)
	}
	return nil
}

const pgTaskColumns = `id, owner_id, title, description, status, created_at, updated_at`

func (r *PostgresRepository) Insert(ctx context.Context, t Task) (Task, error) {
	const op = "tasks.Insert"

	_, err := r.pool.Exec(ctx,
		`INSERT INTO `+pgIdent(r.schema, "tasks")+` (`+pgTaskColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.Owner, t.Title, t.Description, string(t.Status), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return Task{}, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

func (r *PostgresRepository) List(ctx context.Context, owner string, f Filter) ([]Task, error) {
	const op = "tasks.List"

	var (
		where = []string{"owner_id = $1"}
		args  = []any{owner}
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Query != "" {
		args = append(args, f.Query)
		where = append(where, fmt.Sprintf("strpos(lower(title), lower($%d)) > 0", len(args)))
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+pgTaskColumns+` FROM `+pgIdent(r.schema, "tasks")+`
		  WHERE `+strings.Join(where, " AND ")+`
		  ORDER BY created_at DESC, id DESC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]Task, 0)
	for rows.Next() {
		t, err := scanPgTask(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (r *PostgresRepository) Get(ctx context.Context, owner, id string) (Task, error) {
	const op = "tasks.Get"

	row := r.pool.QueryRow(ctx,
		`SELECT `+pgTaskColumns+` FROM `+pgIdent(r.schema, "tasks")+` WHERE id = $1 AND owner_id = $2`,
		id, owner,
	)
	t, err := scanPgTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, NotFoundError{Op: op, ID: id}
		}
		return Task{}, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

func (r *PostgresRepository) Update(ctx context.Context, owner, id string, ch Changes) (Task, error) {
	const op = "tasks.Update"

	var status *string
	if ch.Status != nil {
		s := string(*ch.Status)
		status = &s
	}

	row := r.pool.QueryRow(ctx,
		`UPDATE `+pgIdent(r.schema, "tasks")+`
		    SET title = COALESCE($3, title),
		        description = COALESCE($4, description),
		        status = COALESCE($5, status),
		        updated_at = $6
		  WHERE id = $1 AND owner_id = $2
		RETURNING `+pgTaskColumns,
		id, owner, ch.Title, ch.Description, status, ch.UpdatedAt,
	)
	t, err := scanPgTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, NotFoundError{Op: op, ID: id}
		}
		return Task{}, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, owner, id string) error {
	const op = "tasks.Delete"

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM `+pgIdent(r.schema, "tasks")+` WHERE id = $1 AND owner_id = $2`,
		id, owner,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, ID: id}
	}
	return nil
}

func scanPgTask(row pgx.Row) (Task, error) {
	var (
		t      Task
		status string
	)
	if err := row.Scan(&t.ID, &t.Owner, &t.Title, &t.Description, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Task{}, err
	}
	t.Status = Status(status)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}
