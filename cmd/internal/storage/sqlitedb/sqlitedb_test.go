package sqlitedb

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"
)

func TestMigrate_AppliesOnceAndDetectsUnique(t *testing.T) {
	ctx := context.Background()

	db, err := Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	fsys := fstest.MapFS{
		"m/0001_things.sql": {Data: []byte(`CREATE TABLE things (id TEXT PRIMARY KEY, name TEXT NOT NULL UNIQUE);`)},
		"m/README.md":       {Data: []byte("ignored")},
	}

	for i := 0; i < 2; i++ {
		if err := Migrate(ctx, db, fsys, "m", "test"); err != nil {
			t.Fatalf("Migrate run %d: %v", i+1, err)
		}
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(1) FROM schema_migrations WHERE name = 'test/0001_things.sql'`).Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected migration recorded once, got %d", n)
	}

	if _, err := db.ExecContext(ctx, `INSERT INTO things (id, name) VALUES ('a', 'x')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_, err = db.ExecContext(ctx, `INSERT INTO things (id, name) VALUES ('b', 'x')`)
	detail, ok := UniqueViolation(err)
	if !ok {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if detail == "" {
		t.Fatalf("expected violation detail")
	}
	if _, ok := UniqueViolation(nil); ok {
		t.Fatalf("nil is not a violation")
	}
}

func TestOpen_RejectsEmptyPath(t *testing.T) {
	if _, err := Open(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestMillisRoundTrip(t *testing.T) {
	in := time.Date(2024, 3, 1, 12, 30, 45, 123_456_789, time.FixedZone("x", 3600))
	got := FromMillis(ToMillis(in))
	if !got.Equal(in.Truncate(time.Millisecond)) {
		t.Fatalf("got %v want %v", got, in.Truncate(time.Millisecond))
	}
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC")
	}
}
