package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"tasktrack/cmd/identity/ids"
)

var contractNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

// runRepositoryContract exercises the behavior every Repository backend must share.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	t.Run("InsertGetList", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		a := mustInsert(t, repo, "owner-a", "Buy milk", StatusPending, contractNow)
		b := mustInsert(t, repo, "owner-a", "Walk dog", StatusCompleted, contractNow.Add(time.Second))
		mustInsert(t, repo, "owner-b", "Buy bread", StatusPending, contractNow)

		got, err := repo.Get(ctx, "owner-a", a.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !sameTask(got, a) {
			t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, a)
		}

		list, err := repo.List(ctx, "owner-a", Filter{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(list) != 2 || list[0].ID != b.ID || list[1].ID != a.ID {
			t.Fatalf("expected [b, a] newest first, got %+v", list)
		}

		empty, err := repo.List(ctx, "owner-c", Filter{})
		if err != nil {
			t.Fatalf("List empty: %v", err)
		}
		if empty == nil || len(empty) != 0 {
			t.Fatalf("expected empty non-nil list, got %#v", empty)
		}
	})

	t.Run("SameTimestampOrdersByID", func(t *testing.T) {
		repo := newRepo(t)

		first := mustInsert(t, repo, "owner-a", "one", StatusPending, contractNow)
		second := mustInsert(t, repo, "owner-a", "two", StatusPending, contractNow)

		list, err := repo.List(context.Background(), "owner-a", Filter{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
			t.Fatalf("expected later id first, got %+v", list)
		}
	})

	t.Run("Filters", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		mustInsert(t, repo, "owner-a", "Buy MILK", StatusPending, contractNow)
		done := mustInsert(t, repo, "owner-a", "buy eggs", StatusCompleted, contractNow.Add(time.Second))
		mustInsert(t, repo, "owner-a", "Call mom", StatusCompleted, contractNow.Add(2*time.Second))
		mustInsert(t, repo, "owner-b", "buy stuff", StatusCompleted, contractNow)

		byQuery, err := repo.List(ctx, "owner-a", Filter{Query: "buy"})
		if err != nil {
			t.Fatalf("List query: %v", err)
		}
		if len(byQuery) != 2 {
			t.Fatalf("expected 2 title matches, got %+v", byQuery)
		}

		both, err := repo.List(ctx, "owner-a", Filter{Query: "BUY", Status: StatusCompleted})
		if err != nil {
			t.Fatalf("List query+status: %v", err)
		}
		if len(both) != 1 || both[0].ID != done.ID {
			t.Fatalf("expected only %s, got %+v", done.ID, both)
		}

		special, err := repo.List(ctx, "owner-a", Filter{Query: "%"})
		if err != nil {
			t.Fatalf("List special: %v", err)
		}
		if len(special) != 0 {
			t.Fatalf("query must be matched literally, got %+v", special)
		}
	})

	t.Run("QueryFoldsNonASCII", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		want := mustInsert(t, repo, "owner-a", "Ärger im Büro", StatusPending, contractNow)
		mustInsert(t, repo, "owner-a", "Arger", StatusPending, contractNow.Add(time.Second))

		for _, q := range []string{"ä", "BÜRO", "ärger"} {
			got, err := repo.List(ctx, "owner-a", Filter{Query: q})
			if err != nil {
				t.Fatalf("List %q: %v", q, err)
			}
			if len(got) != 1 || got[0].ID != want.ID {
				t.Fatalf("query %q: expected only %s, got %+v", q, want.ID, got)
			}
		}
	})

	t.Run("UpdatePartial", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		orig := mustInsert(t, repo, "owner-a", "Buy milk", StatusPending, contractNow)
		status := StatusCompleted
		later := contractNow.Add(time.Minute)

		got, err := repo.Update(ctx, "owner-a", orig.ID, Changes{Status: &status, UpdatedAt: later})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if got.Status != StatusCompleted || got.Title != orig.Title || got.Description != orig.Description {
			t.Fatalf("unexpected update result: %+v", got)
		}
		if !got.CreatedAt.Equal(orig.CreatedAt) || !got.UpdatedAt.Equal(later) {
			t.Fatalf("timestamps: created=%v updated=%v", got.CreatedAt, got.UpdatedAt)
		}

		empty := ""
		got, err = repo.Update(ctx, "owner-a", orig.ID, Changes{Description: &empty, UpdatedAt: later})
		if err != nil {
			t.Fatalf("Update description: %v", err)
		}
		if got.Description != "" || got.Status != StatusCompleted {
			t.Fatalf("unexpected update result: %+v", got)
		}
	})

	t.Run("ForeignIsNotFound", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		a := mustInsert(t, repo, "owner-a", "secret", StatusPending, contractNow)
		title := "stolen"

		if _, err := repo.Get(ctx, "owner-b", a.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("foreign Get: expected ErrNotFound, got %v", err)
		}
		if _, err := repo.Update(ctx, "owner-b", a.ID, Changes{Title: &title, UpdatedAt: contractNow}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("foreign Update: expected ErrNotFound, got %v", err)
		}
		if err := repo.Delete(ctx, "owner-b", a.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("foreign Delete: expected ErrNotFound, got %v", err)
		}

		got, err := repo.Get(ctx, "owner-a", a.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !sameTask(got, a) {
			t.Fatalf("foreign calls changed the task: %+v", got)
		}
	})

	t.Run("DeleteThenMissing", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		a := mustInsert(t, repo, "owner-a", "temp", StatusPending, contractNow)
		if err := repo.Delete(ctx, "owner-a", a.ID); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if err := repo.Delete(ctx, "owner-a", a.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("second Delete: expected ErrNotFound, got %v", err)
		}
		if _, err := repo.Get(ctx, "owner-a", a.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get after delete: expected ErrNotFound, got %v", err)
		}
	})
}

func mustInsert(t *testing.T, repo Repository, owner, title string, status Status, at time.Time) Task {
	t.Helper()

	id, err := ids.NewULID(at)
	if err != nil {
		t.Fatalf("ulid: %v", err)
	}
	task, err := repo.Insert(context.Background(), Task{
		ID:          id,
		Title:       title,
		Description: "desc of " + title,
		Status:      status,
		Owner:       owner,
		CreatedAt:   at,
		UpdatedAt:   at,
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return task
}

func sameTask(a, b Task) bool {
	return a.ID == b.ID &&
		a.Owner == b.Owner &&
		a.Title == b.Title &&
		a.Description == b.Description &&
		a.Status == b.Status &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		a.UpdatedAt.Equal(b.UpdatedAt)
}

func TestMemoryRepository_Contract(t *testing.T) {
	runRepositoryContract(t, func(t *testing.T) Repository {
		return NewMemoryRepository()
	})
}
