package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"rewards/internal/core"
	"rewards/internal/records"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "rewards.db"))
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestMigrationsApplied(t *testing.T) {
	repo := newTestRepo(t)
	if repo.SchemaVersion() != 1 {
		t.Fatalf("schema version = %d, want 1", repo.SchemaVersion())
	}
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestLoadBeforeFirstSaveIsMissing(t *testing.T) {
	repo := newTestRepo(t)
	if res := repo.Load(context.Background()); res.Outcome != records.Missing || len(res.Table) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tbl := core.Table{
		core.NewEntry(core.NewDate(2025, 12, 24), "Cheryl", "Swimming", "first"),
		core.NewEntry(core.NewDate(2025, 12, 22), "Jacqueline", "Other", ""),
		core.NewEntry(core.NewDate(2025, 12, 22), "Jacqueline", "Other", ""),
	}
	if err := repo.Save(ctx, tbl); err != nil {
		t.Fatalf("save: %v", err)
	}
	res := repo.Load(ctx)
	if !res.Ok() || len(res.Table) != 3 {
		t.Fatalf("unexpected load %+v", res)
	}
	// Insertion order is preserved.
	for i := range tbl {
		if res.Table[i] != tbl[i] {
			t.Fatalf("row %d: got %+v, want %+v", i, res.Table[i], tbl[i])
		}
	}

	if err := repo.Save(ctx, res.Table); err != nil {
		t.Fatalf("resave: %v", err)
	}
	again := repo.Load(ctx)
	if len(again.Table) != len(res.Table) {
		t.Fatalf("round trip changed row count")
	}

	st := core.ComputeWeeklyStatus(res.Table, "Jacqueline", core.NewDate(2025, 12, 22))
	if st.Count != 2 {
		t.Fatalf("Jacqueline count after reload = %d, want 2", st.Count)
	}
}

func TestResetLeavesEmptyLoadedTable(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	if err := repo.Save(ctx, core.Table{core.NewEntry(core.NewDate(2025, 12, 22), "Cheryl", "Swimming", "")}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Save(ctx, core.Table{}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	res := repo.Load(ctx)
	if res.Outcome != records.Loaded || len(res.Table) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestMalformedRowIsUnreadable(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	if err := repo.Save(ctx, core.Table{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := repo.db.ExecContext(ctx,
		`INSERT INTO entries (position, entry_date, child, activity, note, week_start) VALUES (0, 'soon', 'Cheryl', 'x', '', '2025-12-22')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	res := repo.Load(ctx)
	if res.Outcome != records.Unreadable || !errors.Is(res.Err, records.ErrMalformed) {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rewards.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := repo.Save(context.Background(), core.Table{core.NewEntry(core.NewDate(2025, 12, 22), "Cheryl", "Swimming", "")}); err != nil {
		t.Fatalf("save: %v", err)
	}
	repo.Close()

	repo, err = NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo.Close()
	if res := repo.Load(context.Background()); len(res.Table) != 1 {
		t.Fatalf("expected 1 row after reopen, got %+v", res)
	}
}
