package csvfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rewards/internal/core"
	"rewards/internal/records"
)

func TestLoadMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope.csv"))
	res := s.Load(context.Background())
	if res.Outcome != records.Missing || len(res.Table) != 0 || res.Err != nil {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestLoadEmptyAndHeaderOnly(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"empty.csv":  "",
		"blank.csv":  "\n\n",
		"header.csv": "Date,Child,Activity,Note,Week_Start\n",
	} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		res := New(path).Load(context.Background())
		if res.Outcome != records.Loaded || len(res.Table) != 0 {
			t.Fatalf("%s: unexpected result %+v", name, res)
		}
	}
}

func TestLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"garbage.csv": "this is not\"a csv",
		"baddate.csv": "Date,Child,Activity,Note,Week_Start\nnot-a-date,Cheryl,Swimming,,\n",
		"header.csv":   "a,b,c\n1,2,3\n",
	}
	for name, content := range cases {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		res := New(path).Load(context.Background())
		if res.Outcome != records.Unreadable || len(res.Table) != 0 {
			t.Fatalf("%s: unexpected result %+v", name, res)
		}
		if !errors.Is(res.Err, records.ErrMalformed) {
			t.Fatalf("%s: expected ErrMalformed, got %v", name, res.Err)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "exercise.csv")
	s := New(path)
	ctx := context.Background()

	tbl := core.Table{
		core.NewEntry(core.NewDate(2025, 12, 22), "Jacqueline", "Running (30 min)", "park, then home"),
		core.NewEntry(core.NewDate(2025, 12, 22), "Jacqueline", "Running (30 min)", "park, then home"),
		core.NewEntry(core.NewDate(2025, 12, 30), "Cheryl", "Swimming", `said "again!"`),
	}
	if err := s.Save(ctx, tbl); err != nil {
		t.Fatalf("save: %v", err)
	}
	first := s.Load(ctx)
	if !first.Ok() || len(first.Table) != 3 {
		t.Fatalf("unexpected load %+v", first)
	}
	for i := range tbl {
		if first.Table[i] != tbl[i] {
			t.Fatalf("row %d: got %+v, want %+v", i, first.Table[i], tbl[i])
		}
	}

	// save(load()) leaves the file byte-identical.
	before, _ := os.ReadFile(path)
	if err := s.Save(ctx, first.Table); err != nil {
		t.Fatalf("second save: %v", err)
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Fatalf("round trip changed file:\n%s\n---\n%s", before, after)
	}
	if !strings.HasPrefix(string(after), "Date,Child,Activity,Note,Week_Start\n") {
		t.Fatalf("missing header: %q", after)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("expected only the data file, got %d entries", len(entries))
	}
}

func TestSaveRecomputesWeekStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exercise.csv")
	s := New(path)
	stale := core.Entry{Date: core.NewDate(2026, 1, 7), Child: "Cheryl", Activity: "Swimming", WeekStart: core.NewDate(2025, 12, 22)}
	if err := s.Save(context.Background(), core.Table{stale}); err != nil {
		t.Fatalf("save: %v", err)
	}
	res := s.Load(context.Background())
	if !res.Table[0].WeekStart.Equal(core.NewDate(2026, 1, 5)) {
		t.Fatalf("week start not recomputed: %v", res.Table[0].WeekStart)
	}
}

func TestResetThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exercise.csv")
	s := New(path)
	ctx := context.Background()
	if err := s.Save(ctx, core.Table{core.NewEntry(core.NewDate(2025, 12, 23), "Cheryl", "Swimming", "")}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(ctx, core.Table{}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	res := s.Load(ctx)
	if !res.Ok() || len(res.Table) != 0 {
		t.Fatalf("expected empty table after reset, got %+v", res)
	}
}

func TestLoadLegacyPandasExport(t *testing.T) {
	// Files written by the earlier script: blank notes, trailing newline.
	content := "Date,Child,Activity,Note,Week_Start\n" +
		"2025-12-22,Jacqueline,Swimming,,2025-12-22\n" +
		"2025-12-23,Cheryl,Other,rain,2025-12-22\n"
	path := filepath.Join(t.TempDir(), "exercise_data_v2.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	res := New(path).Load(context.Background())
	if !res.Ok() || len(res.Table) != 2 || res.Table[1].Note != "rain" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestSaveFailsWhenDirectoryIsFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := New(filepath.Join(blocker, "exercise.csv"))
	if err := s.Save(context.Background(), core.Table{}); err == nil {
		t.Fatalf("expected write failure to surface")
	}
}

func TestQuarantineMovesFileAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(path, []byte("a,b\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := New(path)
	dst, err := s.Quarantine(context.Background())
	if err != nil {
		t.Fatalf("quarantine: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(dst), "data.csv.unreadable-") {
		t.Fatalf("unexpected destination %s", dst)
	}
	if b, err := os.ReadFile(dst); err != nil || string(b) != "a,b\n" {
		t.Fatalf("quarantined content %q err=%v", b, err)
	}
	if res := s.Load(context.Background()); res.Outcome != records.Missing {
		t.Fatalf("expected missing after quarantine, got %+v", res)
	}
}
