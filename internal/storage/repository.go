package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"rewards/internal/core"
	"rewards/internal/records"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores the record table in a SQLite database.
type SQLiteRepository struct {
	mu      sync.Mutex
	db      *sql.DB
	version uint
}

var _ records.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serialises anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, version: version}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SchemaVersion returns the migration version applied at startup.
func (r *SQLiteRepository) SchemaVersion() uint { return r.version }

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Load implements records.Loader
func (r *SQLiteRepository) Load(ctx context.Context) records.LoadResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var savedAt string
	err := r.db.QueryRowContext(ctx, `SELECT saved_at FROM table_state WHERE id = 1`).Scan(&savedAt)
	if err == sql.ErrNoRows {
		return records.MissingResult()
	}
	if err != nil {
		return records.UnreadableResult(fmt.Errorf("read table state: %w", err))
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT entry_date, child, activity, note, week_start FROM entries ORDER BY position, id`)
	if err != nil {
		return records.UnreadableResult(fmt.Errorf("query entries: %w", err))
	}
	defer rows.Close()

	t := core.Table{}
	for rows.Next() {
		var date, child, activity, note, week string
		if err := rows.Scan(&date, &child, &activity, &note, &week); err != nil {
			return records.UnreadableResult(fmt.Errorf("scan entry: %w", err))
		}
		e, err := decodeEntry(date, child, activity, note, week)
		if err != nil {
			return records.UnreadableResult(err)
		}
		t = append(t, e)
	}
	if err := rows.Err(); err != nil {
		return records.UnreadableResult(fmt.Errorf("iterate entries: %w", err))
	}

	slog.DebugContext(ctx, "Loaded SQLite records", "rows", len(t), "saved_at", savedAt)
	return records.LoadedResult(t)
}

// Save implements records.Saver. The whole table is replaced in one
// transaction.
func (r *SQLiteRepository) Save(ctx context.Context, t core.Table) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t = t.WithRecomputedWeeks()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (position, entry_date, child, activity, note, week_start) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range t {
		if _, err := stmt.ExecContext(ctx, i, e.Date.String(), string(e.Child), e.Activity, e.Note, e.WeekStart.String()); err != nil {
			return fmt.Errorf("insert entry %d: %w", i, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO table_state (id, saved_at, row_count) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET saved_at = excluded.saved_at, row_count = excluded.row_count`,
		time.Now().UTC().Format(time.RFC3339), len(t)); err != nil {
		return fmt.Errorf("record table state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Saved records to SQLite", "rows", len(t))
	return nil
}

func decodeEntry(date, child, activity, note, week string) (core.Entry, error) {
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Entry{}, fmt.Errorf("%w: entry date %q: %v", records.ErrMalformed, date, err)
	}
	w, err := core.ParseDate(week)
	if err != nil {
		return core.Entry{}, fmt.Errorf("%w: week start %q: %v", records.ErrMalformed, week, err)
	}
	return core.Entry{Date: d, Child: core.Child(child), Activity: activity, Note: note, WeekStart: w}, nil
}
