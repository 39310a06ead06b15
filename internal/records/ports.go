// Package records defines the Record Store contract shared by every
// storage backend.
package records

import (
	"context"
	"errors"

	"rewards/internal/core"
)

// Header is the column order used by every tabular backend.
var Header = []string{"Date", "Child", "Activity", "Note", "Week_Start"}

// Outcome tells callers which path Load took.
type Outcome string

const (
	// Loaded means persisted state was read successfully (possibly empty).
	Loaded Outcome = "loaded"
	// Missing means there was no persisted state yet.
	Missing Outcome = "missing"
	// Unreadable means persisted state exists but could not be parsed.
	Unreadable Outcome = "unreadable"
)

// ErrMalformed is wrapped by backends when stored rows cannot be parsed.
var ErrMalformed = errors.New("malformed record data")

// LoadResult is the outcome of a Load. Table is always usable: on Missing
// and Unreadable it is empty.
type LoadResult struct {
	Table   core.Table
	Outcome Outcome
	Err     error // cause, set only for Unreadable
}

// Ok reports whether state was read successfully.
func (r LoadResult) Ok() bool { return r.Outcome == Loaded }

// Ports for outbound adapters.
type (
	// Loader reads the full table. It never fails from the caller's view.
	Loader interface {
		Load(ctx context.Context) LoadResult
	}

	// Saver overwrites persisted state with the full table.
	Saver interface {
		Save(ctx context.Context, t core.Table) error
	}

	Store interface {
		Loader
		Saver
	}

	// Quarantiner is implemented by stores that can set unreadable state
	// aside before it is overwritten. It returns where the state went.
	Quarantiner interface {
		Quarantine(ctx context.Context) (string, error)
	}
)

// LoadedResult wraps a successfully read table.
func LoadedResult(t core.Table) LoadResult {
	if t == nil {
		t = core.Table{}
	}
	return LoadResult{Table: t, Outcome: Loaded}
}

// MissingResult is returned when nothing has been persisted yet.
func MissingResult() LoadResult {
	return LoadResult{Table: core.Table{}, Outcome: Missing}
}

// UnreadableResult degrades a read failure to an empty table.
func UnreadableResult(err error) LoadResult {
	return LoadResult{Table: core.Table{}, Outcome: Unreadable, Err: err}
}
