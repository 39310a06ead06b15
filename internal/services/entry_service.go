package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rewards/internal/amqp"
	"rewards/internal/cache"
	"rewards/internal/core"
	applog "rewards/internal/log"
	"rewards/internal/records"
)

// ErrInvalidEntry wraps every rejection caused by user input. Nothing is
// written when it is returned.
var ErrInvalidEntry = errors.New("invalid entry")

// EventPublisher announces that the table was saved. *amqp.Client satisfies it.
type EventPublisher interface {
	PublishTableChanged(ctx context.Context, msg *amqp.TableChangedMessage) error
}

// EntryServiceConfig holds the household settings the service enforces.
type EntryServiceConfig struct {
	Roster     core.Roster
	Activities []string
	Start      core.Date
	Location   *time.Location
	// Now is the clock used to decide the current week (default: time.Now)
	Now func() time.Time
	// CacheTTL bounds how long a loaded table is served without re-reading (default: 30s)
	CacheTTL time.Duration
}

// EntryInput is one submission of the recording form.
type EntryInput struct {
	Date     core.Date
	Child    core.Child
	Activity string
	Note     string
}

// GridRow is one row of the bulk-edit grid as submitted.
type GridRow struct {
	Date     string
	Child    string
	Activity string
	Note     string
	Delete   bool
}

func (r GridRow) blank() bool {
	return strings.TrimSpace(r.Date) == "" && strings.TrimSpace(r.Child) == "" &&
		strings.TrimSpace(r.Activity) == "" && strings.TrimSpace(r.Note) == ""
}

const tableKey = "table"

// EntryService orchestrates recording, bulk edits, reset and status queries
// over a record store, and publishes a change message after each save.
type EntryService struct {
	store     records.Store
	publisher EventPublisher
	cfg       EntryServiceConfig
	tables    *cache.LRUCache[core.Table]
	log       *applog.StructuredLogger
}

func NewEntryService(store records.Store, publisher EventPublisher, cfg EntryServiceConfig) *EntryService {
	if len(cfg.Roster) == 0 {
		cfg.Roster = core.Roster(core.DefaultChildren)
	}
	if len(cfg.Activities) == 0 {
		cfg.Activities = core.DefaultActivities
	}
	if cfg.Start.IsZero() {
		cfg.Start = core.DefaultChallengeStart
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	return &EntryService{
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		tables:    cache.NewLRUCache[core.Table](1, cfg.CacheTTL),
		log:       applog.NewStructuredLogger(applog.Default(applog.ComponentEntries)),
	}
}

func (s *EntryService) Roster() core.Roster { return s.cfg.Roster }

func (s *EntryService) Activities() []string { return s.cfg.Activities }

func (s *EntryService) StartDate() core.Date { return s.cfg.Start }

// Today is the current calendar date in the configured time zone.
func (s *EntryService) Today() core.Date { return core.Today(s.cfg.Now(), s.cfg.Location) }

// Cache exposes the table cache so it can be registered for cleanup.
func (s *EntryService) Cache() *cache.LRUCache[core.Table] { return s.tables }

// Snapshot returns the current table and how it was obtained. Loaded tables
// are cached until the next save or the TTL.
func (s *EntryService) Snapshot(ctx context.Context) records.LoadResult {
	if t, ok := s.tables.Get(tableKey); ok {
		return records.LoadedResult(t.Clone())
	}
	res := s.store.Load(ctx)
	if res.Ok() {
		// Counting trusts stored week starts; the next save rewrites them.
		if stale := res.Table.Inconsistent(); len(stale) > 0 {
			applog.Default(applog.ComponentStorage).WarnContext(ctx, "Stored week starts disagree with dates",
				applog.FieldError, core.ErrWeekStartInconsistent, applog.FieldRows, len(stale))
		}
		s.tables.Set(tableKey, res.Table.Clone())
	} else {
		s.logLoad(ctx, res)
	}
	return res
}

// Table returns the current table, empty when nothing readable is stored.
func (s *EntryService) Table(ctx context.Context) core.Table {
	return s.Snapshot(ctx).Table
}

// WeeklyStatus computes the child's standing for the week containing today.
func (s *EntryService) WeeklyStatus(ctx context.Context, child core.Child) (core.WeeklyStatus, error) {
	if !s.cfg.Roster.Contains(child) {
		return core.WeeklyStatus{}, fmt.Errorf("%w: %w: %q", ErrInvalidEntry, core.ErrUnknownChild, child)
	}
	st := core.ComputeWeeklyStatus(s.Table(ctx), child, s.Today())
	s.log.LogStatus(ctx, string(st.Child), st.WeekStart.String(), st.Count, string(st.Tier))
	return st, nil
}

// Board computes this week's status for every child on the roster.
func (s *EntryService) Board(ctx context.Context) []core.WeeklyStatus {
	return core.WeeklyBoard(s.Table(ctx), s.cfg.Roster, s.Today())
}

// RecordEntry appends one session. Dates before the challenge start, unknown
// children and empty activities are rejected without touching the store.
func (s *EntryService) RecordEntry(ctx context.Context, in EntryInput) (core.Entry, error) {
	if err := in.Date.Validate(); err != nil {
		return core.Entry{}, fmt.Errorf("%w: %w", ErrInvalidEntry, err)
	}
	if in.Date.Before(s.cfg.Start) {
		return core.Entry{}, fmt.Errorf("%w: %w (%s is before %s)", ErrInvalidEntry, core.ErrBeforeChallengeStart, in.Date, s.cfg.Start)
	}
	e := core.NewEntry(in.Date, in.Child, in.Activity, in.Note)
	if err := e.Validate(s.cfg.Roster); err != nil {
		return core.Entry{}, fmt.Errorf("%w: %w", ErrInvalidEntry, err)
	}

	t := s.loadForWrite(ctx)
	t = append(t, e)
	if err := s.save(ctx, t, amqp.ReasonRecorded); err != nil {
		return core.Entry{}, err
	}

	s.log.LogEntryRecorded(ctx, string(e.Child), e.Date.String(), e.WeekStart.String(), e.Activity)
	return e, nil
}

// ParseGrid turns submitted grid rows into a table. Rows marked for deletion
// and fully blank rows are dropped; any other invalid row rejects the grid.
func (s *EntryService) ParseGrid(rows []GridRow) (core.Table, error) {
	t := core.Table{}
	for i, r := range rows {
		if r.Delete || r.blank() {
			continue
		}
		d, err := core.ParseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: date %q: %w", ErrInvalidEntry, i+1, r.Date, err)
		}
		e := core.NewEntry(d, core.Child(strings.TrimSpace(r.Child)), r.Activity, r.Note)
		if err := e.Validate(s.cfg.Roster); err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrInvalidEntry, i+1, err)
		}
		t = append(t, e)
	}
	return t, nil
}

// ReplaceTable overwrites the stored table with t after recomputing every
// week start. One invalid row rejects the whole table.
func (s *EntryService) ReplaceTable(ctx context.Context, t core.Table) error {
	t = t.WithRecomputedWeeks()
	for i, e := range t {
		if err := e.Validate(s.cfg.Roster); err != nil {
			return fmt.Errorf("%w: row %d: %w", ErrInvalidEntry, i+1, err)
		}
	}
	// The grid was built from an empty table if the stored one is unreadable.
	s.loadForWrite(ctx)
	if err := s.save(ctx, t, amqp.ReasonReplaced); err != nil {
		return err
	}
	s.log.LogTableReplaced(ctx, applog.OpReplace, len(t))
	return nil
}

// SaveGrid parses and stores the bulk-edit grid in one step.
func (s *EntryService) SaveGrid(ctx context.Context, rows []GridRow) (core.Table, error) {
	t, err := s.ParseGrid(rows)
	if err != nil {
		return nil, err
	}
	if err := s.ReplaceTable(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Reset stores an empty table. History is not recoverable afterwards, and
// unreadable state is overwritten rather than moved aside.
func (s *EntryService) Reset(ctx context.Context) error {
	if err := s.save(ctx, core.Table{}, amqp.ReasonReset); err != nil {
		return err
	}
	s.log.LogTableReplaced(ctx, applog.OpReset, 0)
	return nil
}

// loadForWrite reads the store directly. Unreadable state degrades to an
// empty table so a new entry can still be accepted; stores that support it
// move the unreadable state aside first.
func (s *EntryService) loadForWrite(ctx context.Context) core.Table {
	res := s.store.Load(ctx)
	if res.Outcome == records.Unreadable {
		s.logLoad(ctx, res)
		if q, ok := s.store.(records.Quarantiner); ok {
			if _, err := q.Quarantine(ctx); err != nil {
				s.log.LogError(ctx, "Failed to move unreadable table aside", err, applog.ComponentStorage, applog.OpSave, nil)
			}
		}
	}
	return res.Table
}

// save writes t and drops the cached table once the write has finished, so a
// snapshot taken while the save was in flight is not served afterwards.
func (s *EntryService) save(ctx context.Context, t core.Table, reason string) error {
	t = t.WithRecomputedWeeks()
	err := s.store.Save(ctx, t)
	s.tables.Delete(tableKey)
	if err != nil {
		s.log.LogError(ctx, "Failed to save table", err, applog.ComponentStorage, applog.OpSave,
			applog.NewFields().WithRows(len(t)).WithErrorType(applog.ErrorTypeStorage))
		return fmt.Errorf("save table: %w", err)
	}
	s.publish(ctx, reason, len(t))
	return nil
}

func (s *EntryService) publish(ctx context.Context, reason string, rows int) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTableChanged(ctx, amqp.NewTableChangedMessage(reason, rows)); err != nil {
		// The save already happened; the mirror catches up on its next full sync.
		s.log.LogError(ctx, "Failed to publish table changed message", err, applog.ComponentAMQP, reason,
			applog.NewFields().WithErrorType(applog.ErrorTypeNetwork))
	}
}

func (s *EntryService) logLoad(ctx context.Context, res records.LoadResult) {
	if res.Outcome == records.Missing {
		applog.Default(applog.ComponentStorage).DebugContext(ctx, "No stored table yet", applog.FieldLoadOutcome, string(res.Outcome))
		return
	}
	s.log.LogLoadDegraded(ctx, string(res.Outcome), res.Err)
}
