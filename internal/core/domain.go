package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the on-disk and form representation of a calendar date.
const DateLayout = "2006-01-02"

type (
	// Date is a calendar date with no time component, stored at UTC midnight.
	Date struct {
		time.Time
	}

	Child string

	// Entry is one logged exercise session.
	Entry struct {
		Date      Date
		Child     Child
		Activity  string
		Note      string
		WeekStart Date // Monday of Date's ISO week
	}

	// Table is the full set of entries. Order carries no meaning and
	// duplicates are allowed.
	Table []Entry
)

var (
	ErrZeroDate              = errors.New("date cannot be zero")
	ErrBeforeChallengeStart  = errors.New("date is before the challenge start")
	ErrUnknownChild          = errors.New("unknown child")
	ErrEmptyActivity         = errors.New("empty activity")
	ErrActivityTooLong       = errors.New("activity too long (max 100 characters)")
	ErrNoteTooLong           = errors.New("note too long (max 500 characters)")
	ErrWeekStartInconsistent = errors.New("week start does not match date")
)

// DefaultChildren is the roster used when none is configured.
var DefaultChildren = []Child{"Jacqueline", "Cheryl"}

// DefaultActivities are the selectable activity labels; free text is also accepted.
var DefaultActivities = []string{"Running (30 min)", "Jump rope (500)", "Swimming", "Other"}

// DefaultChallengeStart is the first day entries may be recorded for.
var DefaultChallengeStart = NewDate(2025, 12, 22)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	return d.Time.Before(o.Time)
}

// Equal reports whether d and o are the same calendar date.
func (d Date) Equal(o Date) bool {
	return d.Time.Equal(o.Time)
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// NewEntry builds an entry with its week start derived from date.
func NewEntry(date Date, child Child, activity, note string) Entry {
	return Entry{
		Date:      date,
		Child:     child,
		Activity:  strings.TrimSpace(activity),
		Note:      strings.TrimSpace(note),
		WeekStart: WeekOf(date),
	}
}

// Validate checks the fields that every stored entry must satisfy.
func (e Entry) Validate(roster Roster) error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if !roster.Contains(e.Child) {
		return ErrUnknownChild
	}
	if strings.TrimSpace(e.Activity) == "" {
		return ErrEmptyActivity
	}
	if utf8.RuneCountInString(e.Activity) > 100 {
		return ErrActivityTooLong
	}
	if utf8.RuneCountInString(e.Note) > 500 {
		return ErrNoteTooLong
	}
	return nil
}

// Consistent reports whether WeekStart agrees with Date.
func (e Entry) Consistent() bool {
	return e.WeekStart.Equal(WeekOf(e.Date))
}

// WithRecomputedWeeks returns a copy of t with every WeekStart derived from its Date.
func (t Table) WithRecomputedWeeks() Table {
	out := make(Table, len(t))
	for i, e := range t {
		e.WeekStart = WeekOf(e.Date)
		out[i] = e
	}
	return out
}

// Clone returns a copy that shares no backing array with t.
func (t Table) Clone() Table {
	if t == nil {
		return Table{}
	}
	return append(Table{}, t...)
}

// Inconsistent returns the indexes of entries whose WeekStart disagrees with Date.
func (t Table) Inconsistent() []int {
	var idx []int
	for i, e := range t {
		if !e.Consistent() {
			idx = append(idx, i)
		}
	}
	return idx
}

// Roster is the fixed set of children who may log sessions.
type Roster []Child

func (r Roster) Contains(c Child) bool {
	for _, v := range r {
		if v == c {
			return true
		}
	}
	return false
}

// Names returns the roster as plain strings, for templates.
func (r Roster) Names() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = string(c)
	}
	return out
}

// ParseRoster splits a comma separated list, dropping blanks and duplicates.
func ParseRoster(s string) Roster {
	seen := map[Child]struct{}{}
	var out Roster
	for _, part := range strings.Split(s, ",") {
		c := Child(strings.TrimSpace(part))
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
