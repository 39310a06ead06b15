package records

import (
	"fmt"
	"strings"

	"rewards/internal/core"
)

// EncodeRow renders an entry in Header column order.
func EncodeRow(e core.Entry) []string {
	return []string{e.Date.String(), string(e.Child), e.Activity, e.Note, e.WeekStart.String()}
}

// EncodeTable renders a header row followed by one row per entry.
func EncodeTable(t core.Table) [][]string {
	out := make([][]string, 0, len(t)+1)
	out = append(out, append([]string(nil), Header...))
	for _, e := range t {
		out = append(out, EncodeRow(e))
	}
	return out
}

// DecodeTable parses rows produced by EncodeTable. The first row must be
// the header. Blank rows are skipped; a blank Week_Start is derived from
// Date. Any other unparseable row fails the whole table.
func DecodeTable(rows [][]string) (core.Table, error) {
	if len(rows) == 0 {
		return core.Table{}, nil
	}
	if err := checkHeader(rows[0]); err != nil {
		return nil, err
	}
	t := make(core.Table, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		e, err := decodeRow(row)
		if err != nil {
			// +2: one for the header, one for 1-based line numbers.
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformed, i+2, err)
		}
		t = append(t, e)
	}
	return t, nil
}

func checkHeader(row []string) error {
	if len(row) < len(Header) {
		return fmt.Errorf("%w: header has %d columns, want %d", ErrMalformed, len(row), len(Header))
	}
	for i, want := range Header {
		got := strings.TrimSpace(strings.TrimPrefix(row[i], "\ufeff"))
		if !strings.EqualFold(got, want) {
			return fmt.Errorf("%w: header column %d is %q, want %q", ErrMalformed, i+1, got, want)
		}
	}
	return nil
}

func decodeRow(row []string) (core.Entry, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	date, err := core.ParseDate(cell(0))
	if err != nil {
		return core.Entry{}, fmt.Errorf("date %q: %v", cell(0), err)
	}
	e := core.Entry{
		Date:     date,
		Child:    core.Child(cell(1)),
		Activity: cell(2),
		Note:     cell(3),
	}
	if ws := cell(4); ws != "" {
		e.WeekStart, err = core.ParseDate(ws)
		if err != nil {
			return core.Entry{}, fmt.Errorf("week start %q: %v", ws, err)
		}
	} else {
		e.WeekStart = core.WeekOf(date)
	}
	return e, nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
