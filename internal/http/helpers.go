package http

import (
	"errors"
	"strings"

	"rewards/internal/core"
	"rewards/internal/services"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// banner is the themed heading shown above the recording form.
type banner struct {
	Theme string
	Emoji string
	Title string
}

var banners = []struct {
	theme, emoji, format string
}{
	{"rabbit", "🐰", "%s's Bunny Exercise Station"},
	{"fox", "🦊", "%s's Fox Training Camp"},
}

// bannerFor picks a theme by roster position so each child keeps theirs.
func bannerFor(roster core.Roster, child core.Child) banner {
	i := 0
	for j, c := range roster {
		if c == child {
			i = j
			break
		}
	}
	b := banners[i%len(banners)]
	return banner{
		Theme: b.theme,
		Emoji: b.emoji,
		Title: strings.Replace(b.format, "%s", string(child), 1),
	}
}

// statusView is the template data for the weekly status partial.
type statusView struct {
	Child     string
	Theme     string
	WeekStart string
	Count     int
	Tier      string
	Reward    int
	Achieved  bool
	TopTier   bool
	Remaining int
	NextGoal  string
	Percent   int
}

func newStatusView(st core.WeeklyStatus, b banner) statusView {
	return statusView{
		Child:     string(st.Child),
		Theme:     b.Theme,
		WeekStart: st.WeekStart.String(),
		Count:     st.Count,
		Tier:      string(st.Tier),
		Reward:    st.Reward,
		Achieved:  st.Achieved(),
		TopTier:   st.Tier == core.TierCelebration,
		Remaining: st.Remaining,
		NextGoal:  st.NextGoal,
		Percent:   st.ProgressPercent(),
	}
}

// gridRowView is one editable row of the manage grid.
type gridRowView struct {
	Index    int
	Date     string
	Child    string
	Activity string
	Note     string
	Delete   bool
}

// blankGridRows is how many empty rows the grid offers for insertion.
const blankGridRows = 3

func gridFromTable(t core.Table) []gridRowView {
	rows := make([]gridRowView, 0, len(t)+blankGridRows)
	for i, e := range t {
		rows = append(rows, gridRowView{
			Index:    i,
			Date:     e.Date.String(),
			Child:    string(e.Child),
			Activity: e.Activity,
			Note:     e.Note,
		})
	}
	return withBlankRows(rows)
}

// gridFromSubmission re-renders what the user sent so a rejected save
// keeps their edits on screen.
func gridFromSubmission(submitted []services.GridRow) []gridRowView {
	rows := make([]gridRowView, 0, len(submitted)+blankGridRows)
	for _, r := range submitted {
		if r.Date == "" && r.Child == "" && r.Activity == "" && r.Note == "" {
			continue
		}
		rows = append(rows, gridRowView{
			Index:    len(rows),
			Date:     r.Date,
			Child:    r.Child,
			Activity: r.Activity,
			Note:     r.Note,
			Delete:   r.Delete,
		})
	}
	return withBlankRows(rows)
}

func withBlankRows(rows []gridRowView) []gridRowView {
	for i := 0; i < blankGridRows; i++ {
		rows = append(rows, gridRowView{Index: len(rows)})
	}
	return rows
}

// userMessage turns a rejection into the text shown next to the form.
func userMessage(err error) string {
	if errors.Is(err, core.ErrBeforeChallengeStart) {
		return "That date is before the challenge started. Nothing was saved."
	}
	return "Not saved: " + strings.TrimPrefix(err.Error(), services.ErrInvalidEntry.Error()+": ")
}

func isInvalid(err error) bool {
	return errors.Is(err, services.ErrInvalidEntry)
}
