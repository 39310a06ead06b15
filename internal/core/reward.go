package core

import (
	"fmt"
	"time"
)

// Tier is a named reward bracket.
type Tier string

const (
	TierNone        Tier = "none"
	TierMinimum     Tier = "minimum"
	TierHigh        Tier = "high"
	TierCelebration Tier = "celebration"
)

// Session thresholds for each tier. Brackets do not overlap; the highest
// matching one wins.
const (
	MinimumSessions     = 3
	HighSessions        = 4
	CelebrationSessions = 5
)

// Reward amounts in whole dollars.
const (
	RewardNone        = 0
	RewardMinimum     = 100
	RewardHigh        = 200
	RewardCelebration = 500
)

// WeeklyStatus is a child's standing for one week.
type WeeklyStatus struct {
	Child     Child
	WeekStart Date
	Count     int
	Tier      Tier
	Reward    int
	// Remaining is the number of sessions still needed to reach the minimum
	// tier. Zero once the minimum is reached.
	Remaining int
	// NextGoal describes the next bracket, empty at the top tier.
	NextGoal string
}

// WeekOf returns the Monday on or before d.
func WeekOf(d Date) Date {
	// time.Weekday has Sunday=0; shift so Monday=0.
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// TierFor maps a session count to its tier, reward and remaining sessions.
func TierFor(count int) (tier Tier, reward int, remaining int) {
	switch {
	case count >= CelebrationSessions:
		return TierCelebration, RewardCelebration, 0
	case count == HighSessions:
		return TierHigh, RewardHigh, 0
	case count == MinimumSessions:
		return TierMinimum, RewardMinimum, 0
	default:
		if count < 0 {
			count = 0
		}
		return TierNone, RewardNone, MinimumSessions - count
	}
}

// NextGoal is the message shown under the counter for a given count.
func NextGoal(count int) string {
	switch {
	case count >= CelebrationSessions:
		return ""
	case count == HighSessions:
		return fmt.Sprintf("1 more session reaches $%d", RewardCelebration)
	case count == MinimumSessions:
		return fmt.Sprintf("1 more session reaches $%d", RewardHigh)
	default:
		_, _, remaining := TierFor(count)
		if remaining == 1 {
			return fmt.Sprintf("1 more session reaches $%d", RewardMinimum)
		}
		return fmt.Sprintf("%d more sessions reach $%d", remaining, RewardMinimum)
	}
}

// ComputeWeeklyStatus counts child's entries in the week containing ref.
//
// Matching is by stored WeekStart equality, not by a date range, so an
// entry whose WeekStart disagrees with its Date is counted in the week it
// claims.
func ComputeWeeklyStatus(t Table, child Child, ref Date) WeeklyStatus {
	week := WeekOf(ref)
	count := 0
	for _, e := range t {
		if e.Child == child && e.WeekStart.Equal(week) {
			count++
		}
	}
	tier, reward, remaining := TierFor(count)
	return WeeklyStatus{
		Child:     child,
		WeekStart: week,
		Count:     count,
		Tier:      tier,
		Reward:    reward,
		Remaining: remaining,
		NextGoal:  NextGoal(count),
	}
}

// Progress is the fraction of the top tier reached, capped at 1.
func (s WeeklyStatus) Progress() float64 {
	p := float64(s.Count) / float64(CelebrationSessions)
	if p > 1 {
		return 1
	}
	return p
}

// ProgressPercent is Progress as an integer percentage, for templates.
func (s WeeklyStatus) ProgressPercent() int {
	return int(s.Progress()*100 + 0.5)
}

// Achieved reports whether any reward has been earned this week.
func (s WeeklyStatus) Achieved() bool {
	return s.Tier != TierNone
}

// WeeklyBoard computes the status of every child in the roster.
func WeeklyBoard(t Table, roster Roster, ref Date) []WeeklyStatus {
	out := make([]WeeklyStatus, 0, len(roster))
	for _, c := range roster {
		out = append(out, ComputeWeeklyStatus(t, c, ref))
	}
	return out
}

// Today returns the calendar date of now in loc.
func Today(now time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.Local
	}
	return DateOf(now.In(loc))
}
