package missions

import "time"

// DateLayout is the calendar-date format of Stats.LastLoginDate.
const DateLayout = "2006-01-02"

// streakGraceDays is the largest calendar-day gap that still continues a
// streak; a gap of two forgives one missed day.
const streakGraceDays = 2

// LoginUpdate is the outcome of registering a login.
type LoginUpdate struct {
	Streak        int
	DaysTotal     int
	LastLoginDate string
	// NewDay is false when the login falls on the same calendar day as the
	// previous one, in which case nothing changed.
	NewDay bool
}

// RegisterLogin applies the login-streak rule for a login at now, using
// calendar days in now's location.
//
//   - same calendar day: unchanged
//   - one or two calendar days later: streak + 1
//   - more than two: streak restarts at 1
//
// The cumulative day count increments once per new calendar day regardless
// of streak continuity. An unparseable previous date starts a new streak.
func RegisterLogin(streak, daysTotal int, lastLoginDate string, now time.Time) LoginUpdate {
	today := now.Format(DateLayout)
	last, err := time.ParseInLocation(DateLayout, lastLoginDate, now.Location())
	if err != nil || lastLoginDate == "" {
		return LoginUpdate{Streak: 1, DaysTotal: daysTotal + 1, LastLoginDate: today, NewDay: true}
	}

	gap := calendarDays(last, now)
	if gap <= 0 {
		return LoginUpdate{Streak: streak, DaysTotal: daysTotal, LastLoginDate: lastLoginDate}
	}

	next := 1
	if gap <= streakGraceDays {
		next = streak + 1
	}
	return LoginUpdate{Streak: next, DaysTotal: daysTotal + 1, LastLoginDate: today, NewDay: true}
}

func calendarDays(from, to time.Time) int {
	y1, m1, d1 := from.Date()
	y2, m2, d2 := to.Date()
	a := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	b := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
