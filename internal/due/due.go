// Package due selects the questions that are eligible for review.
package due

import (
	"time"

	"github.com/conorfennell/flashback/internal/domain"
)

// Day pins "today" to a reference instant and the calendar used to find the
// day boundary.
type Day struct {
	Now      time.Time
	Location *time.Location // nil uses Now's location
}

// Today returns the Day for now in loc.
func Today(now time.Time, loc *time.Location) Day {
	return Day{Now: now, Location: loc}
}

// Tomorrow returns the start of the calendar day after Now.
func (d Day) Tomorrow() time.Time {
	loc := d.Location
	if loc == nil {
		loc = d.Now.Location()
	}
	n := d.Now.In(loc)
	return time.Date(n.Year(), n.Month(), n.Day()+1, 0, 0, 0, 0, loc)
}

// IsDue reports whether q is due on day d. A question that has never been
// scheduled is always due.
func IsDue(q domain.Question, d Day) bool {
	return dueBefore(q, d.Tomorrow())
}

func dueBefore(q domain.Question, boundary time.Time) bool {
	return q.NextDueOn.IsZero() || q.NextDueOn.Before(boundary)
}

// DueToday returns the questions due on or before day d. The order of the
// result is unspecified.
func DueToday(qs []domain.Question, d Day) []domain.Question {
	return filter(qs, d, func(domain.Question) bool { return true })
}

// ActiveDueToday is DueToday restricted to questions whose category is active.
func ActiveDueToday(qs []domain.Question, d Day) []domain.Question {
	return filter(qs, d, func(q domain.Question) bool { return q.Category.Active })
}

func filter(qs []domain.Question, d Day, keep func(domain.Question) bool) []domain.Question {
	tomorrow := d.Tomorrow()
	var out []domain.Question
	for _, q := range qs {
		if dueBefore(q, tomorrow) && keep(q) {
			out = append(out, q)
		}
	}
	return out
}

// FurthestDueDate returns the latest NextDueOn in qs, or now when qs is empty.
func FurthestDueDate(qs []domain.Question, now time.Time) time.Time {
	if len(qs) == 0 {
		return now
	}
	furthest := qs[0].NextDueOn
	for _, q := range qs[1:] {
		if q.NextDueOn.After(furthest) {
			furthest = q.NextDueOn
		}
	}
	return furthest
}
