package due

import (
	"testing"
	"time"

	"github.com/conorfennell/flashback/internal/domain"
)

var t0 = time.Date(2025, 6, 15, 22, 30, 0, 0, time.UTC)

func question(id int64, dueOn time.Time, active bool) domain.Question {
	q := domain.NewQuestion(1, "Q", "A")
	q.ID = id
	q.NextDueOn = dueOn
	q.Category = domain.Category{ID: 1, Name: "c", Active: active}
	return q
}

func ids(qs []domain.Question) map[int64]bool {
	m := make(map[int64]bool, len(qs))
	for _, q := range qs {
		m[q.ID] = true
	}
	return m
}

func TestTomorrow(t *testing.T) {
	testCases := []struct {
		name string
		day  Day
		want time.Time
	}{
		{
			name: "UTC",
			day:  Today(t0, time.UTC),
			want: time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "nil location uses the instant's location",
			day:  Day{Now: t0},
			want: time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "east of UTC is already the next day",
			day:  Today(t0, time.FixedZone("UTC+3", 3*60*60)),
			want: time.Date(2025, 6, 17, 0, 0, 0, 0, time.FixedZone("UTC+3", 3*60*60)),
		},
		{
			name: "month rollover",
			day:  Today(time.Date(2025, 1, 31, 8, 0, 0, 0, time.UTC), time.UTC),
			want: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.day.Tomorrow(); !got.Equal(tc.want) {
				t.Errorf("Expected %v, but got %v", tc.want, got)
			}
		})
	}
}

func TestDueToday(t *testing.T) {
	day := Today(t0, time.UTC)
	qs := []domain.Question{
		question(1, time.Time{}, true),
		question(2, t0.Add(-48*time.Hour), true),
		question(3, time.Date(2025, 6, 15, 23, 59, 0, 0, time.UTC), true),
		// The boundary itself is not due yet.
		question(4, day.Tomorrow(), true),
		question(5, t0.AddDate(0, 0, 10), true),
	}

	got := ids(DueToday(qs, day))
	for id, want := range map[int64]bool{1: true, 2: true, 3: true, 4: false, 5: false} {
		if got[id] != want {
			t.Errorf("Question %d: expected due=%v, but got %v", id, want, got[id])
		}
	}
}

func TestDueTodayNeverReviewedAlwaysIncluded(t *testing.T) {
	q := question(1, time.Time{}, true)
	for _, now := range []time.Time{{}, t0, t0.AddDate(-50, 0, 0), t0.AddDate(50, 0, 0)} {
		if len(DueToday([]domain.Question{q}, Today(now, time.UTC))) != 1 {
			t.Errorf("Expected never reviewed question to be due at %v", now)
		}
	}
}

func TestActiveDueToday(t *testing.T) {
	day := Today(t0, time.UTC)
	qs := []domain.Question{
		question(1, t0, true),
		question(2, t0, false),
		question(3, t0.AddDate(0, 0, 3), true),
	}
	got := ActiveDueToday(qs, day)
	if len(got) != 1 || got[0].ID != 1 {
		t.Errorf("Expected only question 1, but got %v", ids(got))
	}
}

func TestFurthestDueDate(t *testing.T) {
	t.Run("empty collection returns now", func(t *testing.T) {
		if got := FurthestDueDate(nil, t0); !got.Equal(t0) {
			t.Errorf("Expected %v, but got %v", t0, got)
		}
	})

	t.Run("returns the maximum", func(t *testing.T) {
		furthest := t0.AddDate(0, 2, 0)
		qs := []domain.Question{
			question(1, t0, true),
			question(2, furthest, false),
			question(3, time.Time{}, true),
			question(4, t0.AddDate(0, 0, 3), true),
		}
		if got := FurthestDueDate(qs, t0); !got.Equal(furthest) {
			t.Errorf("Expected %v, but got %v", furthest, got)
		}
	})
}
