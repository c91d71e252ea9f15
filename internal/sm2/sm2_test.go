package sm2

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/conorfennell/flashback/internal/domain"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func mustSchedule(t *testing.T, p *Params, q domain.Question, g domain.Grade, now time.Time) (domain.Question, Review) {
	t.Helper()
	next, review, err := p.Schedule(q, g, now)
	if err != nil {
		t.Fatalf("Schedule(%v): %v", g, err)
	}
	return next, review
}

func TestScheduleFirstAndSecondSuccess(t *testing.T) {
	p := DefaultParams()
	for _, g := range []domain.Grade{domain.CorrectDifficult, domain.CorrectHesitant, domain.Perfect} {
		t.Run(g.String(), func(t *testing.T) {
			q := domain.NewQuestion(1, "Q", "A")

			first, _ := mustSchedule(t, p, q, g, t0)
			if first.Interval != 1 {
				t.Errorf("Expected first interval to be 1, but got %d", first.Interval)
			}
			second, _ := mustSchedule(t, p, first, g, t0.AddDate(0, 0, 1))
			if second.Interval != 6 {
				t.Errorf("Expected second interval to be 6, but got %d", second.Interval)
			}
			if second.AskCount != 2 || second.Streak != 2 {
				t.Errorf("Expected ask count and streak of 2, but got %d and %d", second.AskCount, second.Streak)
			}
		})
	}
}

func TestScheduleFailureResets(t *testing.T) {
	p := DefaultParams()
	for _, g := range []domain.Grade{domain.Blackout, domain.Incorrect, domain.IncorrectEasy} {
		t.Run(g.String(), func(t *testing.T) {
			q := domain.NewQuestion(1, "Q", "A")
			q.Interval = 40
			q.PreviousInterval = 40
			q.Streak = 5
			q.AskCount = 5

			next, review := mustSchedule(t, p, q, g, t0)
			if next.Interval != 1 {
				t.Errorf("Expected interval to reset to 1, but got %d", next.Interval)
			}
			if next.PreviousInterval != 40 {
				t.Errorf("Expected previous interval to keep 40, but got %d", next.PreviousInterval)
			}
			if next.Streak != 0 {
				t.Errorf("Expected streak to reset, but got %d", next.Streak)
			}
			if next.AskCount != 6 {
				t.Errorf("Expected failed review to be counted, but got %d", next.AskCount)
			}
			if !review.Reset {
				t.Error("Expected the review to be marked as a reset")
			}

			// The next pass after a reset starts again from the first interval.
			after, _ := mustSchedule(t, p, next, domain.Perfect, t0.AddDate(0, 0, 1))
			if after.Interval != 1 {
				t.Errorf("Expected first interval after reset to be 1, but got %d", after.Interval)
			}
		})
	}
}

func TestScheduleFailureNotCounted(t *testing.T) {
	p := DefaultParams()
	p.CountFailedReviews = false
	q := domain.NewQuestion(1, "Q", "A")
	next, _ := mustSchedule(t, p, q, domain.Blackout, t0)
	if next.AskCount != 0 {
		t.Errorf("Expected ask count to stay 0, but got %d", next.AskCount)
	}
}

func TestScheduleMultipliesPreviousInterval(t *testing.T) {
	p := DefaultParams()
	q := domain.NewQuestion(1, "A", "a")
	q.PreviousInterval = 6
	q.Interval = 6
	q.Streak = 2
	q.EasinessFactor = 2.5

	next, review := mustSchedule(t, p, q, domain.CorrectHesitant, t0)
	if next.Interval != 15 {
		t.Errorf("Expected interval of 15, but got %d", next.Interval)
	}
	if want := t0.AddDate(0, 0, 15); !next.NextDueOn.Equal(want) {
		t.Errorf("Expected due %v, but got %v", want, next.NextDueOn)
	}
	if next.PreviousInterval != 15 {
		t.Errorf("Expected previous interval to carry 15, but got %d", next.PreviousInterval)
	}
	if !next.LastAskedOn.Equal(t0) || review.IntervalBefore != 6 || review.IntervalAfter != 15 {
		t.Errorf("Unexpected review %+v", review)
	}
}

func TestScheduleRoundsHalfAwayFromZero(t *testing.T) {
	p := DefaultParams()
	q := domain.NewQuestion(1, "Q", "A")
	q.PreviousInterval = 5
	q.Streak = 3
	q.EasinessFactor = 2.4 // perfect grade raises it to 2.5, 5*2.5 = 12.5

	next, _ := mustSchedule(t, p, q, domain.Perfect, t0)
	if next.Interval != 13 {
		t.Errorf("Expected interval of 13, but got %d", next.Interval)
	}
}

func TestScheduleZeroPreviousIntervalShortCircuits(t *testing.T) {
	p := DefaultParams()
	q := domain.NewQuestion(1, "Q", "A")
	q.Streak = 4
	q.PreviousInterval = 0

	next, _ := mustSchedule(t, p, q, domain.Perfect, t0)
	if next.Interval != 1 {
		t.Errorf("Expected interval of 1, but got %d", next.Interval)
	}
}

func TestScheduleEasinessMonotonicInGrade(t *testing.T) {
	p := DefaultParams()
	for _, ef := range []float64{1.3, 1.7, 2.5, 3.1} {
		q := domain.NewQuestion(1, "Q", "A")
		q.EasinessFactor = ef
		prev := math.Inf(-1)
		for g := domain.Blackout; g <= domain.Perfect; g++ {
			next, _ := mustSchedule(t, p, q, g, t0)
			if next.EasinessFactor < prev {
				t.Errorf("EF %.1f: grade %v lowered easiness below grade %v", ef, g, g-1)
			}
			prev = next.EasinessFactor
		}
	}
}

func TestScheduleEasinessFloor(t *testing.T) {
	p := DefaultParams()
	q := domain.NewQuestion(1, "Q", "A")
	for i := 0; i < 20; i++ {
		q, _ = mustSchedule(t, p, q, domain.Blackout, t0)
		if q.EasinessFactor < 1.3 {
			t.Fatalf("Expected easiness never below 1.3, but got %.3f", q.EasinessFactor)
		}
	}
	if q.EasinessFactor != 1.3 {
		t.Errorf("Expected easiness to settle at the floor, but got %.3f", q.EasinessFactor)
	}
}

func TestScheduleInvalidGrade(t *testing.T) {
	p := DefaultParams()
	q := domain.NewQuestion(1, "Q", "A")
	for _, g := range []domain.Grade{-1, 6, 42} {
		got, _, err := p.Schedule(q, g, t0)
		if !errors.Is(err, domain.ErrInvalidGrade) {
			t.Errorf("Grade %d: expected ErrInvalidGrade, but got %v", int(g), err)
		}
		if got != q {
			t.Errorf("Grade %d: expected question to be returned unchanged", int(g))
		}
	}
}

func TestScheduleLegacyZeroEasiness(t *testing.T) {
	p := DefaultParams()
	q := domain.Question{ID: 9}
	next, review := mustSchedule(t, p, q, domain.CorrectHesitant, t0)
	if review.EasinessBefore != 2.5 || math.Abs(next.EasinessFactor-2.5) > 1e-9 {
		t.Errorf("Expected missing easiness to start from 2.5, but got %+v", review)
	}
}

func TestParamsValidate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("Expected default params to be valid, but got %v", err)
	}
	bad := DefaultParams()
	bad.SecondInterval = 0
	if err := bad.Validate(); err == nil {
		t.Error("Expected second interval below first interval to be rejected")
	}
	bad = DefaultParams()
	bad.InitialEasiness = 1.0
	if err := bad.Validate(); err == nil {
		t.Error("Expected initial easiness below the floor to be rejected")
	}
}
