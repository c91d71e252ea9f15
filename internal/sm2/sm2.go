// Package sm2 implements SM-2 style review scheduling.
//
// Scheduling is a pure function of a question's current state, a grade and
// the review instant; it performs no I/O and keeps no state between calls.
package sm2

import (
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/flashback/internal/domain"
	"github.com/go-playground/validator/v10"
)

// Params holds the tunables of the SM-2 scheduler.
type Params struct {
	EasinessFloor   float64 `koanf:"easiness_floor" validate:"gt=0"`
	InitialEasiness float64 `koanf:"initial_easiness" validate:"gtefield=EasinessFloor"`
	FirstInterval   int     `koanf:"first_interval" validate:"gte=1"`
	SecondInterval  int     `koanf:"second_interval" validate:"gtefield=FirstInterval"`
	// CountFailedReviews makes a failing grade increment AskCount too.
	CountFailedReviews bool `koanf:"count_failed_reviews"`
}

// DefaultParams returns the classic SM-2 constants.
func DefaultParams() *Params {
	return &Params{
		EasinessFloor:      1.3,
		InitialEasiness:    domain.DefaultEasiness,
		FirstInterval:      1,
		SecondInterval:     6,
		CountFailedReviews: true,
	}
}

var validate = validator.New()

// Validate reports whether the parameters are usable.
func (p *Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid scheduler parameters: %w", err)
	}
	return nil
}

// Review describes what a single Schedule call changed.
type Review struct {
	QuestionID     int64
	Grade          domain.Grade
	ReviewedAt     time.Time
	EasinessBefore float64
	EasinessAfter  float64
	IntervalBefore int
	IntervalAfter  int
	DueAt          time.Time
	// Reset is true when a failing grade sent the question back to the
	// first interval.
	Reset bool
}

// Schedule applies a graded review at now and returns the updated question.
// The input question is not modified. Grades outside 0..5 are rejected with
// domain.ErrInvalidGrade.
func (p *Params) Schedule(q domain.Question, grade domain.Grade, now time.Time) (domain.Question, Review, error) {
	if !grade.IsValid() {
		return q, Review{}, fmt.Errorf("%w: %d", domain.ErrInvalidGrade, int(grade))
	}

	ef := q.EasinessFactor
	if ef == 0 {
		ef = p.InitialEasiness
	}

	next := q
	next.EasinessFactor = p.nextEasiness(ef, grade)

	if grade.Passed() {
		next.Interval = p.nextInterval(q.Streak, q.PreviousInterval, next.EasinessFactor)
		next.PreviousInterval = next.Interval
		next.Streak = q.Streak + 1
		next.AskCount++
	} else {
		// PreviousInterval keeps the interval that was lost; it is not used
		// to derive the next one.
		next.Interval = p.FirstInterval
		next.PreviousInterval = q.Interval
		next.Streak = 0
		if p.CountFailedReviews {
			next.AskCount++
		}
	}

	next.ResponseQuality = grade
	next.LastAskedOn = now
	next.NextDueOn = now.AddDate(0, 0, next.Interval)

	return next, Review{
		QuestionID:     q.ID,
		Grade:          grade,
		ReviewedAt:     now,
		EasinessBefore: ef,
		EasinessAfter:  next.EasinessFactor,
		IntervalBefore: q.Interval,
		IntervalAfter:  next.Interval,
		DueAt:          next.NextDueOn,
		Reset:          !grade.Passed(),
	}, nil
}

// nextEasiness applies EF' = EF + (0.1 - (5-q)*(0.08 + (5-q)*0.02)),
// floored at EasinessFloor.
func (p *Params) nextEasiness(ef float64, grade domain.Grade) float64 {
	d := float64(domain.Perfect - grade)
	ef += 0.1 - d*(0.08+d*0.02)
	return math.Max(ef, p.EasinessFloor)
}

// nextInterval computes the interval after a passing grade. streak is the
// number of passing reviews before this one.
func (p *Params) nextInterval(streak, previous int, ef float64) int {
	switch {
	case streak <= 0:
		return p.FirstInterval
	case streak == 1:
		return p.SecondInterval
	case previous <= 0:
		// Never multiply from a zero interval.
		return p.FirstInterval
	}
	return int(math.Round(float64(previous) * ef))
}
