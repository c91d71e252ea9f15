package domain

import "time"

// DefaultEasiness is the easiness factor a question starts with.
const DefaultEasiness = 2.5

// Category groups questions. Only Active affects scheduling.
type Category struct {
	ID     int64
	Name   string
	Active bool
}

// Question is a single flashcard together with its scheduling state.
//
// A zero LastAskedOn or NextDueOn means "never"; a question that has never
// been scheduled is always due.
type Question struct {
	ID         int64
	CategoryID int64
	Category   Category
	Title      string
	Answer     string
	// Hash is the content hash of an imported question. Empty for questions
	// authored by hand.
	Hash string

	// Order positions the question within its category. It has no effect on
	// scheduling.
	Order float64

	LastAskedOn      time.Time
	NextDueOn        time.Time
	PreviousInterval int // days
	Interval         int // days
	AskCount         int
	// Streak counts consecutive passing reviews since the last reset.
	Streak          int
	ResponseQuality Grade
	EasinessFactor  float64
}

// NewQuestion returns a question in category categoryID with its scheduling
// fields set to their "never reviewed" defaults.
func NewQuestion(categoryID int64, title, answer string) Question {
	q := Question{
		CategoryID: categoryID,
		Title:      title,
		Answer:     answer,
	}
	q.Reset()
	return q
}

// Reset clears the scheduling state so the question is treated as new.
func (q *Question) Reset() {
	q.LastAskedOn = time.Time{}
	q.NextDueOn = time.Time{}
	q.PreviousInterval = 0
	q.Interval = 0
	q.AskCount = 0
	q.Streak = 0
	q.Order = 0
	q.ResponseQuality = 0
	q.EasinessFactor = DefaultEasiness
}

// NeverAsked reports whether the question has never been reviewed.
func (q Question) NeverAsked() bool {
	return q.LastAskedOn.IsZero()
}

func (q Question) String() string {
	return q.Title
}
