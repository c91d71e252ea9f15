// Package study ties scheduling, due-set selection and ordering to a
// question repository.
package study

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/conorfennell/flashback/internal/domain"
	"github.com/conorfennell/flashback/internal/due"
	"github.com/conorfennell/flashback/internal/ordering"
	"github.com/conorfennell/flashback/internal/sm2"
)

// Repository is the persistence contract the study service depends on.
// Lookups of unknown ids fail with domain.ErrNotFound.
type Repository interface {
	SaveQuestion(ctx context.Context, q domain.Question) (int64, error)
	// SaveSchedule writes only the scheduling state of q. Its content,
	// category and order are left as stored.
	SaveSchedule(ctx context.Context, q domain.Question) error
	// AppendQuestion inserts q after the last question of its category and
	// returns it with ID and Order assigned.
	AppendQuestion(ctx context.Context, q domain.Question) (domain.Question, error)
	ReadQuestion(ctx context.Context, id int64) (domain.Question, error)
	ListQuestions(ctx context.Context) ([]domain.Question, error)
	QuestionsForCategory(ctx context.Context, categoryID int64) ([]domain.Question, error)
	MoveQuestion(ctx context.Context, q domain.Question, newIndex int) error
	DeleteQuestion(ctx context.Context, id int64) error
	SaveOrder(ctx context.Context, qs []domain.Question) error
	ReadCategory(ctx context.Context, id int64) (domain.Category, error)
}

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	Params   *sm2.Params
	Location *time.Location
	Clock    func() time.Time
	Logger   *slog.Logger
}

// Service runs reviews and reorder sessions against a Repository.
type Service struct {
	repo     Repository
	params   *sm2.Params
	location *time.Location
	clock    func() time.Time
	logger   *slog.Logger
}

// NewService creates a Service over repo.
func NewService(repo Repository, opts Options) (*Service, error) {
	s := &Service{
		repo:     repo,
		params:   opts.Params,
		location: opts.Location,
		clock:    opts.Clock,
		logger:   opts.Logger,
	}
	if s.params == nil {
		s.params = sm2.DefaultParams()
	}
	if err := s.params.Validate(); err != nil {
		return nil, err
	}
	if s.location == nil {
		s.location = time.Local
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

func (s *Service) today() due.Day {
	return due.Today(s.clock(), s.location)
}

// Review grades the question with the given id and persists the result.
func (s *Service) Review(ctx context.Context, id int64, grade domain.Grade) (domain.Question, sm2.Review, error) {
	if !grade.IsValid() {
		return domain.Question{}, sm2.Review{}, fmt.Errorf("%w: %d", domain.ErrInvalidGrade, int(grade))
	}
	q, err := s.repo.ReadQuestion(ctx, id)
	if err != nil {
		return domain.Question{}, sm2.Review{}, err
	}

	next, review, err := s.params.Schedule(q, grade, s.clock())
	if err != nil {
		return q, review, err
	}
	if err := s.repo.SaveSchedule(ctx, next); err != nil {
		return q, review, err
	}

	s.logger.Info("question reviewed",
		"id", id,
		"grade", grade,
		"interval", review.IntervalAfter,
		"easiness", review.EasinessAfter,
		"due", review.DueAt,
		"reset", review.Reset,
	)
	return next, review, nil
}

// DueToday returns every question due today, regardless of category state.
func (s *Service) DueToday(ctx context.Context) ([]domain.Question, error) {
	qs, err := s.repo.ListQuestions(ctx)
	if err != nil {
		return nil, err
	}
	return due.DueToday(qs, s.today()), nil
}

// ActiveDueToday returns the questions due today in active categories.
func (s *Service) ActiveDueToday(ctx context.Context) ([]domain.Question, error) {
	qs, err := s.repo.ListQuestions(ctx)
	if err != nil {
		return nil, err
	}
	return due.ActiveDueToday(qs, s.today()), nil
}

// NextDue returns the most overdue question in an active category. The
// boolean is false when nothing is due.
func (s *Service) NextDue(ctx context.Context) (domain.Question, bool, error) {
	qs, err := s.ActiveDueToday(ctx)
	if err != nil {
		return domain.Question{}, false, err
	}
	if len(qs) == 0 {
		return domain.Question{}, false, nil
	}
	sort.SliceStable(qs, func(i, j int) bool {
		return qs[i].NextDueOn.Before(qs[j].NextDueOn)
	})
	return qs[0], true, nil
}

// Forecast returns the furthest due date across all questions, or now when
// there are none.
func (s *Service) Forecast(ctx context.Context) (time.Time, error) {
	qs, err := s.repo.ListQuestions(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return due.FurthestDueDate(qs, s.clock()), nil
}

// Question returns the question with the given id.
func (s *Service) Question(ctx context.Context, id int64) (domain.Question, error) {
	return s.repo.ReadQuestion(ctx, id)
}

// CategoryQuestions returns a category and its questions in order.
func (s *Service) CategoryQuestions(ctx context.Context, categoryID int64) (domain.Category, []domain.Question, error) {
	c, err := s.repo.ReadCategory(ctx, categoryID)
	if err != nil {
		return c, nil, err
	}
	qs, err := s.repo.QuestionsForCategory(ctx, categoryID)
	if err != nil {
		return c, nil, err
	}
	return c, ordering.NewSequence(qs).Questions(), nil
}

// Add creates a new question at the end of its category.
func (s *Service) Add(ctx context.Context, categoryID int64, title, answer string) (domain.Question, error) {
	return s.add(ctx, domain.NewQuestion(categoryID, title, answer))
}

// AddImported is Add for a question carrying a content hash.
func (s *Service) AddImported(ctx context.Context, categoryID int64, title, answer, hash string) (domain.Question, error) {
	q := domain.NewQuestion(categoryID, title, answer)
	q.Hash = hash
	return s.add(ctx, q)
}

func (s *Service) add(ctx context.Context, q domain.Question) (domain.Question, error) {
	c, err := s.repo.ReadCategory(ctx, q.CategoryID)
	if err != nil {
		return q, err
	}
	q, err = s.repo.AppendQuestion(ctx, q)
	if err != nil {
		return q, err
	}
	q.Category = c
	return q, nil
}

// Move persists a single reorder of the question with the given id.
func (s *Service) Move(ctx context.Context, id int64, newIndex int) error {
	q, err := s.repo.ReadQuestion(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.MoveQuestion(ctx, q, newIndex); err != nil {
		return err
	}
	s.logger.Info("question moved", "id", id, "category", q.CategoryID, "index", newIndex)
	return nil
}

// Delete removes the question with the given id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.DeleteQuestion(ctx, id)
}

// BeginEdit loads a category's questions into a reorder session.
func (s *Service) BeginEdit(ctx context.Context, categoryID int64) (*EditSession, error) {
	c, err := s.repo.ReadCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	qs, err := s.repo.QuestionsForCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	return &EditSession{
		repo:     s.repo,
		category: c,
		seq:      ordering.NewSequence(qs),
		logger:   s.logger.With("category", c.Name),
	}, nil
}
