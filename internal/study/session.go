package study

import (
	"context"
	"errors"
	"log/slog"

	"github.com/conorfennell/flashback/internal/domain"
	"github.com/conorfennell/flashback/internal/ordering"
)

// EditSession is a reorder session over one category. Moves are held in
// memory until Commit; deletes are persisted immediately.
//
// An EditSession is not safe for concurrent use.
type EditSession struct {
	repo     Repository
	category domain.Category
	seq      *ordering.Sequence
	logger   *slog.Logger
}

// Category returns the category being edited.
func (e *EditSession) Category() domain.Category {
	return e.category
}

// Questions returns the questions in their current intended order.
func (e *EditSession) Questions() []domain.Question {
	return e.seq.Questions()
}

// Move moves the question at src to dst.
func (e *EditSession) Move(src, dst int) error {
	q, err := e.seq.At(src)
	if err != nil {
		return err
	}
	if err := e.seq.Move(src, dst); err != nil {
		return err
	}
	e.logger.Debug("question moved", "question", q.Title, "from", src, "to", dst)
	return nil
}

// Delete deletes the question at index from the repository and the session.
// A question the repository no longer knows is treated as already deleted.
func (e *EditSession) Delete(ctx context.Context, index int) (domain.Question, error) {
	q, err := e.seq.At(index)
	if err != nil {
		return q, err
	}
	if err := e.repo.DeleteQuestion(ctx, q.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return q, err
	}
	if _, err := e.seq.DeleteAt(index); err != nil {
		return q, err
	}
	e.logger.Info("question deleted", "id", q.ID, "index", index)
	return q, nil
}

// Commit renumbers the category densely and persists the questions whose
// order changed.
func (e *EditSession) Commit(ctx context.Context) ([]domain.Question, error) {
	changed := e.seq.Changed()
	if len(changed) > 0 {
		if err := e.repo.SaveOrder(ctx, changed); err != nil {
			return nil, err
		}
	}
	e.logger.Info("order committed", "questions", e.seq.Len(), "changed", len(changed))
	return e.seq.Commit(), nil
}
