// Package ordering keeps the manual presentation order of the questions in
// one category.
//
// Moves and deletes only rearrange an in-memory sequence; Order values are
// written back in a single Commit, typically once per editing session.
package ordering

import (
	"fmt"
	"sort"

	"github.com/conorfennell/flashback/internal/domain"
)

// Sequence is the order-sorted list of questions being edited. It is not
// safe for concurrent use.
type Sequence struct {
	questions []domain.Question
}

// NewSequence copies qs and sorts the copy by Order ascending. Questions with
// equal Order keep their relative input order.
func NewSequence(qs []domain.Question) *Sequence {
	questions := make([]domain.Question, len(qs))
	copy(questions, qs)
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].Order < questions[j].Order
	})
	return &Sequence{questions: questions}
}

// Len returns the number of questions in the sequence.
func (s *Sequence) Len() int {
	return len(s.questions)
}

// Questions returns a copy of the sequence in its current order.
func (s *Sequence) Questions() []domain.Question {
	out := make([]domain.Question, len(s.questions))
	copy(out, s.questions)
	return out
}

// Index returns the position of the question with the given id, or -1.
func (s *Sequence) Index(id int64) int {
	for i, q := range s.questions {
		if q.ID == id {
			return i
		}
	}
	return -1
}

// At returns the question at position i.
func (s *Sequence) At(i int) (domain.Question, error) {
	if err := s.checkIndex(i); err != nil {
		return domain.Question{}, err
	}
	return s.questions[i], nil
}

// Move removes the question at src and reinserts it at dst.
func (s *Sequence) Move(src, dst int) error {
	if err := s.checkIndex(src); err != nil {
		return err
	}
	if err := s.checkIndex(dst); err != nil {
		return err
	}
	if src == dst {
		return nil
	}

	q := s.questions[src]
	s.questions = append(s.questions[:src], s.questions[src+1:]...)
	s.questions = append(s.questions[:dst], append([]domain.Question{q}, s.questions[dst:]...)...)
	return nil
}

// DeleteAt removes and returns the question at i.
func (s *Sequence) DeleteAt(i int) (domain.Question, error) {
	if err := s.checkIndex(i); err != nil {
		return domain.Question{}, err
	}
	q := s.questions[i]
	s.questions = append(s.questions[:i], s.questions[i+1:]...)
	return q, nil
}

// Delete removes the question with the given id.
func (s *Sequence) Delete(id int64) error {
	i := s.Index(id)
	if i < 0 {
		return fmt.Errorf("%w: question %d not in sequence", domain.ErrNotFound, id)
	}
	_, err := s.DeleteAt(i)
	return err
}

// Changed returns the questions whose stored Order differs from their
// position. Commit would renumber exactly these.
func (s *Sequence) Changed() []domain.Question {
	var out []domain.Question
	for i, q := range s.questions {
		if q.Order != float64(i) {
			q.Order = float64(i)
			out = append(out, q)
		}
	}
	return out
}

// Commit sets every question's Order to its 0-based position and returns
// the renumbered sequence.
func (s *Sequence) Commit() []domain.Question {
	for i := range s.questions {
		s.questions[i].Order = float64(i)
	}
	return s.Questions()
}

func (s *Sequence) checkIndex(i int) error {
	if i < 0 || i >= len(s.questions) {
		return fmt.Errorf("%w: %d not in [0, %d)", domain.ErrIndexOutOfRange, i, len(s.questions))
	}
	return nil
}
