package domain

import (
	"encoding"
	"fmt"
	"strconv"
)

// Grade is the 0-5 self-assessment of recall given at review time.
type Grade int

const (
	Blackout         Grade = iota // Complete blackout.
	Incorrect                     // Incorrect; the answer was remembered on disclosure.
	IncorrectEasy                 // Incorrect; the answer seemed easy once shown.
	CorrectDifficult              // Correct with serious difficulty.
	CorrectHesitant               // Correct after a hesitation.
	Perfect                       // Perfect response.
)

// PassingGrade is the lowest grade that counts as a successful recall.
const PassingGrade = CorrectDifficult

var gradeNames = [...]string{
	Blackout:         "blackout",
	Incorrect:        "incorrect",
	IncorrectEasy:    "incorrect-easy",
	CorrectDifficult: "correct-difficult",
	CorrectHesitant:  "correct-hesitant",
	Perfect:          "perfect",
}

var (
	_ fmt.Stringer             = Grade(0)
	_ encoding.TextMarshaler   = Grade(0)
	_ encoding.TextUnmarshaler = (*Grade)(nil)
)

// IsValid reports whether g is within 0..5.
func (g Grade) IsValid() bool {
	return g >= Blackout && g <= Perfect
}

// Passed reports whether g counts as a successful recall.
func (g Grade) Passed() bool {
	return g >= PassingGrade
}

func (g Grade) String() string {
	if g.IsValid() {
		return gradeNames[g]
	}
	return fmt.Sprintf("Grade(%d)", int(g))
}

// ParseGrade accepts either the numeric form ("4") or the name ("correct-hesitant").
func ParseGrade(s string) (Grade, error) {
	if n, err := strconv.Atoi(s); err == nil {
		g := Grade(n)
		if !g.IsValid() {
			return 0, fmt.Errorf("%w: %d", ErrInvalidGrade, n)
		}
		return g, nil
	}
	for g, name := range gradeNames {
		if name == s {
			return Grade(g), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidGrade, s)
}

// MarshalText implements encoding.TextMarshaler.
func (g Grade) MarshalText() ([]byte, error) {
	if !g.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGrade, int(g))
	}
	return []byte(gradeNames[g]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Grade) UnmarshalText(text []byte) error {
	v, err := ParseGrade(string(text))
	if err != nil {
		return err
	}
	*g = v
	return nil
}
