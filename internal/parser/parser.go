// Package parser reads flashcards from markdown decks.
//
// A deck is a sequence of "Q:" and "A:" blocks. A "---" line ends the
// current card. A markdown heading outside a card sets the category of the
// cards that follow it; inside a card it is part of the text, as is anything
// in a fenced code block.
package parser

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/conorfennell/flashback/internal/domain"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	headingPrefix  = "#"
	separator      = "---"
)

var fences = []string{"```", "~~~"}

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
)

// ParseFile reads a deck from the given path. Cards before the first heading
// are filed under the file's base name.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Parse(file, base)
}

// Parse reads from an io.Reader and extracts all cards, filing cards that
// precede any heading under defaultCategory.
func Parse(r io.Reader, defaultCategory string) ([]domain.Card, error) {
	scanner := bufio.NewScanner(r)
	var cards []domain.Card
	var currentBlock []string
	category := defaultCategory
	currentCard := domain.Card{Category: category}
	currentState := seeking
	inFence := false

	flushBlock := func() {
		if len(currentBlock) == 0 {
			return
		}
		content := strings.TrimRight(strings.Join(currentBlock, "\n"), "\n")
		switch currentState {
		case readingQuestion:
			currentCard.Question = content
		case readingAnswer:
			currentCard.Answer = content
		}
		currentBlock = nil
	}

	finishCard := func() {
		flushBlock()
		if currentCard.Question != "" {
			cards = append(cards, currentCard)
		}
		currentCard = domain.Card{Category: category}
		currentState = seeking
		inFence = false
	}

	for scanner.Scan() {
		line := scanner.Text()

		if inFence {
			currentBlock = append(currentBlock, line)
			inFence = !isFence(line)
			continue
		}

		switch {
		case line == separator:
			finishCard()

		case currentState == seeking && strings.HasPrefix(line, headingPrefix):
			category = strings.TrimSpace(strings.TrimLeft(line, headingPrefix))
			if category == "" {
				category = defaultCategory
			}
			currentCard.Category = category

		case strings.HasPrefix(line, questionPrefix):
			if currentState != seeking { // A new question always starts a new card
				finishCard()
			}
			currentState = readingQuestion
			currentBlock = append(currentBlock, trimPrefix(line, questionPrefix))
			inFence = isFence(trimPrefix(line, questionPrefix))

		case strings.HasPrefix(line, answerPrefix):
			flushBlock()
			currentState = readingAnswer
			currentBlock = append(currentBlock, trimPrefix(line, answerPrefix))
			inFence = isFence(trimPrefix(line, answerPrefix))

		case currentState != seeking:
			currentBlock = append(currentBlock, line)
			inFence = isFence(line)
		}
	}

	finishCard() // Finish the very last card in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cards, nil
}

func isFence(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, f := range fences {
		if strings.HasPrefix(trimmed, f) {
			return true
		}
	}
	return false
}

func trimPrefix(line, prefix string) string {
	return strings.TrimPrefix(line[len(prefix):], " ")
}
