// Package knol derives stable identities for imported cards.
package knol

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/conorfennell/flashback/internal/domain"
)

// Hash returns the hex SHA-256 identity of a card. Fields are folded with
// fold and written length-prefixed, so lines cannot move between a multiline
// question and its answer without changing the hash.
func Hash(card domain.Card) string {
	h := sha256.New()
	for _, field := range []string{card.Category, card.Question, card.Answer} {
		f := fold(field)
		fmt.Fprintf(h, "%d:%s", len(f), f)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// fold makes edits that do not change a card's meaning (case, CRLF line
// endings, surrounding blank space) hash the same.
func fold(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ToLower(strings.TrimSpace(s))
}
