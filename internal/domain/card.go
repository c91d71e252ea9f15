package domain

// Card is a question parsed from a markdown deck, before it is stored.
type Card struct {
	Category string
	Question string
	Answer   string
	Hash     string
}
