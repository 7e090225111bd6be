package common

import (
	"errors"
	"strings"
)

var (
	ErrDocumentEmpty       = errors.New("document has no pages")
	ErrNoTransactionsFound = errors.New("no transactions found")
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrSourceRead          = errors.New("source read failure")
)

const ExcerptLength = 100

// NoTransactionsError carries the start of the document text so a failed
// upload can be diagnosed without the file.
type NoTransactionsError struct {
	Excerpt string
}

func (e *NoTransactionsError) Error() string {
	if e.Excerpt == "" {
		return ErrNoTransactionsFound.Error() + ": no text extracted"
	}
	return ErrNoTransactionsFound.Error() + ". Text content: " + e.Excerpt + "..."
}

func (e *NoTransactionsError) Unwrap() error {
	return ErrNoTransactionsFound
}

// Excerpt flattens text onto one line and cuts it to at most n runes.
func Excerpt(text string, n int) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if len(runes) > n {
		return string(runes[:n])
	}
	return flat
}
