package domain

import "strings"

// MaxTopK caps how many results a single query may request.
const MaxTopK = 100

// ValidateQuery checks a question/top_k pair at the pipeline boundary.
func ValidateQuery(question string, topK int) error {
	if strings.TrimSpace(question) == "" {
		return ErrEmptyQuery
	}
	if topK <= 0 || topK > MaxTopK {
		return ErrInvalidTopK
	}
	return nil
}
