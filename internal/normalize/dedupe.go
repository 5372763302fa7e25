package normalize

import (
	"context"
	"strings"

	"hireflow-engine/internal/domain"
)

// ApplicationFinder is the slice of the datastore the duplicate check needs.
type ApplicationFinder interface {
	FindApplicationByEmail(ctx context.Context, email string) (*domain.NormalizedApplication, error)
}

// NormalizeEmail lowercases and trims a candidate address for comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CheckDuplicate short-circuits with DuplicateError when an application
// already exists for the candidate's email. Duplicates are skipped, never
// merged or overwritten.
func CheckDuplicate(ctx context.Context, finder ApplicationFinder, email string) error {
	norm := NormalizeEmail(email)
	if norm == "" {
		return nil
	}
	existing, err := finder.FindApplicationByEmail(ctx, norm)
	if err != nil {
		return err
	}
	if existing != nil {
		return &domain.DuplicateError{Email: norm}
	}
	return nil
}
