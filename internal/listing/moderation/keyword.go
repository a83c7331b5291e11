package moderation

import (
	"context"
	"strings"

	"dealerhub/internal/listing/models"
)

// KeywordChecker flags content containing any blocked term. Used when no
// external checker is configured.
type KeywordChecker struct {
	blocked []string
}

// NewKeywordChecker returns a checker for the given terms; no terms passes
// everything.
func NewKeywordChecker(terms ...string) *KeywordChecker {
	blocked := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			blocked = append(blocked, t)
		}
	}
	return &KeywordChecker{blocked: blocked}
}

func (k *KeywordChecker) Check(_ context.Context, req Request) (models.Verdict, error) {
	text := strings.ToLower(req.Title + "\n" + req.Description)
	for _, term := range k.blocked {
		if strings.Contains(text, term) {
			return models.Verdict{Violation: true, Reason: "contains blocked term: " + term}, nil
		}
	}
	return models.Verdict{}, nil
}
