// Package moderation adapts external content checkers to the listing
// lifecycle.
package moderation

import (
	"context"
	"errors"
	"fmt"

	"dealerhub/internal/listing/models"
	dErrors "dealerhub/pkg/domain-errors"
)

// Request is the content submitted for one moderation round.
type Request struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ImageRefs   []string `json:"image_refs"`
}

// RequestFor builds the checker request for a listing.
func RequestFor(l *models.Listing) Request {
	return Request{
		Title:       l.Content.Title,
		Description: l.Content.Description,
		ImageRefs:   l.Media,
	}
}

// Checker inspects listing content.
type Checker interface {
	Check(ctx context.Context, req Request) (models.Verdict, error)
}

// FailureCategory normalizes checker failures.
type FailureCategory string

const (
	FailureTimeout     FailureCategory = "timeout"
	FailureOutage      FailureCategory = "outage"
	FailureBadResponse FailureCategory = "bad_response"
	FailureCircuitOpen FailureCategory = "circuit_open"
)

// Error is a checker failure. Every category is surfaced to callers as
// CodeExternalService.
type Error struct {
	Category   FailureCategory
	Message    string
	Underlying error
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("moderation checker [%s]: %s: %v", e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("moderation checker [%s]: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error { return e.Underlying }

func newError(category FailureCategory, message string, underlying error) error {
	return dErrors.Wrap(&Error{Category: category, Message: message, Underlying: underlying},
		dErrors.CodeExternalService, "moderation service unavailable")
}

// CategoryOf returns the failure category of a checker error.
func CategoryOf(err error) (FailureCategory, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Category, true
	}
	return "", false
}
