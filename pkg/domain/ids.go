package domain

import (
	"github.com/google/uuid"

	dErrors "dealerhub/pkg/domain-errors"
)

// maxAccountIDLength bounds identity-provider subjects accepted at the boundary.
const maxAccountIDLength = 128

// AccountID is the stable subject issued by the identity provider. It is
// opaque to this system and never reassigned.
type AccountID string

// ListingID identifies a single advertisement.
type ListingID uuid.UUID

// LedgerEntryID identifies a credit ledger row.
type LedgerEntryID uuid.UUID

// ModerationRequestID correlates a moderation verdict with the content
// revision it was requested for.
type ModerationRequestID uuid.UUID

// PaymentReference is the gateway's idempotency key for a confirmed payment.
type PaymentReference string

// ParseAccountID validates an identity-provider subject.
//
// Errors: CodeValidation when the value is empty, too long, or contains
// characters outside [A-Za-z0-9._:@-].
func ParseAccountID(s string) (AccountID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "account id is required")
	}
	if len(s) > maxAccountIDLength {
		return "", dErrors.New(dErrors.CodeValidation, "account id is too long")
	}
	for i := 0; i < len(s); i++ {
		if !isSubjectChar(s[i]) {
			return "", dErrors.New(dErrors.CodeValidation, "account id contains invalid characters")
		}
	}
	return AccountID(s), nil
}

func isSubjectChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '.' || c == '_' || c == ':' || c == '@' || c == '-':
		return true
	}
	return false
}

func (a AccountID) String() string { return string(a) }

func (a AccountID) IsNil() bool { return a == "" }

// ParseListingID parses a listing id from external input.
func ParseListingID(s string) (ListingID, error) {
	u, err := parseUUID(s, "listing id")
	return ListingID(u), err
}

// NewListingID returns a fresh random listing id.
func NewListingID() ListingID { return ListingID(uuid.New()) }

func (l ListingID) String() string { return uuid.UUID(l).String() }

func (l ListingID) IsNil() bool { return uuid.UUID(l) == uuid.Nil }

// ParseModerationRequestID parses a moderation request id from external input.
func ParseModerationRequestID(s string) (ModerationRequestID, error) {
	u, err := parseUUID(s, "moderation request id")
	return ModerationRequestID(u), err
}

// NewModerationRequestID returns a fresh random moderation request id.
func NewModerationRequestID() ModerationRequestID { return ModerationRequestID(uuid.New()) }

func (m ModerationRequestID) String() string { return uuid.UUID(m).String() }

func (m ModerationRequestID) IsNil() bool { return uuid.UUID(m) == uuid.Nil }

// NewLedgerEntryID returns a fresh random ledger entry id.
func NewLedgerEntryID() LedgerEntryID { return LedgerEntryID(uuid.New()) }

func (l LedgerEntryID) String() string { return uuid.UUID(l).String() }

// ParsePaymentReference validates a gateway payment reference.
func ParsePaymentReference(s string) (PaymentReference, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "payment reference is required")
	}
	if len(s) > 255 {
		return "", dErrors.New(dErrors.CodeValidation, "payment reference is too long")
	}
	return PaymentReference(s), nil
}

func (p PaymentReference) String() string { return string(p) }

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, what+" is required")
	}
	if len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "invalid "+what)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "invalid "+what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, what+" must not be nil")
	}
	return u, nil
}

func (l ListingID) MarshalText() ([]byte, error) { return uuid.UUID(l).MarshalText() }

func (l *ListingID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(l).UnmarshalText(b)
}

func (l LedgerEntryID) MarshalText() ([]byte, error) { return uuid.UUID(l).MarshalText() }

func (l *LedgerEntryID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(l).UnmarshalText(b)
}

func (m ModerationRequestID) MarshalText() ([]byte, error) { return uuid.UUID(m).MarshalText() }

func (m *ModerationRequestID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(m).UnmarshalText(b)
}
