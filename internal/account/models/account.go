package models

import (
	"strings"
	"time"

	id "dealerhub/pkg/domain"
	dErrors "dealerhub/pkg/domain-errors"
)

// CurrentSchemaVersion is the Account layout written by this build.
// Records with a lower version are brought forward by Upgrade on load.
const CurrentSchemaVersion = 2

// Account is the aggregate root for a dealer or admin.
//
// Invariants:
//   - ID and CreatedAt are immutable after construction
//   - Role changes only through the admin override surface
//   - Subscription.AdCredits is never negative
//   - VerificationStatus moves unverified → pending → verified | rejected,
//     rejected → pending, verified → unverified; admins may bypass this
//   - EmailVerified and PhoneVerified never gate a transition
type Account struct {
	ID                 id.AccountID       `json:"id"`
	Role               Role               `json:"role"`
	Name               string             `json:"name"`
	Email              string             `json:"email"`
	Phone              string             `json:"phone"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	EmailVerified      bool               `json:"email_verified"`
	PhoneVerified      bool               `json:"phone_verified"`
	Documents          *Documents         `json:"documents,omitempty"`
	Subscription       *Subscription      `json:"subscription,omitempty"`
	SchemaVersion      int                `json:"schema_version"`
	Version            int64              `json:"version"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Documents holds storage references for the three identity documents.
type Documents struct {
	Aadhar      string    `json:"aadhar"`
	PAN         string    `json:"pan"`
	ShopLicense string    `json:"shop_license"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Refs returns the non-empty references in a stable order.
func (d *Documents) Refs() []string {
	if d == nil {
		return nil
	}
	out := make([]string, 0, 3)
	for _, r := range []string{d.Aadhar, d.PAN, d.ShopLicense} {
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}

// NewDealer creates the default Account for a first sign-in.
func NewDealer(accountID id.AccountID, email string, now time.Time) (*Account, error) {
	return newAccount(accountID, RoleDealer, email, now)
}

func newAccount(accountID id.AccountID, role Role, email string, now time.Time) (*Account, error) {
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "account id is required")
	}
	return &Account{
		ID:                 accountID,
		Role:               role,
		Email:              email,
		VerificationStatus: VerificationUnverified,
		SchemaVersion:      CurrentSchemaVersion,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

func (a *Account) IsAdmin() bool { return a.Role == RoleAdmin }

func (a *Account) IsVerified() bool { return a.VerificationStatus == VerificationVerified }

// Credits returns the spendable balance, zero without a subscription.
func (a *Account) Credits() int {
	if a.Subscription == nil {
		return 0
	}
	return a.Subscription.AdCredits
}

// HasLiveSubscription reports whether the plan is active and unexpired at now.
func (a *Account) HasLiveSubscription(now time.Time) bool {
	return a.Subscription.IsLive(now)
}

// Upgrade brings a record written by an older build to CurrentSchemaVersion.
// Version 1 records predate contact fields and the activation timestamp.
func (a *Account) Upgrade() {
	if a.SchemaVersion >= CurrentSchemaVersion {
		return
	}
	if a.SchemaVersion < 1 {
		a.SchemaVersion = 1
	}
	if a.SchemaVersion == 1 {
		if a.Role == "" {
			a.Role = RoleDealer
		}
		if a.VerificationStatus == "" {
			a.VerificationStatus = VerificationUnverified
		}
		if a.Subscription != nil && a.Subscription.ActivatedAt.IsZero() {
			a.Subscription.ActivatedAt = a.CreatedAt
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = a.CreatedAt
		}
		a.SchemaVersion = 2
	}
}

// Clone returns a deep copy so store transactions can commit or discard it.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.Documents != nil {
		d := *a.Documents
		c.Documents = &d
	}
	if a.Subscription != nil {
		s := *a.Subscription
		c.Subscription = &s
	}
	return &c
}

// CanSubmitDocuments checks the dealer may (re)submit documents.
func (a *Account) CanSubmitDocuments() error {
	if a.VerificationStatus == VerificationVerified {
		return dErrors.New(dErrors.CodeInvalidState, "account is already verified")
	}
	return nil
}

// ApplyDocuments stores fresh references and moves to pending. It returns the
// references they replace, if any.
func (a *Account) ApplyDocuments(docs Documents, now time.Time) *Documents {
	prev := a.Documents
	docs.SubmittedAt = now
	a.Documents = &docs
	a.VerificationStatus = VerificationPending
	a.UpdatedAt = now
	return prev
}

// CanReview checks that documents await an administrative decision.
func (a *Account) CanReview() error {
	if a.VerificationStatus != VerificationPending {
		return dErrors.New(dErrors.CodeInvalidState, "documents are not pending review")
	}
	return nil
}

// ApplyReview records the review outcome.
func (a *Account) ApplyReview(approve bool, now time.Time) {
	if approve {
		a.VerificationStatus = VerificationVerified
	} else {
		a.VerificationStatus = VerificationRejected
	}
	a.UpdatedAt = now
}

// ApplyVerificationStatus sets the status without precondition checks.
// Admin override only.
func (a *Account) ApplyVerificationStatus(status VerificationStatus, now time.Time) {
	a.VerificationStatus = status
	a.UpdatedAt = now
}

func (a *Account) ApplyPhoneVerified(now time.Time) {
	a.PhoneVerified = true
	a.UpdatedAt = now
}

func (a *Account) ApplyEmailVerified(email string, now time.Time) {
	a.EmailVerified = true
	if email != "" {
		a.Email = email
	}
	a.UpdatedAt = now
}

const (
	maxNameLength  = 100
	minPhoneDigits = 7
	maxPhoneDigits = 15
)

// ValidateContactFields checks the editable contact fields. Nil fields are
// not being changed; an empty phone clears it.
func ValidateContactFields(name, phone *string) error {
	if name == nil && phone == nil {
		return dErrors.New(dErrors.CodeValidation, "no fields to update")
	}
	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			return dErrors.New(dErrors.CodeValidation, "name cannot be empty")
		}
		if len(n) > maxNameLength {
			return dErrors.New(dErrors.CodeValidation, "name must be 100 characters or less")
		}
	}
	if phone != nil && *phone != "" {
		digits := 0
		for i, c := range *phone {
			switch {
			case c >= '0' && c <= '9':
				digits++
			case c == '+' && i == 0, c == ' ', c == '-':
			default:
				return dErrors.New(dErrors.CodeValidation, "phone contains invalid characters")
			}
		}
		if digits < minPhoneDigits || digits > maxPhoneDigits {
			return dErrors.New(dErrors.CodeValidation, "phone must have 7 to 15 digits")
		}
	}
	return nil
}

// ApplyContactFields updates name and phone. Nil leaves a field unchanged.
func (a *Account) ApplyContactFields(name, phone *string, now time.Time) {
	if name != nil {
		a.Name = strings.TrimSpace(*name)
	}
	if phone != nil {
		a.Phone = *phone
	}
	a.UpdatedAt = now
}

func (a *Account) ApplyRole(role Role, now time.Time) {
	a.Role = role
	a.UpdatedAt = now
}
