package models

// Role is the account's privilege level.
type Role string

const (
	RoleDealer Role = "dealer"
	RoleAdmin  Role = "admin"
)

func (r Role) IsValid() bool {
	return r == RoleDealer || r == RoleAdmin
}

// VerificationStatus is the position in the document verification workflow.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationPending    VerificationStatus = "pending"
	VerificationVerified   VerificationStatus = "verified"
	VerificationRejected   VerificationStatus = "rejected"
)

func (s VerificationStatus) IsValid() bool {
	switch s {
	case VerificationUnverified, VerificationPending, VerificationVerified, VerificationRejected:
		return true
	}
	return false
}

func (s VerificationStatus) String() string { return string(s) }

// ParseVerificationStatus validates a status from external input.
func ParseVerificationStatus(s string) (VerificationStatus, bool) {
	v := VerificationStatus(s)
	return v, v.IsValid()
}
