package models

type Status string

const (
	StatusActive  Status = "active"
	StatusSold    Status = "sold"
	StatusRemoved Status = "removed"
)

// CanTransitionTo reports whether next is a legal status move.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusActive:
		return next == StatusSold || next == StatusRemoved
	case StatusSold:
		return next == StatusRemoved
	}
	return false
}

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

type ModerationState string

const (
	// ModerationPending awaits a verdict for the current request.
	ModerationPending ModerationState = "pending"
	ModerationPassed  ModerationState = "passed"
	ModerationFlagged ModerationState = "flagged"
	// ModerationRetry means the checker was unreachable; the listing keeps
	// its prior visibility until a retry yields a verdict.
	ModerationRetry ModerationState = "retry"
)

// ModerationOrigin is the operation that requested a moderation round.
type ModerationOrigin string

const (
	OriginCreate ModerationOrigin = "create"
	OriginEdit   ModerationOrigin = "edit"
	OriginAdmin  ModerationOrigin = "admin"
)
