package domain

import "time"

// Session represents one authenticated browsing period. Role is a
// snapshot at issuance; resolution re-reads it from the role store.
type Session struct {
	ID        string
	SubjectID string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Principal is the immutable result of resolving an inbound request:
// either an authenticated subject with its current role, or anonymous.
type Principal struct {
	Authenticated bool
	SubjectID     string
	Role          Role
	SessionID     string
}

// Anonymous is the principal for unauthenticated requests.
var Anonymous = Principal{}

// EnrollmentState names the stages of the login/signup flow.
type EnrollmentState string

const (
	StateAnonymous           EnrollmentState = "ANONYMOUS"
	StateCredentialSubmitted EnrollmentState = "CREDENTIAL_SUBMITTED"
	StateRolePending         EnrollmentState = "ROLE_PENDING"
	StateAuthenticated       EnrollmentState = "AUTHENTICATED"
	StateRejected            EnrollmentState = "REJECTED"
)

// AuthOutcome is the terminal result of an enrollment action.
type AuthOutcome struct {
	State        EnrollmentState
	Role         Role
	RedirectPath string
	SubjectID    string
	Token        string
	ExpiresAt    time.Time
	// Reason carries the rejection code when State is REJECTED.
	Reason string
}
