package domain

import "time"

// SubjectIdentity is a verified identity returned by a credential
// verifier. It never carries secrets.
type SubjectIdentity struct {
	SubjectID   string
	Email       string
	DisplayName string
}

// Profile maps a subject to its role assignment. Every subject has
// exactly one profile; unassigned is a stored value, not an absent row.
type Profile struct {
	SubjectID   string
	Email       string
	DisplayName string
	Role        Role
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AccountStatus represents lifecycle states for a local account.
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "ACTIVE"
	AccountStatusSuspended AccountStatus = "SUSPENDED"
)

// Account is a locally-held credential record for password and phone
// sign-in. Federated subjects carry no account row; their profile is
// keyed by the provider-derived subject ID.
type Account struct {
	ID            string
	Email         string
	Phone         string
	DisplayName   string
	PasswordHash  string
	EmailVerified bool
	Status        AccountStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
