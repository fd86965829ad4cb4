package events

import (
	"time"

	"github.com/f4ntasma/codex/internal/domain"
)

// EventType enumerates auth state-change identifiers. Consumers
// subscribe to these instead of polling the session endpoint.
type EventType string

const (
	EventLoggedIn       EventType = "auth_logged_in"
	EventLoggedOut      EventType = "auth_logged_out"
	EventRoleSelected   EventType = "auth_role_selected"
	EventSessionRenewed EventType = "auth_session_renewed"
)

// Event represents an auth state change emitted by the enrollment flow.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SubjectID string      `json:"subject_id"`
	Role      domain.Role `json:"role,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
