package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered  EventType = "user_registered"
	EventUserLoggedIn    EventType = "user_logged_in"
	EventLoginFailed     EventType = "login_failed"
	EventTokenRefreshed  EventType = "token_refreshed"
	EventRefreshRejected EventType = "refresh_rejected"
	EventTokenRevoked    EventType = "token_revoked"
	EventPasswordChanged EventType = "password_changed"
	EventDetailsUpdated  EventType = "details_updated"
	EventContactCreated  EventType = "contact_created"
	EventContactUpdated  EventType = "contact_updated"
	EventContactDeleted  EventType = "contact_deleted"
)

// AuthEventTypes lists the events produced by the session manager.
var AuthEventTypes = []EventType{
	EventUserRegistered,
	EventUserLoggedIn,
	EventLoginFailed,
	EventTokenRefreshed,
	EventRefreshRejected,
	EventTokenRevoked,
	EventPasswordChanged,
	EventDetailsUpdated,
}

// ContactEventTypes lists the events produced by the contact service.
var ContactEventTypes = []EventType{
	EventContactCreated,
	EventContactUpdated,
	EventContactDeleted,
}

// Event represents a domain event emitted by services.
// UserID is empty when the actor could not be identified (for example a failed login).
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NewEvent stamps an event with an ID and the current time.
func NewEvent(eventType EventType, userID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// LoginFailedPayload payload. Username is what the caller submitted.
type LoginFailedPayload struct {
	Username string `json:"username"`
}

// RefreshRejectedPayload payload.
type RefreshRejectedPayload struct {
	Reason string `json:"reason"`
}

// TokenRevokedPayload payload.
type TokenRevokedPayload struct {
	Matched bool `json:"matched"`
}

// ContactPayload payload.
type ContactPayload struct {
	ContactID string `json:"contact_id"`
}
