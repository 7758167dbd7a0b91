package events

import (
	"time"

	"github.com/spec-kit/user-access-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered    EventType = "user_registered"
	EventUserLoggedIn      EventType = "user_logged_in"
	EventUserLoggedOut     EventType = "user_logged_out"
	EventTokensRevoked     EventType = "tokens_revoked"
	EventUserStatusChanged EventType = "user_status_changed"
	EventPasswordChanged   EventType = "password_changed"
	EventUserDeleted       EventType = "user_deleted"
)

// Event represents an authentication or account event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// UserLoggedInPayload payload.
type UserLoggedInPayload struct {
	Email          string    `json:"email"`
	TokensRevoked  int       `json:"tokens_revoked"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
}

// UserLoggedOutPayload payload.
type UserLoggedOutPayload struct {
	TokenFound bool `json:"token_found"`
}

// TokensRevokedPayload payload.
type TokensRevokedPayload struct {
	Count  int    `json:"count"`
	Reason string `json:"reason"`
}

// UserStatusChangedPayload payload.
type UserStatusChangedPayload struct {
	Enabled bool `json:"enabled"`
}

// UserDeletedPayload payload.
type UserDeletedPayload struct {
	Email string `json:"email"`
}
