package events

import (
	"time"

	"github.com/spec-kit/crm-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered    EventType = "user_registered"
	EventUserUpdated       EventType = "user_updated"
	EventUserRoleChanged   EventType = "user_role_changed"
	EventUserDeleted       EventType = "user_deleted"
	EventUserAvatarChanged EventType = "user_avatar_changed"
	EventCustomerCreated   EventType = "customer_created"
	EventCustomerUpdated   EventType = "customer_updated"
	EventCustomerDeleted   EventType = "customer_deleted"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ActorID   int64       `json:"actor_id"`
	SubjectID int64       `json:"subject_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// UserUpdatedPayload lists which fields changed. Values are not carried so
// password material never reaches an event.
type UserUpdatedPayload struct {
	Fields []string `json:"fields"`
}

// UserRoleChangedPayload payload.
type UserRoleChangedPayload struct {
	OldRole domain.Role `json:"old_role"`
	NewRole domain.Role `json:"new_role"`
}

// UserAvatarChangedPayload payload.
type UserAvatarChangedPayload struct {
	AvatarURL string `json:"avatar_url"`
}

// CustomerPayload identifies the affected customer.
type CustomerPayload struct {
	CustomerID int64                 `json:"customer_id"`
	Status     domain.CustomerStatus `json:"status,omitempty"`
}
