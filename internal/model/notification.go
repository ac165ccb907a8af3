package model

import "time"

// NotificationKind classifies a notification.
type NotificationKind string

const (
	// NotificationNewLead is raised when mail from an unknown sender
	// creates a lead.
	NotificationNewLead NotificationKind = "new_lead"

	// NotificationAuthError is raised when a mailbox rejects its
	// credentials and polling for it stops until they are fixed.
	NotificationAuthError NotificationKind = "auth_error"
)

// Notification represents an alert surfaced to the user about pipeline
// activity on an account.
type Notification struct {
	// ID is the unique identifier for this notification.
	ID string `json:"id" db:"id"`

	// AccountID is the mail account the event happened on.
	AccountID string `json:"account_id" db:"account_id"`

	// LeadID links new-lead notifications to the created lead.
	LeadID *string `json:"lead_id,omitempty" db:"lead_id"`

	Kind NotificationKind `json:"kind" db:"kind"`

	// Message is the human-readable notification text.
	Message string `json:"message" db:"message"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"read" db:"read"`

	// CreatedAt is when this notification was generated.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
