package model

import (
	"time"
	"unicode/utf8"
)

// LeadStatus is the CRM lifecycle state of a lead.
type LeadStatus string

const (
	LeadStatusNew         LeadStatus = "New"
	LeadStatusContacted   LeadStatus = "Contacted"
	LeadStatusQualified   LeadStatus = "Qualified"
	LeadStatusUnqualified LeadStatus = "Unqualified"
	LeadStatusSpam        LeadStatus = "Spam"
)

// Lead is a CRM contact keyed by (AccountID, Email).
type Lead struct {
	// ID is the internal unique identifier for this lead.
	ID string `json:"id" db:"id"`

	// AccountID is the mail account that first saw this sender.
	AccountID string `json:"account_id" db:"account_id"`

	// Name is the display name; may be backfilled by later mail.
	Name string `json:"name" db:"name"`

	// Email is the lower-cased sender address.
	Email string `json:"email" db:"email"`

	// Status is the lifecycle state. Mass mail moves a lead to Spam.
	Status LeadStatus `json:"status" db:"status"`

	// Score is the qualification score.
	Score float64 `json:"score" db:"score"`

	// LastContact is the latest received time of any mail from this lead.
	// It never moves backward.
	LastContact *time.Time `json:"last_contact,omitempty" db:"last_contact"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NeedsNameBackfill reports whether the stored name is empty or a single
// character, as happens when a lead was created from a truncated address.
func (l *Lead) NeedsNameBackfill() bool {
	return utf8.RuneCountInString(l.Name) <= 1
}

// BumpLastContact moves LastContact forward to t. Earlier times are ignored.
// It reports whether the value changed.
func (l *Lead) BumpLastContact(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	if l.LastContact != nil && !t.After(*l.LastContact) {
		return false
	}
	t = t.UTC()
	l.LastContact = &t
	return true
}

// BehaviorAnalysis is a persisted AI analysis of a lead's whole
// correspondence history.
type BehaviorAnalysis struct {
	ID     string `json:"id" db:"id"`
	LeadID string `json:"lead_id" db:"lead_id"`

	// Result is the decoded analysis, stored as JSON.
	Result string `json:"result" db:"result"`

	// Model is the AI model that produced the analysis.
	Model      string    `json:"model" db:"model"`
	AnalyzedAt time.Time `json:"analyzed_at" db:"analyzed_at"`
}
