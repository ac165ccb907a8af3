package model

import "time"

// Task statuses.
const (
	TaskStatusPending   = "Pending"
	TaskStatusCompleted = "Completed"
)

// Schedule statuses.
const (
	ScheduleStatusScheduled = "Scheduled"
	ScheduleStatusCancelled = "Cancelled"
)

// OpportunityStageProspecting is the stage assigned to AI-suggested
// opportunities.
const OpportunityStageProspecting = "Prospecting"

// Task is a follow-up item attached to a lead. Items extracted by the
// classifier carry IsAIGenerated and a back-reference to their email.
type Task struct {
	// ID is the internal unique identifier for this task.
	ID string `json:"id" db:"id"`

	// AccountID is the mail account the originating email belongs to.
	AccountID string `json:"account_id" db:"account_id"`

	// LeadID is the lead this task is about.
	LeadID *string `json:"lead_id,omitempty" db:"lead_id"`

	// EmailID links the task to the email analysis that produced it.
	EmailID *string `json:"email_id,omitempty" db:"email_id"`

	// Title is a short, single-line summary (at most 100 runes).
	Title string `json:"title" db:"title"`

	// Description is the full suggestion text.
	Description string `json:"description" db:"description"`

	// DueDate is when the task should be done.
	DueDate *time.Time `json:"due_date,omitempty" db:"due_date"`

	// Status is one of the TaskStatus* constants.
	Status string `json:"status" db:"status"`

	// IsAIGenerated marks tasks materialized from a classification.
	IsAIGenerated bool `json:"is_ai_generated" db:"is_ai_generated"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Schedule is a calendar entry attached to a lead.
type Schedule struct {
	ID            string    `json:"id" db:"id"`
	AccountID     string    `json:"account_id" db:"account_id"`
	LeadID        *string   `json:"lead_id,omitempty" db:"lead_id"`
	EmailID       *string   `json:"email_id,omitempty" db:"email_id"`
	Title         string    `json:"title" db:"title"`
	Description   string    `json:"description" db:"description"`
	StartTime     time.Time `json:"start_time" db:"start_time"`
	EndTime       time.Time `json:"end_time" db:"end_time"`
	Status        string    `json:"status" db:"status"`
	IsAIGenerated bool      `json:"is_ai_generated" db:"is_ai_generated"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Opportunity is a potential deal suggested for a lead.
type Opportunity struct {
	ID            string    `json:"id" db:"id"`
	AccountID     string    `json:"account_id" db:"account_id"`
	LeadID        *string   `json:"lead_id,omitempty" db:"lead_id"`
	EmailID       *string   `json:"email_id,omitempty" db:"email_id"`
	Name          string    `json:"name" db:"name"`
	Stage         string    `json:"stage" db:"stage"`
	IsAIGenerated bool      `json:"is_ai_generated" db:"is_ai_generated"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// AIItems groups everything a single email analysis produced.
type AIItems struct {
	Tasks         []Task
	Schedules     []Schedule
	Opportunities []Opportunity
}

// Count returns the total number of items.
func (i AIItems) Count() int {
	return len(i.Tasks) + len(i.Schedules) + len(i.Opportunities)
}
