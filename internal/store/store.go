package store

import (
	"context"
	"time"

	"github.com/nhle/leadmail/internal/model"
)

// LeadFilter controls filtering and pagination for lead queries.
type LeadFilter struct {
	AccountID *string
	Status    *model.LeadStatus
	Query     *string // search name + email
	Limit     int
	Offset    int
}

// AIRecord is the raw classifier output kept on the stored email.
type AIRecord struct {
	Raw   string
	Model string
	At    time.Time
}

// EmailCycle is everything one processed message writes, committed in a
// single transaction by StoreEmailCycle.
type EmailCycle struct {
	AccountID string
	Email     *model.NormalizedEmail

	// Sender identifies the lead. The lead is looked up, created or
	// updated inside the same transaction as the email. Nil stores the
	// message as unknown mail.
	Sender *LeadSender

	IsMassMail     bool
	MassMailReason string

	// Analysis is nil when the message was not classified.
	Analysis *AIRecord

	// Items are re-materialized for the email: existing AI-generated
	// rows for it are replaced.
	Items model.AIItems
}

// LeadSender is the address and display name a lead is resolved from.
type LeadSender struct {
	Address string
	Name    string
}

// StoredCycle is what StoreEmailCycle committed.
type StoredCycle struct {
	Email *model.StoredEmail

	// Lead is nil for unknown mail.
	Lead        *model.Lead
	LeadCreated bool
}

// Store defines the persistence interface for mail accounts, leads,
// ingested mail and the records derived from it.
type Store interface {
	// === Accounts ===

	CreateAccount(ctx context.Context, account *model.MailAccount) error
	UpdateAccount(ctx context.Context, account *model.MailAccount) error
	GetAccount(ctx context.Context, id string) (*model.MailAccount, error)
	ListAccounts(ctx context.Context, enabledOnly bool) ([]model.MailAccount, error)
	SetAccountEnabled(ctx context.Context, id string, enabled bool) error

	// === Fetch tracker ===

	GetOrCreateWatermark(
		ctx context.Context,
		accountID string,
		now time.Time,
		lookback time.Duration,
	) (*model.FetchWatermark, error)
	AdvanceWatermark(ctx context.Context, accountID string, t time.Time) error

	// === Leads ===

	ResolveLead(
		ctx context.Context,
		accountID, address, name string,
		receivedAt time.Time,
	) (*model.Lead, bool, error)
	FindLead(ctx context.Context, accountID, address string) (*model.Lead, error)
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	GetLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	UpdateLeadStatus(ctx context.Context, id string, status model.LeadStatus) error
	DeleteLead(ctx context.Context, id string) error

	// === Emails ===

	StoreEmailCycle(ctx context.Context, cycle EmailCycle) (*StoredCycle, error)
	EmailExists(ctx context.Context, accountID, messageID string) (bool, error)
	EmailsForLead(ctx context.Context, leadID string, limit int) ([]model.StoredEmail, error)
	UnknownEmails(ctx context.Context, accountID string, limit int) ([]model.UnknownEmail, error)
	AIItemsForEmail(ctx context.Context, emailID string) (model.AIItems, error)

	// === Behavior analyses ===

	SaveBehaviorAnalysis(ctx context.Context, a *model.BehaviorAnalysis) error
	LatestBehaviorAnalysis(ctx context.Context, leadID string) (*model.BehaviorAnalysis, error)

	// === Notifications ===

	CreateNotification(ctx context.Context, n model.Notification) error
	GetUnreadNotifications(ctx context.Context) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error

	Close() error
}
