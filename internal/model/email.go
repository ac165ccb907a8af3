package model

import (
	"strings"
	"time"
)

// RawMessage is a message as fetched from the mailbox, before decoding.
type RawMessage struct {
	// UID is the IMAP UID within the selected mailbox.
	UID uint32

	// Raw is the full RFC 5322 message.
	Raw []byte

	// InternalDate is the server's arrival time, used when the Date
	// header is missing or unparseable.
	InternalDate time.Time
}

// NormalizedEmail is the canonical decoded form of a fetched message.
// It is derived once per message and not modified afterwards.
type NormalizedEmail struct {
	// MessageID is the Message-Id without angle brackets; empty when absent.
	MessageID string

	SenderAddress     string
	SenderDisplayName string
	Subject           string

	// BodyText is the cleaned plain-text body.
	BodyText string

	// HTML is the raw html alternative, if the message had one.
	HTML string

	ReceivedAt time.Time

	// DetectedEncoding is the label returned by the normalizer for the body.
	DetectedEncoding string

	// Recipients counts To, Cc and Bcc addresses.
	Recipients int

	// Headers holds the decoded header values keyed by lower-cased name.
	Headers map[string]string
}

// Header returns the named header value, or "".
func (e *NormalizedEmail) Header(name string) string {
	if e.Headers == nil {
		return ""
	}
	return e.Headers[strings.ToLower(name)]
}

// HasHeader reports whether the named header was present.
func (e *NormalizedEmail) HasHeader(name string) bool {
	if e.Headers == nil {
		return false
	}
	_, ok := e.Headers[strings.ToLower(name)]
	return ok
}

// StoredEmail is the persisted record of an ingested message.
type StoredEmail struct {
	ID        string `json:"id" db:"id"`
	AccountID string `json:"account_id" db:"account_id"`
	LeadID    string `json:"lead_id" db:"lead_id"`

	// MessageID is the dedup key within an account. Nil when the message
	// had no Message-Id.
	MessageID *string `json:"message_id,omitempty" db:"message_id"`

	Sender       string    `json:"sender" db:"sender"`
	SenderName   string    `json:"sender_name" db:"sender_name"`
	Subject      string    `json:"subject" db:"subject"`
	Content      string    `json:"content" db:"content"`
	ReceivedDate time.Time `json:"received_date" db:"received_date"`
	Encoding     string    `json:"encoding" db:"encoding"`

	IsMassMail     bool   `json:"is_mass_mail" db:"is_mass_mail"`
	MassMailReason string `json:"mass_mail_reason,omitempty" db:"mass_mail_reason"`

	AIAnalysis     *string    `json:"ai_analysis,omitempty" db:"ai_analysis"`
	AIAnalysisDate *time.Time `json:"ai_analysis_date,omitempty" db:"ai_analysis_date"`
	AIModelUsed    *string    `json:"ai_model_used,omitempty" db:"ai_model_used"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// UnknownEmail is mail that could not be tied to any lead, typically
// because the sender had no usable address.
type UnknownEmail struct {
	ID           string    `json:"id" db:"id"`
	AccountID    string    `json:"account_id" db:"account_id"`
	MessageID    *string   `json:"message_id,omitempty" db:"message_id"`
	Sender       string    `json:"sender" db:"sender"`
	SenderName   string    `json:"sender_name" db:"sender_name"`
	Subject      string    `json:"subject" db:"subject"`
	Content      string    `json:"content" db:"content"`
	ReceivedDate time.Time `json:"received_date" db:"received_date"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
