package model

import (
	"strconv"
	"time"
)

// MailAccount holds the IMAP connection settings and AI key for one
// mailbox. Secrets are plaintext in memory and encrypted at rest.
type MailAccount struct {
	// ID is the unique identifier for this account.
	ID string `json:"id"`

	// Name is the user-defined label for this account.
	Name string `json:"name"`

	MailServer string `json:"mail_server"`
	MailPort   int    `json:"mail_port"`

	// UseTLS selects implicit TLS (port 993). When false the connector
	// upgrades with STARTTLS; plaintext sessions are never used.
	UseTLS bool `json:"mail_use_tls"`

	Username string `json:"mail_username"`
	Password string `json:"-"`

	// AIAPIKey is the per-account AI provider key. When empty the
	// globally configured key is used.
	AIAPIKey string `json:"-"`

	// FromFilter restricts the mailbox search to one sender, if set.
	FromFilter string `json:"from_filter,omitempty"`

	// PollIntervalSec overrides the scheduler interval when positive.
	PollIntervalSec int `json:"poll_interval_sec"`

	// Enabled controls whether the scheduler polls this account.
	Enabled bool `json:"enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Addr returns host:port for dialing, defaulting the port from UseTLS.
func (a *MailAccount) Addr() string {
	port := a.MailPort
	if port == 0 {
		port = 993
		if !a.UseTLS {
			port = 143
		}
	}
	return a.MailServer + ":" + strconv.Itoa(port)
}

// PollInterval returns the per-account override, or fallback when unset.
func (a *MailAccount) PollInterval(fallback time.Duration) time.Duration {
	if a.PollIntervalSec > 0 {
		return time.Duration(a.PollIntervalSec) * time.Second
	}
	return fallback
}

// FetchWatermark marks the end of the range already fetched for an
// account. LastFetchTime never decreases.
type FetchWatermark struct {
	AccountID     string    `json:"account_id" db:"account_id"`
	LastFetchTime time.Time `json:"last_fetch_time" db:"last_fetch_time"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// FetchWindowStart returns where the next search should begin: the
// watermark, clamped so that no more than maxLookback is scanned.
func (w *FetchWatermark) FetchWindowStart(now time.Time, maxLookback time.Duration) time.Time {
	start := w.LastFetchTime
	if maxLookback > 0 && now.Sub(start) > maxLookback {
		start = now.Add(-maxLookback)
	}
	return start
}
