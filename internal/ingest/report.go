package ingest

import (
	"time"

	"github.com/nhle/leadmail/internal/model"
)

// Outcome is what happened to one message in a cycle.
type Outcome int

const (
	OutcomeStored Outcome = iota
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStored:
		return "stored"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SkipReason explains an OutcomeSkipped result.
type SkipReason string

const (
	// SkipDuplicate means the message id was already stored for the
	// account.
	SkipDuplicate SkipReason = "duplicate"

	// SkipGone means the message was expunged between search and fetch.
	SkipGone SkipReason = "gone"
)

// Result is the outcome of processing one message.
type Result struct {
	UID       uint32
	MessageID string

	// ReceivedAt is zero when the message could not be fetched.
	ReceivedAt time.Time

	Outcome Outcome
	Skip    SkipReason
	Err     error

	// Retryable marks failures that must hold the watermark so the
	// message is fetched again next cycle.
	Retryable bool

	Email       *model.StoredEmail
	Unknown     bool
	LeadID      string
	LeadCreated bool
	MassMail    bool

	// Classified is set when the AI call returned. ClassifyErr holds a
	// swallowed classification failure.
	Classified  bool
	ClassifyErr error
	Items       int
}

// CycleReport aggregates the results of one account's cycle.
type CycleReport struct {
	AccountID   string
	AccountName string

	Started  time.Time
	Finished time.Time

	// WindowStart is the SINCE date the mailbox was searched from.
	WindowStart time.Time
	Found       int

	Results []Result

	// Err is set when the cycle was aborted: configuration, connection,
	// authentication or budget failures.
	Err error

	// Watermark is the value the watermark was advanced to, zero when it
	// was left alone.
	Watermark time.Time
}

// Duration is the wall time of the cycle.
func (r *CycleReport) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Aborted reports whether the cycle stopped before attempting every
// message.
func (r *CycleReport) Aborted() bool { return r.Err != nil }

// WatermarkAdvanced reports whether the cycle moved the watermark.
func (r *CycleReport) WatermarkAdvanced() bool { return !r.Watermark.IsZero() }

func (r *CycleReport) count(match func(Result) bool) int {
	n := 0
	for _, res := range r.Results {
		if match(res) {
			n++
		}
	}
	return n
}

// Stored counts messages persisted this cycle.
func (r *CycleReport) Stored() int {
	return r.count(func(res Result) bool { return res.Outcome == OutcomeStored })
}

// Skipped counts duplicate or vanished messages.
func (r *CycleReport) Skipped() int {
	return r.count(func(res Result) bool { return res.Outcome == OutcomeSkipped })
}

// Failed counts messages that could not be processed.
func (r *CycleReport) Failed() int {
	return r.count(func(res Result) bool { return res.Outcome == OutcomeFailed })
}

// SkippedFor counts skips with the given reason.
func (r *CycleReport) SkippedFor(reason SkipReason) int {
	return r.count(func(res Result) bool {
		return res.Outcome == OutcomeSkipped && res.Skip == reason
	})
}

// LeadsCreated counts leads created by this cycle.
func (r *CycleReport) LeadsCreated() int {
	return r.count(func(res Result) bool { return res.LeadCreated })
}

// MassMail counts stored messages flagged as mass mail.
func (r *CycleReport) MassMail() int {
	return r.count(func(res Result) bool { return res.Outcome == OutcomeStored && res.MassMail })
}

// Unknown counts stored messages without a usable sender.
func (r *CycleReport) Unknown() int {
	return r.count(func(res Result) bool { return res.Outcome == OutcomeStored && res.Unknown })
}

// ClassifyFailures counts swallowed AI errors.
func (r *CycleReport) ClassifyFailures() int {
	return r.count(func(res Result) bool { return res.ClassifyErr != nil })
}

// Items counts AI-derived items stored this cycle.
func (r *CycleReport) Items() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == OutcomeStored {
			n += res.Items
		}
	}
	return n
}
