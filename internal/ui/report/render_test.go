package report

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/leadmail/internal/ingest"
)

func TestRender(t *testing.T) {
	started := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

	t.Run("nil report", func(t *testing.T) {
		assert.Contains(t, Render(nil), "No cycle has run yet")
	})

	t.Run("summary and messages", func(t *testing.T) {
		r := &ingest.CycleReport{
			AccountID:   "acc-1",
			AccountName: "Sales",
			Started:     started,
			Finished:    started.Add(1500 * time.Millisecond),
			Found:       3,
			Watermark:   started,
			Results: []ingest.Result{
				{UID: 1, MessageID: "a@example.com", Outcome: ingest.OutcomeStored, LeadCreated: true, Items: 2},
				{UID: 2, MessageID: "b@example.com", Outcome: ingest.OutcomeSkipped, Skip: ingest.SkipDuplicate},
				{UID: 3, Outcome: ingest.OutcomeFailed, Err: errors.New("fetch failed"), Retryable: true},
			},
		}

		out := Render(r)
		assert.Contains(t, out, "Sales")
		assert.Contains(t, out, "1.5s")
		assert.Contains(t, out, "1 (1 new leads, 0 mass mail, 0 unknown)")
		assert.Contains(t, out, "1 (1 duplicate, 0 gone)")
		assert.Contains(t, out, "a@example.com")
		assert.Contains(t, out, "new lead, 2 items")
		assert.Contains(t, out, "uid 3")
		assert.Contains(t, out, "fetch failed, retry")
		assert.NotContains(t, out, "held")
	})

	t.Run("aborted cycle", func(t *testing.T) {
		r := &ingest.CycleReport{
			AccountID: "acc-1",
			Started:   started,
			Finished:  started,
			Err:       errors.New("authentication failed"),
		}

		out := Render(r)
		assert.Contains(t, out, "acc-1")
		assert.Contains(t, out, "held")
		assert.Contains(t, out, "Aborted: authentication failed")
	})
}
