package accountlist

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/leadmail/internal/ingest"
	appsync "github.com/nhle/leadmail/internal/sync"
)

func TestSummary(t *testing.T) {
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		status appsync.AccountStatus
		want   string
	}{
		{
			name: "never polled",
			want: "never polled",
		},
		{
			name: "error",
			status: appsync.AccountStatus{
				LastRun: now.Add(-5 * time.Minute),
				Error:   errors.New("authentication failed"),
			},
			want: "5m ago: authentication failed",
		},
		{
			name: "report",
			status: appsync.AccountStatus{
				LastRun: now.Add(-30 * time.Second),
				LastReport: &ingest.CycleReport{Results: []ingest.Result{
					{Outcome: ingest.OutcomeStored, LeadCreated: true},
					{Outcome: ingest.OutcomeStored},
					{Outcome: ingest.OutcomeSkipped, Skip: ingest.SkipDuplicate},
					{Outcome: ingest.OutcomeFailed},
				}},
			},
			want: "just now: 2 stored, 1 skipped, 1 failed, 1 new leads",
		},
		{
			name: "hours",
			status: appsync.AccountStatus{
				LastRun:    now.Add(-3 * time.Hour),
				LastReport: &ingest.CycleReport{},
			},
			want: "3h ago: 0 stored, 0 skipped",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, summary(tt.status, now))
		})
	}
}
