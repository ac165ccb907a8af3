package ai

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/leadmail/internal/model"
)

func TestMaterialize(t *testing.T) {
	received := time.Date(2025, 4, 1, 9, 30, 0, 0, time.FixedZone("JST", 9*3600))
	long := strings.Repeat("長", 150)

	items := Materialize(Suggestions{
		Opportunities: []string{"Renewal"},
		Schedules:     []string{"Kickoff meeting"},
		Tasks:         []string{long},
	}, received)

	require.Len(t, items.Tasks, 1)
	task := items.Tasks[0]
	assert.Equal(t, 100, utf8.RuneCountInString(task.Title))
	assert.Equal(t, long, task.Description)
	require.NotNil(t, task.DueDate)
	assert.True(t, task.DueDate.Equal(received.Add(72*time.Hour)))
	assert.Equal(t, model.TaskStatusPending, task.Status)
	assert.True(t, task.IsAIGenerated)

	require.Len(t, items.Schedules, 1)
	sc := items.Schedules[0]
	assert.True(t, sc.StartTime.Equal(received.Add(24*time.Hour)))
	assert.Equal(t, time.Hour, sc.EndTime.Sub(sc.StartTime))
	assert.Equal(t, model.ScheduleStatusScheduled, sc.Status)

	require.Len(t, items.Opportunities, 1)
	assert.Equal(t, "Renewal", items.Opportunities[0].Name)
	assert.Equal(t, model.OpportunityStageProspecting, items.Opportunities[0].Stage)
	assert.Equal(t, 3, items.Count())
}

func TestMaterialize_Empty(t *testing.T) {
	items := Materialize(Suggestions{}, time.Now())
	assert.Zero(t, items.Count())
}
