package ai

import (
	"time"
	"unicode/utf8"

	"github.com/nhle/leadmail/internal/model"
)

const (
	maxTitleLength = 100
	taskDueAfter   = 3 * 24 * time.Hour
	scheduleAfter  = 24 * time.Hour
	scheduleLength = time.Hour
)

// Materialize turns suggestions into AI-generated items dated relative
// to the email's received time. Ids and ownership are filled in when
// the items are stored.
func Materialize(s Suggestions, received time.Time) model.AIItems {
	received = received.UTC()
	var items model.AIItems

	for _, text := range s.Tasks {
		due := received.Add(taskDueAfter)
		items.Tasks = append(items.Tasks, model.Task{
			Title:         truncateTitle(text),
			Description:   text,
			DueDate:       &due,
			Status:        model.TaskStatusPending,
			IsAIGenerated: true,
		})
	}

	for _, text := range s.Schedules {
		start := received.Add(scheduleAfter)
		items.Schedules = append(items.Schedules, model.Schedule{
			Title:         truncateTitle(text),
			Description:   text,
			StartTime:     start,
			EndTime:       start.Add(scheduleLength),
			Status:        model.ScheduleStatusScheduled,
			IsAIGenerated: true,
		})
	}

	for _, text := range s.Opportunities {
		items.Opportunities = append(items.Opportunities, model.Opportunity{
			Name:          truncateTitle(text),
			Stage:         model.OpportunityStageProspecting,
			IsAIGenerated: true,
		})
	}

	return items
}

func truncateTitle(s string) string {
	if utf8.RuneCountInString(s) <= maxTitleLength {
		return s
	}
	return string([]rune(s)[:maxTitleLength])
}
