package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseSuggestions(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		opportunities []string
		schedules     []string
		tasks         []string
	}{
		{
			name: "plain layout",
			text: "Opportunities:\n1. Upsell premium plan\n2. Annual contract\n\n" +
				"Schedules:\n1. Demo on Thursday\n\nTasks:\n1. Send pricing sheet\n2. Follow up next week\n",
			opportunities: []string{"Upsell premium plan", "Annual contract"},
			schedules:     []string{"Demo on Thursday"},
			tasks:         []string{"Send pricing sheet", "Follow up next week"},
		},
		{
			name: "markdown decoration and bullets",
			text: "Here is my analysis.\n\n## **Opportunities:**\n- **Bulk order** of 500 units\n\n" +
				"**Schedules**\n1) Call on Monday\n\n### Tasks\n* Prepare quote\n",
			opportunities: []string{"Bulk order of 500 units"},
			schedules:     []string{"Call on Monday"},
			tasks:         []string{"Prepare quote"},
		},
		{
			name:          "japanese headers and fullwidth numbers",
			text:          "機会：\n１．追加発注の可能性\n\nスケジュール:\n1. 来週火曜に打ち合わせ\n\nタスク：\n・見積書を送付\n",
			opportunities: []string{"追加発注の可能性"},
			schedules:     []string{"来週火曜に打ち合わせ"},
			tasks:         []string{"見積書を送付"},
		},
		{
			name:          "empty template sections",
			text:          "Opportunities:\n1.\n2.\n\nSchedules:\n1. None\n\nTasks:\n1. Reply to customer\n2.\n",
			opportunities: []string{},
			schedules:     []string{},
			tasks:         []string{"Reply to customer"},
		},
		{
			name:          "items before any header are ignored",
			text:          "1. stray\nTasks: see below\n1. Real task\n",
			opportunities: []string{},
			schedules:     []string{},
			tasks:         []string{"Real task"},
		},
		{
			name:          "partial response",
			text:          "Opportunities:\n1. Renewal\n\nSchedules:\n",
			opportunities: []string{"Renewal"},
			schedules:     []string{},
			tasks:         []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSuggestions(tt.text)
			s, ok := got.(Suggestions)
			require.True(t, ok, "expected Suggestions, got %T", got)
			assert.Equal(t, tt.opportunities, s.Opportunities)
			assert.Equal(t, tt.schedules, s.Schedules)
			assert.Equal(t, tt.tasks, s.Tasks)
			assert.Equal(t, tt.text, s.Raw)
		})
	}
}

func TestParseSuggestions_NoHeaders(t *testing.T) {
	text := "I could not find anything actionable in this email.\n1. Nothing"
	got := ParseSuggestions(text)
	pe, ok := got.(ParseError)
	require.True(t, ok)
	assert.Equal(t, text, pe.Raw)
}

func TestParseSuggestions_BulletWithColonStaysAnItem(t *testing.T) {
	s, ok := ParseSuggestions("Tasks:\n* Task: call the client\n").(Suggestions)
	require.True(t, ok)
	assert.Equal(t, []string{"Task: call the client"}, s.Tasks)
}

func TestParseSuggestions_NeverPanics(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.String().Draw(t, "text")
		switch c := ParseSuggestions(text).(type) {
		case Suggestions:
			if c.Raw != text {
				t.Fatalf("raw not preserved")
			}
		case ParseError:
			if c.Raw != text {
				t.Fatalf("raw not preserved")
			}
		default:
			t.Fatalf("unexpected classification %T", c)
		}
	})
}
