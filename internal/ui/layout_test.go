package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeader_Status(t *testing.T) {
	tests := []struct {
		name   string
		header Header
		want   string
	}{
		{name: "no accounts", header: Header{}, want: "no accounts"},
		{name: "idle", header: Header{Accounts: 2}, want: "idle"},
		{name: "polling wins", header: Header{Accounts: 2, Polling: 1, Failing: []string{"Support"}}, want: "polling (1)"},
		{name: "failing", header: Header{Accounts: 3, Failing: []string{"Sales", "Support"}}, want: "failing: Sales, Support"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.header.Status())
		})
	}
}

func TestHeader_Label(t *testing.T) {
	assert.Equal(t, "leadmail", Header{Title: "leadmail"}.Label())
	assert.Equal(t, "leadmail [3 new]", Header{Title: "leadmail", Unread: 3}.Label())
}

func TestLayout_Render(t *testing.T) {
	l := NewLayout(60, 10)
	assert.Equal(t, 8, l.ContentHeight())

	out := l.Render(
		Header{Title: "leadmail", Unread: 1, Accounts: 1},
		"content",
		StatusBar{Hints: "q quit"},
	)
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "leadmail [1 new]")
	assert.Contains(t, lines[0], "idle")
	assert.Contains(t, lines[2], "q quit")

	flashed := l.RenderStatusBar(StatusBar{Hints: "q quit", Flash: "polling all accounts"})
	assert.Contains(t, flashed, "polling all accounts")
	assert.NotContains(t, flashed, "q quit")
}
