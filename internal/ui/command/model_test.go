package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line    string
		want    Command
		wantErr string
	}{
		{line: "refresh", want: Command{Name: Refresh, Args: []string{}}},
		{line: "  R  ", want: Command{Name: Refresh, Args: []string{}}},
		{line: "poll Sales", want: Command{Name: Poll, Args: []string{"Sales"}}},
		{line: "q", want: Command{Name: Quit, Args: []string{}}},
		{line: "read", want: Command{Name: Read, Args: []string{}}},
		{line: "", wantErr: "empty command"},
		{line: "poll", wantErr: "usage: poll"},
		{line: "poll a b", wantErr: "usage: poll"},
		{line: "delete", wantErr: `unknown command "delete"`},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Parse(tt.line)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
