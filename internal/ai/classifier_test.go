package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedCompleter struct {
	response string
	err      error
	prompts  []Prompt
}

func (s *scriptedCompleter) Complete(_ context.Context, p Prompt) (string, error) {
	s.prompts = append(s.prompts, p)
	return s.response, s.err
}

func (s *scriptedCompleter) Model() string { return "scripted" }

func TestClassifier_Classify(t *testing.T) {
	comp := &scriptedCompleter{response: "Tasks:\n1. Send the brochure"}
	c := NewClassifier(comp, 1000, zerolog.Nop())

	got, err := c.Classify(context.Background(), "Brochure request", "Could you send the brochure?")
	require.NoError(t, err)

	s, ok := got.(Suggestions)
	require.True(t, ok)
	assert.Equal(t, []string{"Send the brochure"}, s.Tasks)

	require.Len(t, comp.prompts, 1)
	assert.Contains(t, comp.prompts[0].User, "Subject: Brochure request")
	assert.Contains(t, comp.prompts[0].User, "Could you send the brochure?")
	assert.Equal(t, 1000, comp.prompts[0].MaxTokens)
	assert.Equal(t, "scripted", c.Model())
}

func TestClassifier_UnparseableIsNotAnError(t *testing.T) {
	c := NewClassifier(&scriptedCompleter{response: "Sorry, I can't help."}, 0, zerolog.Nop())
	got, err := c.Classify(context.Background(), "s", "c")
	require.NoError(t, err)
	assert.IsType(t, ParseError{}, got)
}

func TestClassifier_Errors(t *testing.T) {
	netErr := newServiceError("complete", ErrAPICallFailed, errors.New("connection reset"))
	c := NewClassifier(&scriptedCompleter{err: netErr}, 0, zerolog.Nop())
	_, err := c.Classify(context.Background(), "s", "c")
	assert.ErrorIs(t, err, ErrAPICallFailed)

	var nilClassifier *Classifier
	_, err = nilClassifier.Classify(context.Background(), "s", "c")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
