package ai

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// maxPromptContent bounds the email body sent for classification.
const maxPromptContent = 8000

// Classification is the outcome of classifying one email: either
// Suggestions or ParseError.
type Classification interface {
	isClassification()
}

// Suggestions are the items extracted from a well-formed response.
// Sections the model left empty are empty slices.
type Suggestions struct {
	Opportunities []string
	Schedules     []string
	Tasks         []string

	// Raw is the model's full response.
	Raw string
}

// ParseError is a response without any recognisable section.
type ParseError struct {
	Raw string
}

func (Suggestions) isClassification() {}
func (ParseError) isClassification()  {}

// Count returns the number of suggested items.
func (s Suggestions) Count() int {
	return len(s.Opportunities) + len(s.Schedules) + len(s.Tasks)
}

// Classifier extracts opportunity, schedule and task suggestions from
// an email.
type Classifier struct {
	completer Completer
	maxTokens int
	logger    zerolog.Logger
}

// NewClassifier creates a Classifier.
func NewClassifier(c Completer, maxTokens int, logger zerolog.Logger) *Classifier {
	return &Classifier{completer: c, maxTokens: maxTokens, logger: logger}
}

// Model names the model behind the classifier.
func (c *Classifier) Model() string {
	if c == nil || c.completer == nil {
		return ""
	}
	return c.completer.Model()
}

// Classify issues one completion for the email and parses the answer.
// A response in an unexpected layout is a ParseError, not an error;
// errors are *ServiceError.
func (c *Classifier) Classify(ctx context.Context, subject, content string) (Classification, error) {
	if c == nil || c.completer == nil {
		return nil, newServiceError("classify", ErrNotConfigured, nil)
	}

	text, err := c.completer.Complete(ctx, Prompt{
		System:    classifySystemPrompt,
		User:      buildClassifyPrompt(subject, content),
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return nil, err
	}

	result := ParseSuggestions(text)
	if _, ok := result.(ParseError); ok {
		c.logger.Warn().
			Str("model", c.Model()).
			Int("response_len", len(text)).
			Msg("classification response had no recognised sections")
	}
	return result, nil
}

const classifySystemPrompt = "You are an assistant that analyzes business emails " +
	"and suggests sales opportunities, schedules and tasks."

func buildClassifyPrompt(subject, content string) string {
	if utf8.RuneCountInString(content) > maxPromptContent {
		content = string([]rune(content)[:maxPromptContent]) + "..."
	}

	var sb strings.Builder
	sb.WriteString("Analyze the following email and suggest opportunities, schedules and tasks.\n\n")
	fmt.Fprintf(&sb, "Subject: %s\n\nContent: %s\n\n", subject, content)
	sb.WriteString("Answer in exactly this format, leaving a section empty when nothing applies:\n")
	sb.WriteString("Opportunities:\n1.\n2.\n\nSchedules:\n1.\n2.\n\nTasks:\n1.\n2.\n")
	return sb.String()
}
