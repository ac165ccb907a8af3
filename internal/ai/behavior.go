package ai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/nhle/leadmail/internal/model"
)

// ErrNoHistory is returned when a lead has no email to analyze.
var ErrNoHistory = errors.New("lead has no email history")

// AnalyzerOptions bounds the prompt of a behavioral analysis.
type AnalyzerOptions struct {
	MaxTokens int

	// DetailedWindow is how many of the newest emails are sent with
	// content; SummaryWindow is how many are sent at all.
	DetailedWindow int
	SummaryWindow  int

	// MaxContentLength truncates each detailed email, in runes.
	MaxContentLength int
}

// BehaviorAnalyzer asks the model for a structured analysis of a lead's
// whole correspondence.
type BehaviorAnalyzer struct {
	completer Completer
	opts      AnalyzerOptions
	now       func() time.Time
}

// NewBehaviorAnalyzer creates an analyzer. Zero options take the
// defaults 4000 tokens, 20 detailed, 100 total and 500 runes.
func NewBehaviorAnalyzer(c Completer, opts AnalyzerOptions) *BehaviorAnalyzer {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4000
	}
	if opts.DetailedWindow <= 0 {
		opts.DetailedWindow = 20
	}
	if opts.SummaryWindow < opts.DetailedWindow {
		opts.SummaryWindow = max(100, opts.DetailedWindow)
	}
	if opts.MaxContentLength <= 0 {
		opts.MaxContentLength = 500
	}
	return &BehaviorAnalyzer{completer: c, opts: opts, now: time.Now}
}

// BehaviorResult is the analysis as returned by the model.
type BehaviorResult struct {
	CommunicationPattern struct {
		Frequency          string `json:"frequency"`
		ResponseTime       string `json:"response_time"`
		PreferredTime      string `json:"preferred_time"`
		CommunicationStyle string `json:"communication_style"`
	} `json:"communication_pattern"`

	EngagementLevel struct {
		Score      flexString `json:"score"`
		Trend      string     `json:"trend"`
		KeyFactors []string   `json:"key_factors"`
	} `json:"engagement_level"`

	Interests struct {
		Primary   []string `json:"primary"`
		Secondary []string `json:"secondary"`
	} `json:"interests"`

	PainPoints struct {
		Identified []string `json:"identified"`
		Potential  []string `json:"potential"`
	} `json:"pain_points"`

	Recommendations struct {
		NextActions []string `json:"next_actions"`
		Timing      string   `json:"timing"`
		Approach    string   `json:"approach"`
	} `json:"recommendations"`
}

// BehaviorSummary is a flattened view of a BehaviorResult for display.
type BehaviorSummary struct {
	Frequency          string
	PreferredTime      string
	ResponseTime       string
	EngagementLevel    string
	Interests          []string
	KeyPoints          []string
	RiskFactors        []string
	RecommendedActions []string
	Summary            string
}

// Summary flattens the result.
func (r *BehaviorResult) Summary() BehaviorSummary {
	var keyPoints []string
	for _, p := range strings.Split(r.CommunicationPattern.CommunicationStyle, ", ") {
		if p = strings.TrimSpace(p); p != "" {
			keyPoints = append(keyPoints, p)
		}
	}
	if r.EngagementLevel.Trend != "" {
		keyPoints = append(keyPoints, "Engagement trend: "+r.EngagementLevel.Trend)
	}

	engagement := ""
	if r.EngagementLevel.Score != "" {
		engagement = string(r.EngagementLevel.Score) + "/10"
	}

	return BehaviorSummary{
		Frequency:          r.CommunicationPattern.Frequency,
		PreferredTime:      r.CommunicationPattern.PreferredTime,
		ResponseTime:       r.CommunicationPattern.ResponseTime,
		EngagementLevel:    engagement,
		Interests:          concat(r.Interests.Primary, r.Interests.Secondary),
		KeyPoints:          keyPoints,
		RiskFactors:        concat(r.PainPoints.Identified, r.PainPoints.Potential),
		RecommendedActions: r.Recommendations.NextActions,
		Summary: fmt.Sprintf("Recommended approach: %s\nBest timing: %s",
			r.Recommendations.Approach, r.Recommendations.Timing),
	}
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("score must be a string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

type historyEntry struct {
	Date       string `json:"date"`
	IsFromLead bool   `json:"is_from_lead"`
	Content    string `json:"content,omitempty"`
}

// Analyze sends the lead's history and decodes the JSON analysis. The
// returned BehaviorAnalysis is ready to be saved.
func (a *BehaviorAnalyzer) Analyze(
	ctx context.Context,
	lead *model.Lead,
	emails []model.StoredEmail,
) (*model.BehaviorAnalysis, *BehaviorResult, error) {
	if len(emails) == 0 {
		return nil, nil, fmt.Errorf("analyzing lead %s: %w", lead.ID, ErrNoHistory)
	}

	prompt, err := a.buildPrompt(lead, emails)
	if err != nil {
		return nil, nil, err
	}

	text, err := a.completer.Complete(ctx, Prompt{User: prompt, MaxTokens: a.opts.MaxTokens})
	if err != nil {
		return nil, nil, err
	}

	raw, ok := extractJSON(text)
	if !ok {
		return nil, nil, newServiceError("analyze", ErrInvalidResponse, errors.New("no JSON object in response"))
	}

	var result BehaviorResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, nil, newServiceError("analyze", ErrInvalidResponse, err)
	}

	stored, err := json.Marshal(&result)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding analysis: %w", err)
	}

	return &model.BehaviorAnalysis{
		LeadID:     lead.ID,
		Result:     string(stored),
		Model:      a.completer.Model(),
		AnalyzedAt: a.now().UTC(),
	}, &result, nil
}

func (a *BehaviorAnalyzer) buildPrompt(lead *model.Lead, emails []model.StoredEmail) (string, error) {
	sorted := make([]model.StoredEmail, len(emails))
	copy(sorted, emails)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ReceivedDate.After(sorted[j].ReceivedDate)
	})

	fromLead := 0
	for _, e := range sorted {
		if strings.EqualFold(e.Sender, lead.Email) {
			fromLead++
		}
	}

	var detailed, summary []historyEntry
	for i, e := range sorted {
		if i >= a.opts.SummaryWindow {
			break
		}
		entry := historyEntry{
			Date:       e.ReceivedDate.UTC().Format(time.RFC3339),
			IsFromLead: strings.EqualFold(e.Sender, lead.Email),
		}
		if i < a.opts.DetailedWindow {
			entry.Content = truncateContent(e.Content, a.opts.MaxContentLength)
			detailed = append(detailed, entry)
		} else {
			summary = append(summary, entry)
		}
	}

	detailedJSON, err := json.MarshalIndent(detailed, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding history: %w", err)
	}
	summaryJSON, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding history: %w", err)
	}

	newest := sorted[0].ReceivedDate.UTC().Format(time.DateOnly)
	oldest := sorted[len(sorted)-1].ReceivedDate.UTC().Format(time.DateOnly)

	var sb strings.Builder
	sb.WriteString("Analyze this lead's communication behavior and answer with JSON only.\n\n")
	sb.WriteString("Lead:\n")
	fmt.Fprintf(&sb, "- Name: %s\n- Email: %s\n- Status: %s\n", lead.Name, lead.Email, lead.Status)
	fmt.Fprintf(&sb, "- Emails: %d (from lead: %d, to lead: %d)\n", len(sorted), fromLead, len(sorted)-fromLead)
	fmt.Fprintf(&sb, "- Period: %s to %s\n\n", oldest, newest)
	fmt.Fprintf(&sb, "Recent emails (%d, newest first):\n%s\n\n", len(detailed), detailedJSON)
	fmt.Fprintf(&sb, "Older emails (%d, metadata only):\n%s\n\n", len(summary), summaryJSON)
	sb.WriteString(behaviorSchema)
	return sb.String(), nil
}

const behaviorSchema = `Respond with this JSON structure:
{
  "communication_pattern": {
    "frequency": "high|medium|low",
    "response_time": "estimated average response time",
    "preferred_time": "time of day the lead is most active",
    "communication_style": "comma separated traits"
  },
  "engagement_level": {
    "score": "1-10",
    "trend": "rising|flat|falling",
    "key_factors": ["2-3 factors"]
  },
  "interests": {
    "primary": ["2-3 interests"],
    "secondary": ["1-2 interests"]
  },
  "pain_points": {
    "identified": ["2-3 issues"],
    "potential": ["1-2 issues"]
  },
  "recommendations": {
    "next_actions": ["2-3 concrete actions"],
    "timing": "when to act next",
    "approach": "how to approach the lead"
  }
}
Consider long-term trends across the whole period and keep suggestions concrete.`

// extractJSON returns the text between the first '{' and the last '}'.
func extractJSON(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func truncateContent(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}

func concat(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// ScoreValue parses the engagement score, or returns 0.
func (r *BehaviorResult) ScoreValue() float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(r.EngagementLevel.Score)), 64)
	if err != nil {
		return 0
	}
	return v
}
