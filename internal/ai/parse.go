package ai

import (
	"regexp"
	"strings"
)

type section int

const (
	sectionNone section = iota
	sectionOpportunities
	sectionSchedules
	sectionTasks
)

var (
	// headerPattern matches a section header with optional markdown
	// decoration, e.g. "## **Tasks:**" or "タスク：". Text after the
	// colon is ignored.
	headerPattern = regexp.MustCompile(
		`^(?:#+\s*)?[*_]*(?i:(opportunities|opportunity|schedules|schedule|tasks|task)|(機会|商談機会|スケジュール|予定|タスク))[\s*_]*(?:[:：].*)?$`)

	numberedItem = regexp.MustCompile(`^\s*(?:\d+|[０-９]+)\s*[.)．）、]\s*(.*)$`)
	bulletItem   = regexp.MustCompile(`^\s*(?:[-*•]\s+|・\s*)(.*)$`)
)

// emptyItems are placeholders models write for an empty section.
var emptyItems = map[string]bool{
	"none":   true,
	"none.":  true,
	"(none)": true,
	"n/a":    true,
	"-":      true,
	"なし":   true,
	"特になし": true,
	"該当なし": true,
}

// ParseSuggestions reads a classifier response laid out as numbered
// items under "Opportunities:", "Schedules:" and "Tasks:" headers. A
// response without any header is a ParseError; missing or malformed
// sections parse as empty.
func ParseSuggestions(text string) Classification {
	s := Suggestions{
		Opportunities: []string{},
		Schedules:     []string{},
		Tasks:         []string{},
		Raw:           text,
	}

	current := sectionNone
	found := false

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if sec, ok := parseHeader(line); ok {
			current = sec
			found = true
			continue
		}
		if current == sectionNone {
			continue
		}

		item, ok := parseItem(line)
		if !ok {
			continue
		}

		switch current {
		case sectionOpportunities:
			s.Opportunities = append(s.Opportunities, item)
		case sectionSchedules:
			s.Schedules = append(s.Schedules, item)
		case sectionTasks:
			s.Tasks = append(s.Tasks, item)
		}
	}

	if !found {
		return ParseError{Raw: text}
	}
	return s
}

func parseHeader(line string) (section, bool) {
	m := headerPattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return sectionNone, false
	}
	name := strings.ToLower(m[1] + m[2])
	switch {
	case strings.HasPrefix(name, "opportunit"), name == "機会", name == "商談機会":
		return sectionOpportunities, true
	case strings.HasPrefix(name, "schedule"), name == "スケジュール", name == "予定":
		return sectionSchedules, true
	default:
		return sectionTasks, true
	}
}

func parseItem(line string) (string, bool) {
	var body string
	if m := numberedItem.FindStringSubmatch(line); m != nil {
		body = m[1]
	} else if m := bulletItem.FindStringSubmatch(line); m != nil {
		body = m[1]
	} else {
		return "", false
	}

	body = strings.TrimSpace(strings.ReplaceAll(body, "**", ""))
	if body == "" || emptyItems[strings.ToLower(body)] {
		return "", false
	}
	return body, true
}
