package textnorm

import (
	"regexp"
	"strings"
)

// attributionPatterns match the line that introduces a quoted reply. The
// line and everything after it are dropped.
var attributionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^on\s.+\swrote:?$`),
	regexp.MustCompile(`(?i)^.+<[^<>@\s]+@[^<>\s]+>\s*wrote:?$`),
	regexp.MustCompile(`^.*\d{4}年\s*\d{1,2}月\s*\d{1,2}日.*のメッセージ[:：]?$`),
	regexp.MustCompile(`^.+さんは書きました[:：]?$`),
	regexp.MustCompile(`(?i)^-{2,}\s*original message\s*-{2,}$`),
	regexp.MustCompile(`^-{2,}\s*元のメッセージ\s*-{2,}$`),
}

// StripQuotes removes quoted reply content: lines starting with '>' and
// everything from a reply attribution or "Original Message" separator
// onward.
func StripQuotes(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isAttribution(trimmed) {
			break
		}
		if strings.HasPrefix(trimmed, ">") || strings.HasPrefix(trimmed, "＞") {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func isAttribution(line string) bool {
	if line == "" {
		return false
	}
	for _, re := range attributionPatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
