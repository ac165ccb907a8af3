package textnorm

import (
	"strings"
	"unicode"
)

var lineBreaks = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"\u2028", "\n",
	"\u2029", "\n\n",
	"\u0085", "\n",
)

// zeroWidth lists invisible runes that survive decoding and confuse
// matching downstream.
var zeroWidth = map[rune]bool{
	'\u200B': true, // zero width space
	'\u200C': true, // zero width non-joiner
	'\u200D': true, // zero width joiner
	'\u2060': true, // word joiner
	'\uFEFF': true, // byte order mark
	'\u180E': true, // mongolian vowel separator
}

// Clean normalizes decoded mail text: line breaks become "\n", exotic
// spaces become ' ', control and zero-width runes are removed, each line
// is trimmed and runs of three or more blank lines collapse to one.
func Clean(text string) string {
	text = lineBreaks.Replace(text)
	text = strings.Map(cleanRune, text)

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	flush := func() {
		if blank >= 3 {
			blank = 1
		}
		for ; blank > 0; blank-- {
			out = append(out, "")
		}
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			blank++
			continue
		}
		flush()
		out = append(out, line)
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}

func cleanRune(r rune) rune {
	switch {
	case r == '\n' || r == ' ':
		return r
	case r == '\t' || r == '\u00A0' || r == '\u3000':
		return ' '
	case zeroWidth[r]:
		return -1
	case unicode.Is(unicode.Zs, r):
		return ' '
	case unicode.Is(unicode.Cc, r), unicode.Is(unicode.Cf, r),
		unicode.Is(unicode.Zl, r), unicode.Is(unicode.Zp, r):
		return -1
	}
	return r
}
