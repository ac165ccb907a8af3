// Package address extracts a display name and mailbox address from a
// decoded From header value, tolerating the malformed forms seen in
// real mail.
package address

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// UnknownSender is returned when no usable name can be derived.
const UnknownSender = "Unknown Sender"

var (
	bracketed   = regexp.MustCompile(`<([^<>]*)>`)
	bareEmail   = regexp.MustCompile(`[\w.+-]+@[\w.-]+\.\w+`)
	validEmail  = regexp.MustCompile(`^[\w.+-]+@[\w.-]+\.\w+$`)
	quotedName  = regexp.MustCompile(`^\s*"([^"]*)"?`)
	nameJunk    = regexp.MustCompile(`["'()<>]`)
	localSplits = regexp.MustCompile(`[._-]+`)
)

// genericDomainLabels never name an organisation. The top-level label
// is dropped before these are consulted.
var genericDomainLabels = map[string]bool{
	"com": true, "co": true, "ac": true, "ne": true, "or": true, "go": true,
	"jp": true, "net": true, "org": true, "edu": true, "gov": true,
	"www": true, "mail": true,
	"gmail": true, "yahoo": true, "outlook": true, "hotmail": true,
}

var titleCaser = cases.Title(language.Und)

// Parse returns the best-effort display name and address of a From
// header value.
func Parse(from string) (name, addr string) {
	return ExtractName(from), ExtractAddress(from)
}

// ExtractAddress prefers a bracketed address, then the first bare
// address in the value, then the trimmed value itself.
func ExtractAddress(from string) string {
	if m := bracketed.FindStringSubmatch(from); m != nil {
		if a := strings.TrimSpace(m[1]); a != "" {
			return a
		}
	}
	if m := bareEmail.FindString(from); m != "" {
		return m
	}
	return strings.TrimSpace(from)
}

// ExtractName derives a display name, trying in order: a quoted name, the
// bare text before the address, the organisation in the domain, the
// humanised local part and the raw local part. Each candidate must be
// longer than one character.
func ExtractName(from string) string {
	candidates := []func(string) string{
		fromQuoted,
		fromPrefix,
		fromDomain,
		fromLocalPart,
		rawLocalPart,
	}
	for _, c := range candidates {
		if n := c(from); utf8.RuneCountInString(n) > 1 {
			return n
		}
	}
	return UnknownSender
}

// IsValid reports whether addr looks like local@domain.tld.
func IsValid(addr string) bool {
	return validEmail.MatchString(addr)
}

// Domain returns the lower-cased part after '@', or "".
func Domain(addr string) string {
	i := strings.LastIndexByte(addr, '@')
	if i < 0 {
		return ""
	}
	return strings.ToLower(addr[i+1:])
}

// LocalPart returns the part before '@', or "".
func LocalPart(addr string) string {
	i := strings.LastIndexByte(addr, '@')
	if i <= 0 {
		return ""
	}
	return addr[:i]
}

// CleanName strips quotes, brackets and control runes and collapses
// whitespace.
func CleanName(name string) string {
	name = nameJunk.ReplaceAllString(name, "")
	name = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if unicode.In(r, unicode.Cc, unicode.Cf, unicode.Co, unicode.Cs) {
			return -1
		}
		return r
	}, name)
	return strings.Join(strings.Fields(name), " ")
}

func fromQuoted(from string) string {
	m := quotedName.FindStringSubmatch(from)
	if m == nil {
		return ""
	}
	return CleanName(m[1])
}

func fromPrefix(from string) string {
	prefix := from
	if i := strings.IndexByte(from, '<'); i >= 0 {
		prefix = from[:i]
	}
	prefix = bareEmail.ReplaceAllString(prefix, "")
	return CleanName(prefix)
}

func fromDomain(from string) string {
	addr := ExtractAddress(from)
	if !IsValid(addr) {
		return ""
	}
	labels := strings.Split(Domain(addr), ".")
	for i := len(labels) - 2; i >= 0; i-- {
		if labels[i] == "" || genericDomainLabels[labels[i]] {
			continue
		}
		return humanize(labels[i])
	}
	return ""
}

func fromLocalPart(from string) string {
	local := LocalPart(ExtractAddress(from))
	if local == "" {
		return ""
	}
	return humanize(local)
}

func rawLocalPart(from string) string {
	return LocalPart(ExtractAddress(from))
}

func humanize(s string) string {
	s = strings.TrimSpace(localSplits.ReplaceAllString(s, " "))
	if s == "" {
		return ""
	}
	return titleCaser.String(s)
}
