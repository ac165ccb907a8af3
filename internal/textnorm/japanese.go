package textnorm

import (
	"bytes"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/japanese"
)

const esc = 0x1B

// iso2022JPMarkers are the designations that follow ESC in ISO-2022-JP:
// JIS X 0208-1983, JIS X 0208-1978, JIS X 0201 Roman and ASCII.
var iso2022JPMarkers = [][]byte{
	[]byte("$B"),
	[]byte("$@"),
	[]byte("(J"),
	[]byte("(B"),
}

// ContainsJapanese reports whether s has at least one Hiragana, Katakana,
// Han or full/half-width form rune.
func ContainsJapanese(s string) bool {
	for _, r := range s {
		if IsJapaneseRune(r) {
			return true
		}
	}
	return false
}

// IsJapaneseRune reports whether r is in a Japanese script range.
func IsJapaneseRune(r rune) bool {
	if r >= 0xFF00 && r <= 0xFFEF {
		return true
	}
	return unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han)
}

// hasISO2022JPMarker reports whether raw carries an ISO-2022-JP escape
// sequence, or a shift-in whose ESC byte was stripped.
func hasISO2022JPMarker(raw []byte) bool {
	for _, m := range iso2022JPMarkers {
		if bytes.Contains(raw, append([]byte{esc}, m...)) {
			return true
		}
	}
	return hasTruncatedShiftIn(raw)
}

// hasTruncatedShiftIn looks for "$B" or "$@" not preceded by ESC. A bare
// "(B" alone is too common in ordinary text to count.
func hasTruncatedShiftIn(raw []byte) bool {
	for i := 0; i+1 < len(raw); i++ {
		if raw[i] != '$' || (raw[i+1] != 'B' && raw[i+1] != '@') {
			continue
		}
		if i == 0 || raw[i-1] != esc {
			return true
		}
	}
	return false
}

// hasEscapeRemnant reports whether decoded text still holds an ISO-2022
// escape sequence, meaning the decoder did not understand the stream.
func hasEscapeRemnant(s string) bool {
	return strings.Contains(s, "\x1b$") || strings.Contains(s, "\x1b(")
}

// repairISO2022JP re-inserts ESC before every marker that lost it and
// closes a stream that ends in a double-byte set.
func repairISO2022JP(raw []byte) []byte {
	out := make([]byte, 0, len(raw)+8)
	for i := 0; i < len(raw); i++ {
		if i+1 < len(raw) && (i == 0 || raw[i-1] != esc) && isMarkerAt(raw, i) {
			out = append(out, esc)
		}
		out = append(out, raw[i])
	}
	if endsShifted(out) {
		out = append(out, esc, '(', 'B')
	}
	return out
}

func isMarkerAt(raw []byte, i int) bool {
	for _, m := range iso2022JPMarkers {
		if bytes.HasPrefix(raw[i:], m) {
			return true
		}
	}
	return false
}

// endsShifted reports whether the last designation in b selects a
// double-byte set.
func endsShifted(b []byte) bool {
	in := max(
		bytes.LastIndex(b, []byte("\x1b$B")),
		bytes.LastIndex(b, []byte("\x1b$@")),
	)
	out := max(
		bytes.LastIndex(b, []byte("\x1b(B")),
		bytes.LastIndex(b, []byte("\x1b(J")),
	)
	return in > out
}

// decodeISO2022JP decodes raw as ISO-2022-JP, repairing stripped escape
// bytes when the stream does not decode cleanly as is. A repaired decode
// must yield kana; ASCII text such as "US$Bn" otherwise turns into
// arbitrary kanji.
func decodeISO2022JP(raw []byte) (Decoded, bool) {
	if bytes.IndexByte(raw, esc) >= 0 {
		if text, ok := strictISO2022JP(raw); ok {
			return Decoded{Text: text, Label: LabelISO2022JP}, true
		}
	}
	repaired := repairISO2022JP(raw)
	if bytes.Equal(repaired, raw) {
		return Decoded{}, false
	}
	if text, ok := strictISO2022JP(repaired); ok && containsKana(text) {
		return Decoded{Text: text, Label: LabelISO2022JP}, true
	}
	return Decoded{}, false
}

func containsKana(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Hiragana, unicode.Katakana) {
			return true
		}
	}
	return false
}

// strictISO2022JP decodes strictly and rejects output that still shows a
// literal shift-in, which means a marker was consumed as text.
func strictISO2022JP(raw []byte) (string, bool) {
	text, ok := decodeStrict(japanese.ISO2022JP, raw)
	if !ok {
		return "", false
	}
	if strings.Contains(text, "$B") || strings.Contains(text, "$@") {
		return "", false
	}
	return text, true
}
