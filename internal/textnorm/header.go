package textnorm

import (
	"io"
	"mime"
	"strings"
)

// DecodeHeader decodes a header value. RFC 2047 encoded words go through
// the declared charset (with ISO-2022-JP repair); raw 8-bit or escaped
// values go through Normalize. Runs of whitespace are collapsed.
func DecodeHeader(value string) string {
	if value == "" {
		return ""
	}

	decoded := value
	worded := false
	if strings.Contains(value, "=?") {
		dec := &mime.WordDecoder{CharsetReader: labeledCharsetReader}
		if s, err := dec.DecodeHeader(value); err == nil {
			decoded = s
			worded = s != value
		}
	}

	if !worded && (!isASCIIString(decoded) || hasISO2022JPMarker([]byte(decoded))) {
		decoded = Normalize([]byte(decoded)).Text
	}

	return strings.Join(strings.Fields(stripControls(decoded)), " ")
}

// labeledCharsetReader adapts DecodeLabeled to mime.WordDecoder.
func labeledCharsetReader(label string, input io.Reader) (io.Reader, error) {
	raw, err := io.ReadAll(input)
	if err != nil {
		return nil, err
	}
	return strings.NewReader(DecodeLabeled(raw, label).Text), nil
}

// stripControls drops C0/C1 control runes and ESC remnants from a
// single-line value.
func stripControls(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return ' '
		}
		if r < 0x20 || (r >= 0x7F && r < 0xA0) {
			return -1
		}
		return r
	}, s)
}
