// Package textnorm turns raw mail bytes of unknown or mislabelled charset
// into clean UTF-8 text. Japanese legacy encodings (ISO-2022-JP, CP932,
// EUC-JP) are handled explicitly, including ISO-2022-JP streams whose
// escape bytes were lost in transit.
package textnorm

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
)

// Labels reported in Decoded.Label.
const (
	LabelText      = "text"
	LabelUTF8      = "utf-8"
	LabelUTF16LE   = "utf-16le"
	LabelUTF16BE   = "utf-16be"
	LabelISO2022JP = "iso-2022-jp"
	LabelCP932     = "cp932"
	LabelEUCJP     = "euc-jp"
	LabelASCII     = "ascii"
	LabelFailed    = "failed"

	replacedSuffix = " (with replacements)"
)

// detectorThreshold is the chardet confidence (0-100) a guess must exceed
// before it is trusted.
const detectorThreshold = 80

// Decoded is the result of normalizing raw content.
type Decoded struct {
	Text string

	// Label names the charset actually used, or LabelFailed when the text
	// is a lossy UTF-8 rendering.
	Label string
}

// Lossy reports whether the text may contain replacement characters.
func (d Decoded) Lossy() bool {
	return d.Label == LabelFailed || strings.HasSuffix(d.Label, replacedSuffix)
}

// NormalizeText returns already decoded text unchanged.
func NormalizeText(s string) Decoded {
	return Decoded{Text: s, Label: LabelText}
}

// Normalize decodes raw bytes of unknown charset. It never fails: when no
// decoder produces acceptable text the bytes are rendered as lossy UTF-8
// and labelled LabelFailed.
func Normalize(raw []byte) Decoded {
	if len(raw) == 0 {
		return Decoded{Text: "", Label: LabelASCII}
	}

	if d, ok := decodeBOM(raw); ok {
		return d
	}

	if d, ok := decodeDetected(raw); ok {
		return d
	}

	if hasISO2022JPMarker(raw) {
		if d, ok := decodeISO2022JP(raw); ok {
			return d
		}
	}

	for _, c := range fallbacks {
		text, ok := c.decode(raw)
		if !ok || !c.accept(text) {
			continue
		}
		label := c.label
		if label == LabelISO2022JP && bytes.IndexByte(raw, esc) < 0 {
			// Plain 7-bit input passes through the ISO-2022-JP decoder
			// untouched.
			label = LabelASCII
		}
		return Decoded{Text: text, Label: label}
	}

	return Decoded{Text: strings.ToValidUTF8(string(raw), "\uFFFD"), Label: LabelFailed}
}

// DecodeLabeled decodes raw bytes whose charset was declared by the
// sender (a MIME charset parameter). The declared charset is tried
// strictly first; a missing, unknown or wrong declaration falls back to
// Normalize.
func DecodeLabeled(raw []byte, declared string) Decoded {
	label := canonicalLabel(declared)
	switch label {
	case "":
	case LabelUTF8:
		if utf8.Valid(raw) && !hasEscapeRemnant(string(raw)) {
			return Decoded{Text: string(raw), Label: LabelUTF8}
		}
	case LabelASCII:
		if isASCII(raw) && !hasEscapeRemnant(string(raw)) {
			return Decoded{Text: string(raw), Label: LabelASCII}
		}
	case LabelISO2022JP:
		if d, ok := decodeISO2022JP(raw); ok {
			return d
		}
	default:
		if enc := lookupEncoding(label); enc != nil {
			if text, ok := decodeStrict(enc, raw); ok {
				return Decoded{Text: text, Label: label}
			}
		}
	}
	return Normalize(raw)
}

// decodeBOM honours a leading byte order mark.
func decodeBOM(raw []byte) (Decoded, bool) {
	switch {
	case bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}):
		return Normalize(raw[3:]), true
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE}):
		enc := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)
		if text, ok := decodeStrict(enc, raw); ok {
			return Decoded{Text: text, Label: LabelUTF16LE}, true
		}
	case bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		enc := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)
		if text, ok := decodeStrict(enc, raw); ok {
			return Decoded{Text: text, Label: LabelUTF16BE}, true
		}
	}
	return Decoded{}, false
}

// decodeDetected trusts a confident statistical guess. Plain 7-bit input
// and valid UTF-8 only accept a UTF-8 or ISO-2022-JP guess: any
// single-byte charset would also "succeed" on them.
func decodeDetected(raw []byte) (Decoded, bool) {
	res, err := chardet.NewTextDetector().DetectBest(raw)
	if err != nil || res == nil || res.Confidence <= detectorThreshold {
		return Decoded{}, false
	}

	label := canonicalLabel(res.Charset)
	if label == LabelUTF8 {
		if utf8.Valid(raw) && !hasEscapeRemnant(string(raw)) {
			return Decoded{Text: string(raw), Label: LabelUTF8}, true
		}
		return Decoded{}, false
	}
	if label == LabelISO2022JP {
		return decodeISO2022JP(raw)
	}
	if isASCII(raw) || utf8.Valid(raw) {
		return Decoded{}, false
	}

	enc := lookupEncoding(label)
	if enc == nil {
		return Decoded{}, false
	}
	text, ok := decodeStrict(enc, raw)
	if !ok {
		return Decoded{}, false
	}
	return Decoded{Text: text, Label: label}, true
}

// decodeStrict decodes raw with enc and reports failure when the decoder
// had to substitute any byte or left an escape sequence behind.
func decodeStrict(enc encoding.Encoding, raw []byte) (string, bool) {
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", false
	}
	text := string(out)
	if strings.ContainsRune(text, utf8.RuneError) || hasEscapeRemnant(text) {
		return "", false
	}
	return text, true
}

// decodeReplace decodes raw with enc, keeping replacement characters.
func decodeReplace(enc encoding.Encoding, raw []byte) (string, bool) {
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", false
	}
	text := string(out)
	if hasEscapeRemnant(text) {
		return "", false
	}
	return text, true
}

type candidate struct {
	label  string
	decode func([]byte) (string, bool)
	accept func(string) bool
}

func acceptJapaneseOrASCII(s string) bool {
	return ContainsJapanese(s) || isASCIIString(s)
}

func acceptAny(string) bool { return true }

// fallbacks is tried in order when neither detection nor ISO-2022-JP
// markers settle the charset. Valid UTF-8 is accepted as is: short
// Latin text like "café" would otherwise decode as CP932 half-width
// katakana.
var fallbacks = []candidate{
	{
		label:  LabelISO2022JP,
		decode: strictISO2022JP,
		accept: acceptJapaneseOrASCII,
	},
	{
		label: LabelUTF8,
		decode: func(raw []byte) (string, bool) {
			if !utf8.Valid(raw) || hasEscapeRemnant(string(raw)) {
				return "", false
			}
			return string(raw), true
		},
		accept: acceptAny,
	},
	{
		label:  LabelCP932,
		decode: func(raw []byte) (string, bool) { return decodeStrict(japanese.ShiftJIS, raw) },
		accept: acceptJapaneseOrASCII,
	},
	{
		label:  LabelEUCJP,
		decode: func(raw []byte) (string, bool) { return decodeStrict(japanese.EUCJP, raw) },
		accept: acceptJapaneseOrASCII,
	},
	{
		label: LabelASCII,
		decode: func(raw []byte) (string, bool) {
			if !isASCII(raw) || hasEscapeRemnant(string(raw)) {
				return "", false
			}
			return string(raw), true
		},
		accept: acceptAny,
	},
	{
		label: LabelUTF8 + replacedSuffix,
		decode: func(raw []byte) (string, bool) {
			text := strings.ToValidUTF8(string(raw), "\uFFFD")
			return text, !hasEscapeRemnant(text)
		},
		accept: acceptJapaneseOrASCII,
	},
	{
		label:  LabelCP932 + replacedSuffix,
		decode: func(raw []byte) (string, bool) { return decodeReplace(japanese.ShiftJIS, raw) },
		accept: acceptJapaneseOrASCII,
	},
	{
		label:  LabelISO2022JP + replacedSuffix,
		decode: func(raw []byte) (string, bool) { return decodeReplace(japanese.ISO2022JP, raw) },
		accept: acceptJapaneseOrASCII,
	},
}

// canonicalLabel maps charset names from MIME headers and the detector
// onto the labels used here. Unknown names are returned lower-cased.
func canonicalLabel(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.Trim(n, `"'`)
	switch strings.ReplaceAll(n, "_", "-") {
	case "":
		return ""
	case "utf-8", "utf8", "u8", "unicode-1-1-utf-8":
		return LabelUTF8
	case "us-ascii", "ascii", "us", "ansi-x3.4-1968":
		return LabelASCII
	case "shift-jis", "sjis", "x-sjis", "shift", "cp932", "ms932", "windows-31j", "csshiftjis", "ms-kanji":
		return LabelCP932
	case "euc-jp", "eucjp", "x-euc-jp", "euc", "x-euc", "cseucpkdfmtjapanese":
		return LabelEUCJP
	case "iso-2022-jp", "iso2022jp", "iso2022-jp", "jis", "csiso2022jp":
		return LabelISO2022JP
	case "utf-16le":
		return LabelUTF16LE
	case "utf-16be":
		return LabelUTF16BE
	}
	return n
}

// lookupEncoding resolves a canonical label to a decoder.
func lookupEncoding(label string) encoding.Encoding {
	switch label {
	case LabelCP932:
		return japanese.ShiftJIS
	case LabelEUCJP:
		return japanese.EUCJP
	case LabelISO2022JP:
		return japanese.ISO2022JP
	case LabelUTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case LabelUTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	}
	enc, _ := charset.Lookup(label)
	return enc
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func isASCIIString(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
