package email

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime/quotedprintable"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"

	"github.com/nhle/leadmail/internal/address"
	"github.com/nhle/leadmail/internal/model"
	"github.com/nhle/leadmail/internal/textnorm"
)

// EmptyBody replaces a body that is empty after cleaning.
const EmptyBody = "（メール内容が空です）"

const (
	maxPartDepth = 10

	// maxFutureSkew and maxAge bound a plausible Date header.
	maxFutureSkew = 24 * time.Hour
	maxAgeYears   = 5
)

// dateLayouts are tried when the Date header is not RFC 5322.
var dateLayouts = []string{
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05-0700",
	"2006-01-02 15:04:05.999999-0700",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02",
}

// bodyParts collects the first text/plain and text/html leaf parts.
type bodyParts struct {
	plain, html               []byte
	plainCharset, htmlCharset string
	hasPlain, hasHTML         bool
}

// ParseMessage decodes a fetched message into its canonical form. now is
// used to sanity-check the Date header.
func ParseMessage(raw *model.RawMessage, now time.Time) (*model.NormalizedEmail, error) {
	br := bufio.NewReader(bytes.NewReader(raw.Raw))
	header, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("parsing header of UID %d: %w", raw.UID, err)
	}

	mh := mail.Header{Header: message.Header{Header: header}}

	from := textnorm.DecodeHeader(header.Get("From"))
	name, addr := address.Parse(from)

	e := &model.NormalizedEmail{
		SenderAddress:     strings.ToLower(addr),
		SenderDisplayName: name,
		Subject:           textnorm.DecodeHeader(header.Get("Subject")),
		ReceivedAt:        parseDate(header.Get("Date"), raw.InternalDate, now),
		Recipients:        countRecipients(mh),
		Headers:           collectHeaders(header),
	}

	if id, err := mh.MessageID(); err == nil {
		e.MessageID = strings.TrimSpace(id)
	}
	if e.MessageID == "" {
		e.MessageID = strings.Trim(strings.TrimSpace(header.Get("Message-Id")), "<>")
	}

	var parts bodyParts
	walkParts(header, br, 0, &parts)

	var html textnorm.Decoded
	if parts.hasHTML {
		html = textnorm.DecodeLabeled(parts.html, parts.htmlCharset)
		e.HTML = html.Text
	}

	var text string
	switch {
	case parts.hasPlain:
		d := textnorm.DecodeLabeled(parts.plain, parts.plainCharset)
		text, e.DetectedEncoding = d.Text, d.Label
	case parts.hasHTML:
		text, e.DetectedEncoding = textnorm.HTMLToText(html.Text), html.Label
	default:
		e.DetectedEncoding = textnorm.LabelASCII
	}

	e.BodyText = textnorm.Clean(text)
	if e.BodyText == "" {
		e.BodyText = EmptyBody
	}

	return e, nil
}

// walkParts descends multipart bodies, keeping the first inline
// text/plain and text/html leaves. Malformed parts end the walk of their
// container without failing the message.
func walkParts(h textproto.Header, body io.Reader, depth int, parts *bodyParts) {
	if depth > maxPartDepth {
		return
	}

	mh := message.Header{Header: h}
	mediaType, params, err := mh.ContentType()
	if err != nil || mediaType == "" {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return
		}
		mr := textproto.NewMultipartReader(body, boundary)
		for {
			p, err := mr.NextPart()
			if err != nil {
				return
			}
			walkParts(p.Header, p, depth+1, parts)
		}
	}

	if isAttachment(h) {
		return
	}

	switch mediaType {
	case "text/plain":
		if parts.hasPlain {
			return
		}
		parts.plain = decodeTransfer(h.Get("Content-Transfer-Encoding"), body)
		parts.plainCharset = params["charset"]
		parts.hasPlain = true
	case "text/html":
		if parts.hasHTML {
			return
		}
		parts.html = decodeTransfer(h.Get("Content-Transfer-Encoding"), body)
		parts.htmlCharset = params["charset"]
		parts.hasHTML = true
	}
}

func isAttachment(h textproto.Header) bool {
	mh := message.Header{Header: h}
	disp, _, err := mh.ContentDisposition()
	return err == nil && strings.EqualFold(disp, "attachment")
}

// decodeTransfer undoes the Content-Transfer-Encoding. Undecodable
// content is returned as read so the normalizer can still salvage it.
func decodeTransfer(encoding string, body io.Reader) []byte {
	raw, _ := io.ReadAll(body)

	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		clean := strings.Map(func(r rune) rune {
			if r == '\r' || r == '\n' || r == ' ' || r == '\t' {
				return -1
			}
			return r
		}, string(raw))
		if out, err := base64.StdEncoding.DecodeString(clean); err == nil {
			return out
		}
		if out, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(clean, "=")); err == nil {
			return out
		}
	case "quoted-printable":
		out, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(raw)))
		if err == nil || len(out) > 0 {
			return out
		}
	}
	return raw
}

// parseDate resolves the message time: the Date header in any accepted
// layout, else the server's INTERNALDATE, else now. Times more than a day
// ahead or older than five years are replaced by now. A date without a
// zone is taken as UTC.
func parseDate(value string, internal, now time.Time) time.Time {
	t, ok := parseDateHeader(value)
	if !ok {
		t = internal
	}
	if t.IsZero() {
		return now.UTC()
	}
	if t.After(now.Add(maxFutureSkew)) || t.Before(now.AddDate(-maxAgeYears, 0, 0)) {
		return now.UTC()
	}
	return t.UTC()
}

func parseDateHeader(value string) (time.Time, bool) {
	value = strings.Join(strings.Fields(value), " ")
	if value == "" {
		return time.Time{}, false
	}

	h := mail.Header{}
	h.Set("Date", value)
	if t, err := h.Date(); err == nil && !t.IsZero() {
		return t, true
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// countRecipients counts addresses across To, Cc and Bcc. Lists that do
// not parse are counted by their commas.
func countRecipients(h mail.Header) int {
	n := 0
	for _, key := range []string{"To", "Cc", "Bcc"} {
		if !h.Has(key) {
			continue
		}
		if list, err := h.AddressList(key); err == nil {
			n += len(list)
			continue
		}
		raw := strings.TrimSpace(h.Get(key))
		if raw != "" {
			n += strings.Count(raw, ",") + 1
		}
	}
	return n
}

// collectHeaders decodes every header value, keyed by lower-cased name.
// Repeated headers keep their first value.
func collectHeaders(h textproto.Header) map[string]string {
	out := make(map[string]string)
	fields := h.Fields()
	for fields.Next() {
		key := strings.ToLower(fields.Key())
		if _, ok := out[key]; ok {
			continue
		}
		out[key] = textnorm.DecodeHeader(fields.Value())
	}
	return out
}
