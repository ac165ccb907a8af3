package testutil

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Message builds RFC 5322 fixtures for parser and pipeline tests.
type Message struct {
	From      string
	To        []string
	Cc        []string
	Subject   string
	MessageID string
	Date      time.Time

	// Headers are written as is, after the standard ones.
	Headers map[string]string

	// ContentType defaults to text/plain; charset=utf-8.
	ContentType string

	// TransferEncoding is written as Content-Transfer-Encoding when set.
	TransferEncoding string

	Body []byte
}

// Bytes renders the message with CRLF line endings.
func (m Message) Bytes() []byte {
	var b strings.Builder
	line := func(k, v string) {
		if v != "" {
			fmt.Fprintf(&b, "%s: %s\r\n", k, v)
		}
	}

	line("From", m.From)
	line("To", strings.Join(m.To, ", "))
	line("Cc", strings.Join(m.Cc, ", "))
	line("Subject", m.Subject)
	if m.MessageID != "" {
		line("Message-ID", "<"+m.MessageID+">")
	}
	if !m.Date.IsZero() {
		line("Date", m.Date.Format(time.RFC1123Z))
	}
	line("MIME-Version", "1.0")

	ct := m.ContentType
	if ct == "" {
		ct = "text/plain; charset=utf-8"
	}
	line("Content-Type", ct)
	line("Content-Transfer-Encoding", m.TransferEncoding)

	keys := make([]string, 0, len(m.Headers))
	for k := range m.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		line(k, m.Headers[k])
	}

	b.WriteString("\r\n")
	return append([]byte(b.String()), m.Body...)
}
