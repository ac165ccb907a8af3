package email

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"slices"
	"syscall"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/rs/zerolog"

	"github.com/nhle/leadmail/internal/model"
	"github.com/nhle/leadmail/internal/source"
)

// ErrMessageGone is returned by Fetch when the UID no longer exists.
var ErrMessageGone = errors.New("message no longer in mailbox")

// Options configures IMAP connections.
type Options struct {
	DialTimeout time.Duration
	OpTimeout   time.Duration
	Mailbox     string

	// RootCAs overrides the system roots, for servers with a private CA.
	RootCAs *x509.CertPool
}

// Connector dials IMAP servers over TLS, authenticates and selects the
// configured mailbox. Implicit TLS is used when the account asks for it,
// STARTTLS otherwise; certificates and host names are always verified.
type Connector struct {
	opts   Options
	logger zerolog.Logger
}

// NewConnector creates an IMAP connector.
func NewConnector(opts Options, logger zerolog.Logger) *Connector {
	if opts.Mailbox == "" {
		opts.Mailbox = "INBOX"
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 30 * time.Second
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 30 * time.Second
	}
	return &Connector{
		opts:   opts,
		logger: logger.With().Str("component", "imap").Logger(),
	}
}

func (c *Connector) tlsConfig(host string) *tls.Config {
	return &tls.Config{
		ServerName: host,
		MinVersion: tls.VersionTLS12,
		RootCAs:    c.opts.RootCAs,
	}
}

// Connect opens an authenticated session with the mailbox selected.
func (c *Connector) Connect(ctx context.Context, account *model.MailAccount) (source.Session, error) {
	addr := account.Addr()
	tlsCfg := c.tlsConfig(account.MailServer)
	dialer := &net.Dialer{Timeout: c.opts.DialTimeout}

	var conn net.Conn
	var err error
	if account.UseTLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsCfg}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, classify("connecting to "+addr, err)
	}

	s := &session{conn: conn, opTimeout: c.opts.OpTimeout}
	release := s.guard(ctx)
	defer release()

	opts := &imapclient.Options{TLSConfig: tlsCfg}
	if account.UseTLS {
		s.client = imapclient.New(conn, opts)
	} else {
		s.client, err = imapclient.NewStartTLS(conn, opts)
		if err != nil {
			_ = conn.Close()
			return nil, classify("starting tls with "+addr, ctxErr(ctx, err))
		}
	}

	if err := s.client.Login(account.Username, account.Password).Wait(); err != nil {
		_ = s.client.Close()
		return nil, classifyLogin(addr, account.Username, ctxErr(ctx, err))
	}

	if _, err := s.client.Select(c.opts.Mailbox, nil).Wait(); err != nil {
		_ = s.client.Close()
		return nil, classify("selecting "+c.opts.Mailbox, ctxErr(ctx, err))
	}

	c.logger.Debug().
		Str("account", account.ID).
		Str("addr", addr).
		Str("mailbox", c.opts.Mailbox).
		Msg("imap session opened")
	return s, nil
}

type session struct {
	conn      net.Conn
	client    *imapclient.Client
	opTimeout time.Duration
}

// guard bounds one operation: the connection deadline is the earlier of
// the op timeout and the context deadline, and cancelling ctx closes the
// connection. The returned func clears both so that time spent between
// operations does not count.
func (s *session) guard(ctx context.Context) func() {
	deadline := time.Now().Add(s.opTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = s.conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	return func() {
		stop()
		_ = s.conn.SetDeadline(time.Time{})
	}
}

// SearchSince runs UID SEARCH SINCE, optionally with a FROM header match.
// SINCE has day granularity so results overlap the previous window.
func (s *session) SearchSince(ctx context.Context, since time.Time, from string) ([]uint32, error) {
	release := s.guard(ctx)
	defer release()

	criteria := &imap.SearchCriteria{Since: since.UTC()}
	if from != "" {
		criteria.Header = []imap.SearchCriteriaHeaderField{{Key: "From", Value: from}}
	}

	data, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, classify("searching messages", ctxErr(ctx, err))
	}

	uids := make([]uint32, 0, len(data.AllUIDs()))
	for _, uid := range data.AllUIDs() {
		uids = append(uids, uint32(uid))
	}
	slices.Sort(uids)
	return uids, nil
}

// Fetch retrieves BODY.PEEK[] and INTERNALDATE for one UID.
func (s *session) Fetch(ctx context.Context, uid uint32) (*model.RawMessage, error) {
	release := s.guard(ctx)
	defer release()

	section := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := s.client.Fetch(imap.UIDSetNum(imap.UID(uid)), &imap.FetchOptions{
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{section},
	})
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		if err := fetchCmd.Close(); err != nil {
			return nil, classify(fmt.Sprintf("fetching UID %d", uid), ctxErr(ctx, err))
		}
		return nil, fmt.Errorf("fetching UID %d: %w", uid, ErrMessageGone)
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, classify(fmt.Sprintf("collecting UID %d", uid), ctxErr(ctx, err))
	}
	if err := fetchCmd.Close(); err != nil {
		return nil, classify(fmt.Sprintf("fetching UID %d", uid), ctxErr(ctx, err))
	}

	raw := buf.FindBodySection(section)
	if raw == nil {
		return nil, fmt.Errorf("fetching UID %d: %w", uid, ErrMessageGone)
	}

	return &model.RawMessage{
		UID:          uid,
		Raw:          raw,
		InternalDate: buf.InternalDate,
	}, nil
}

// Close logs out and closes the connection.
func (s *session) Close() error {
	_ = s.conn.SetDeadline(time.Now().Add(s.opTimeout))
	_ = s.client.Logout().Wait()
	return s.client.Close()
}

// ctxErr prefers the context's error when the connection was closed
// because ctx ended.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	return err
}

// classify maps a connection or protocol error onto the source error
// taxonomy. Certificate failures are permanent; network failures, TLS
// negotiation failures and [UNAVAILABLE] responses are transient.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var imapErr *imap.Error
	if errors.As(err, &imapErr) {
		switch imapErr.Code {
		case imap.ResponseCodeAuthenticationFailed, imap.ResponseCodeAuthorizationFailed:
			return &source.AuthError{Server: op, Message: imapErr.Text}
		case imap.ResponseCodeUnavailable:
			return &source.TransientError{Op: op, Err: err}
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if isCertificateError(err) {
		return fmt.Errorf("%s: certificate verification failed: %w", op, err)
	}

	var netErr net.Error
	var recordErr tls.RecordHeaderError
	switch {
	case errors.As(err, &netErr),
		errors.As(err, &recordErr),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET):
		return &source.TransientError{Op: op, Err: err}
	}

	return fmt.Errorf("%s: %w", op, err)
}

// classifyLogin treats a plain NO to LOGIN as rejected credentials.
func classifyLogin(addr, username string, err error) error {
	var imapErr *imap.Error
	if errors.As(err, &imapErr) &&
		imapErr.Type == imap.StatusResponseTypeNo &&
		imapErr.Code != imap.ResponseCodeUnavailable {
		return &source.AuthError{
			Server:  addr,
			Message: fmt.Sprintf("authentication failed for %s: %s", username, imapErr.Text),
		}
	}
	return classify("logging in to "+addr, err)
}

func isCertificateError(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	var unknownAuthority x509.UnknownAuthorityError
	var hostname x509.HostnameError
	var invalid x509.CertificateInvalidError
	return errors.As(err, &verifyErr) ||
		errors.As(err, &unknownAuthority) ||
		errors.As(err, &hostname) ||
		errors.As(err, &invalid)
}
