package email

import (
	"context"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/leadmail/internal/model"
	"github.com/nhle/leadmail/internal/source"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
		auth      bool
	}{
		{
			name:      "server unavailable",
			err:       &imap.Error{Type: imap.StatusResponseTypeNo, Code: imap.ResponseCodeUnavailable, Text: "busy"},
			transient: true,
		},
		{
			name: "authentication failed code",
			err:  &imap.Error{Type: imap.StatusResponseTypeNo, Code: imap.ResponseCodeAuthenticationFailed, Text: "nope"},
			auth: true,
		},
		{
			name: "authorization failed code",
			err:  &imap.Error{Type: imap.StatusResponseTypeNo, Code: imap.ResponseCodeAuthorizationFailed, Text: "nope"},
			auth: true,
		},
		{
			name: "other protocol error",
			err:  &imap.Error{Type: imap.StatusResponseTypeBad, Text: "syntax"},
		},
		{
			name:      "connection refused",
			err:       &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED},
			transient: true,
		},
		{
			name:      "eof",
			err:       io.ErrUnexpectedEOF,
			transient: true,
		},
		{
			name: "unknown authority",
			err:  x509.UnknownAuthorityError{},
		},
		{
			name: "cancelled",
			err:  context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("op", tt.err)
			require.Error(t, got)
			assert.Equal(t, tt.transient, source.IsTransient(got))
			assert.Equal(t, tt.auth, source.IsAuthError(got))
		})
	}
}

func TestClassifyLogin(t *testing.T) {
	plainNo := &imap.Error{Type: imap.StatusResponseTypeNo, Text: "invalid credentials"}
	assert.True(t, source.IsAuthError(classifyLogin("imap:993", "u", plainNo)))

	busy := &imap.Error{Type: imap.StatusResponseTypeNo, Code: imap.ResponseCodeUnavailable}
	err := classifyLogin("imap:993", "u", busy)
	assert.False(t, source.IsAuthError(err))
	assert.True(t, source.IsTransient(err))

	bad := &imap.Error{Type: imap.StatusResponseTypeBad, Text: "unknown command"}
	err = classifyLogin("imap:993", "u", bad)
	assert.False(t, source.IsAuthError(err))
	assert.False(t, source.IsTransient(err))
}

func TestConnect_VerifiesCertificates(t *testing.T) {
	srv := httptest.NewTLSServer(http.NotFoundHandler())
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	c := NewConnector(Options{DialTimeout: 5 * time.Second, OpTimeout: 5 * time.Second}, zerolog.Nop())
	_, err = c.Connect(context.Background(), &model.MailAccount{
		ID:         "acc",
		MailServer: u.Hostname(),
		MailPort:   port,
		UseTLS:     true,
		Username:   "u",
		Password:   "p",
	})
	require.Error(t, err)
	assert.False(t, source.IsTransient(err), "self-signed certificate must be rejected permanently")
	assert.Contains(t, err.Error(), "certificate")
}

func TestConnect_RefusedIsTransient(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	c := NewConnector(Options{DialTimeout: time.Second}, zerolog.Nop())
	_, err = c.Connect(context.Background(), &model.MailAccount{
		MailServer: "127.0.0.1",
		MailPort:   port,
		UseTLS:     true,
	})
	require.Error(t, err)
	assert.True(t, source.IsTransient(err))

	var te *source.TransientError
	assert.True(t, errors.As(err, &te))
}
