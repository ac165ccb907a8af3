package app

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/leadmail/internal/credential"
	"github.com/nhle/leadmail/internal/model"
	"github.com/nhle/leadmail/internal/source"
	"github.com/nhle/leadmail/internal/testutil"
)

type emptyMailbox struct{ connects int }

func (m *emptyMailbox) Connect(context.Context, *model.MailAccount) (source.Session, error) {
	m.connects++
	return emptySession{}, nil
}

type emptySession struct{}

func (emptySession) SearchSince(context.Context, time.Time, string) ([]uint32, error) {
	return nil, nil
}

func (emptySession) Fetch(context.Context, uint32) (*model.RawMessage, error) {
	return nil, io.EOF
}

func (emptySession) Close() error { return nil }

func testConfig(t *testing.T) *model.AppConfig {
	cfg := model.DefaultAppConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "data", "leadmail.db")
	cfg.Logging.Level = "error"
	return cfg
}

func TestNew_WiresPipeline(t *testing.T) {
	secrets := credential.NewKeyring(keyring.NewArrayKeyring(nil))
	box := &emptyMailbox{}

	a, err := New(testConfig(t), Options{
		LogWriter: io.Discard,
		Secrets:   secrets,
		Connector: box,
	})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	key, err := secrets.Get(credential.KeyEncryption)
	require.NoError(t, err)
	assert.NotEmpty(t, key, "encryption key is generated on first start")

	account := testutil.SeedAccount(t, a.Store, "sales")
	got, err := a.Store.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, "secret", got.Password)

	reports, err := a.Scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.NoError(t, reports[0].Err)
	assert.True(t, reports[0].WatermarkAdvanced())
	assert.Equal(t, 1, box.connects)
}

func TestNew_UsesKeyringAIKey(t *testing.T) {
	secrets := credential.NewKeyring(keyring.NewArrayKeyring(nil))
	require.NoError(t, secrets.Set(credential.KeyAIAPI, "sk-global"))

	a, err := New(testConfig(t), Options{LogWriter: io.Discard, Secrets: secrets, Connector: &emptyMailbox{}})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	_, err = a.AI.Classifier(&model.MailAccount{ID: "no-key"})
	assert.NoError(t, err, "accounts without a key fall back to the global key")
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.AI.Provider = "bard"

	_, err := New(cfg, Options{LogWriter: io.Discard, Secrets: credential.NewKeyring(keyring.NewArrayKeyring(nil))})
	assert.ErrorContains(t, err, "unknown ai.provider")
}
