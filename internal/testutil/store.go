package testutil

import (
	"context"
	"testing"

	"github.com/nhle/leadmail/internal/model"
	"github.com/nhle/leadmail/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t testing.TB) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SeedAccount inserts an enabled account with complete IMAP settings and
// returns it.
func SeedAccount(t testing.TB, s store.Store, name string) *model.MailAccount {
	t.Helper()

	a := &model.MailAccount{
		Name:       name,
		MailServer: "imap.example.com",
		MailPort:   993,
		UseTLS:     true,
		Username:   name + "@example.com",
		Password:   "secret",
		AIAPIKey:   "sk-test",
		Enabled:    true,
	}
	if err := s.CreateAccount(context.Background(), a); err != nil {
		t.Fatalf("seeding account %s: %v", name, err)
	}
	return a
}
