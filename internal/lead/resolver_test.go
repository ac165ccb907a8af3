package lead_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/leadmail/internal/lead"
	"github.com/nhle/leadmail/internal/model"
	"github.com/nhle/leadmail/internal/store"
	"github.com/nhle/leadmail/internal/testutil"
)

func TestResolveOrCreate_ConcurrentCallsCreateOneLead(t *testing.T) {
	s := testutil.NewTestStore(t)
	acc := testutil.SeedAccount(t, s, "sales")
	r := lead.NewResolver(s, zerolog.Nop())

	received := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	const callers = 16

	var wg sync.WaitGroup
	created := make(chan bool, callers)
	ids := make(chan string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, c, err := r.ResolveOrCreate(context.Background(), acc.ID, "New.Sender@Example.com", "New Sender", received)
			if !assert.NoError(t, err) {
				return
			}
			created <- c
			ids <- l.ID
		}()
	}
	wg.Wait()
	close(created)
	close(ids)

	n := 0
	for c := range created {
		if c {
			n++
		}
	}
	assert.Equal(t, 1, n, "exactly one caller creates the lead")

	first := ""
	for id := range ids {
		if first == "" {
			first = id
		}
		assert.Equal(t, first, id)
	}

	leads, err := s.GetLeads(context.Background(), store.LeadFilter{AccountID: &acc.ID})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "new.sender@example.com", leads[0].Email)
}

func TestResolveOrCreate_DefaultsNameToLocalPart(t *testing.T) {
	s := testutil.NewTestStore(t)
	acc := testutil.SeedAccount(t, s, "sales")
	r := lead.NewResolver(s, zerolog.Nop())

	l, created, err := r.ResolveOrCreate(context.Background(), acc.ID, "k.tanaka@example.jp", "", time.Now())
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "k.tanaka", l.Name)
}

func TestResolveOrCreate_BackfillsAndKeepsLatestContact(t *testing.T) {
	s := testutil.NewTestStore(t)
	acc := testutil.SeedAccount(t, s, "sales")
	r := lead.NewResolver(s, zerolog.Nop())
	ctx := context.Background()

	late := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	early := late.Add(-48 * time.Hour)

	_, _, err := s.ResolveLead(ctx, acc.ID, "x@example.com", "x", late)
	require.NoError(t, err)

	l, created, err := r.ResolveOrCreate(ctx, acc.ID, "X@example.com", "Xavier Ortiz", early)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Xavier Ortiz", l.Name)
	require.NotNil(t, l.LastContact)
	assert.True(t, l.LastContact.Equal(late), "earlier mail must not move last_contact back")
}

func TestResolveOrCreate_RejectsInvalidAddress(t *testing.T) {
	s := testutil.NewTestStore(t)
	acc := testutil.SeedAccount(t, s, "sales")
	r := lead.NewResolver(s, zerolog.Nop())

	_, _, err := r.ResolveOrCreate(context.Background(), acc.ID, "not-an-address", "Someone", time.Now())
	assert.Error(t, err)
}

func TestStoreCycle_ResolvesSenderWithEmail(t *testing.T) {
	s := testutil.NewTestStore(t)
	acc := testutil.SeedAccount(t, s, "sales")
	r := lead.NewResolver(s, zerolog.Nop())
	ctx := context.Background()

	missing, err := r.Lookup(ctx, acc.ID, "k.tanaka@example.jp")
	require.NoError(t, err)
	assert.Nil(t, missing)

	received := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	stored, err := r.StoreCycle(ctx, store.EmailCycle{
		AccountID: acc.ID,
		Email: &model.NormalizedEmail{
			MessageID:     "m1@example.jp",
			SenderAddress: "K.Tanaka@example.jp",
			Subject:       "hello",
			BodyText:      "hello",
			ReceivedAt:    received,
		},
		Sender: &store.LeadSender{Address: "K.Tanaka@example.jp"},
	})
	require.NoError(t, err)
	assert.True(t, stored.LeadCreated)
	assert.Equal(t, "k.tanaka", stored.Lead.Name)
	assert.Equal(t, "k.tanaka@example.jp", stored.Lead.Email)

	found, err := r.Lookup(ctx, acc.ID, "k.tanaka@example.jp")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, stored.Lead.ID, found.ID)
}
