// Package lead maps sender addresses to CRM leads.
package lead

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/leadmail/internal/address"
	"github.com/nhle/leadmail/internal/model"
	"github.com/nhle/leadmail/internal/store"
)

// Repository is the persistence the resolver needs. store.Store
// satisfies it.
type Repository interface {
	ResolveLead(
		ctx context.Context,
		accountID, address, name string,
		receivedAt time.Time,
	) (*model.Lead, bool, error)
	FindLead(ctx context.Context, accountID, address string) (*model.Lead, error)
	StoreEmailCycle(ctx context.Context, cycle store.EmailCycle) (*store.StoredCycle, error)
}

// Resolver finds or creates the lead for a sender. Calls for the same
// (account, address) are serialized in process; the store's unique key
// covers other processes.
type Resolver struct {
	repo   Repository
	logger zerolog.Logger

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewResolver creates a Resolver.
func NewResolver(repo Repository, logger zerolog.Logger) *Resolver {
	return &Resolver{
		repo:   repo,
		logger: logger.With().Str("component", "lead").Logger(),
		locks:  make(map[string]*keyLock),
	}
}

// ResolveOrCreate returns the lead for addr, creating it when absent. A
// new lead is named after the display name, or the address local part.
// An existing lead gets its name backfilled when degenerate and its
// last contact moved forward to receivedAt.
func (r *Resolver) ResolveOrCreate(
	ctx context.Context,
	accountID, addr, name string,
	receivedAt time.Time,
) (*model.Lead, bool, error) {
	email, name, err := senderKey(addr, name)
	if err != nil {
		return nil, false, err
	}

	unlock := r.lock(accountID + "\x00" + email)
	defer unlock()

	lead, created, err := r.repo.ResolveLead(ctx, accountID, email, name, receivedAt)
	if err != nil {
		return nil, false, fmt.Errorf("resolving lead %s: %w", email, err)
	}

	if created {
		r.logger.Info().
			Str("account", accountID).
			Str("lead", lead.ID).
			Str("email", email).
			Msg("created lead")
	}
	return lead, created, nil
}

// Lookup returns the existing lead for addr, or nil when there is none.
func (r *Resolver) Lookup(ctx context.Context, accountID, addr string) (*model.Lead, error) {
	lead, err := r.repo.FindLead(ctx, accountID, addr)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up lead %s: %w", addr, err)
	}
	return lead, nil
}

// StoreCycle persists cycle, resolving its sender to a lead in the same
// transaction as the email. The sender name gets the same defaults as
// ResolveOrCreate. Nothing of the lead is kept when the store fails.
func (r *Resolver) StoreCycle(ctx context.Context, cycle store.EmailCycle) (*store.StoredCycle, error) {
	if cycle.Sender == nil {
		return r.repo.StoreEmailCycle(ctx, cycle)
	}

	email, name, err := senderKey(cycle.Sender.Address, cycle.Sender.Name)
	if err != nil {
		return nil, err
	}
	cycle.Sender = &store.LeadSender{Address: email, Name: name}

	unlock := r.lock(cycle.AccountID + "\x00" + email)
	defer unlock()

	stored, err := r.repo.StoreEmailCycle(ctx, cycle)
	if err != nil {
		return nil, err
	}

	if stored.LeadCreated {
		r.logger.Info().
			Str("account", cycle.AccountID).
			Str("lead", stored.Lead.ID).
			Str("email", email).
			Msg("created lead")
	}
	return stored, nil
}

// senderKey lowercases addr and defaults a missing name to the local part.
func senderKey(addr, name string) (string, string, error) {
	email := strings.ToLower(strings.TrimSpace(addr))
	if !address.IsValid(email) {
		return "", "", fmt.Errorf("resolving lead: invalid address %q", addr)
	}

	name = address.CleanName(name)
	if name == "" || name == address.UnknownSender {
		name = address.LocalPart(email)
	}
	return email, name, nil
}

// lock acquires the per-key mutex, dropping it from the map once no
// caller holds or waits on it.
func (r *Resolver) lock(key string) func() {
	r.mu.Lock()
	l, ok := r.locks[key]
	if !ok {
		l = &keyLock{}
		r.locks[key] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, key)
		}
		r.mu.Unlock()
	}
}
