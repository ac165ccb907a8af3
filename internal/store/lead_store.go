package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/leadmail/internal/model"
)

// ResolveLead finds the lead for (accountID, address) or creates it, in
// one transaction. It backfills a missing or one-character name and moves
// last_contact forward to receivedAt. The bool reports whether the lead
// was created by this call.
func (s *SQLiteStore) ResolveLead(
	ctx context.Context,
	accountID, address, name string,
	receivedAt time.Time,
) (*model.Lead, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	lead, created, err := resolveLead(ctx, tx, accountID, address, name, receivedAt)
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("committing lead %s: %w", lead.Email, MapSQLError(err))
	}
	return lead, created, nil
}

// FindLead returns the lead for (accountID, address) without creating it.
func (s *SQLiteStore) FindLead(ctx context.Context, accountID, address string) (*model.Lead, error) {
	return getLeadByEmail(ctx, s.db, accountID, strings.ToLower(strings.TrimSpace(address)))
}

// resolveLead does the lookup, insert, name backfill and last_contact
// bump of ResolveLead inside tx.
func resolveLead(
	ctx context.Context,
	tx *sqlx.Tx,
	accountID, address, name string,
	receivedAt time.Time,
) (*model.Lead, bool, error) {
	email := strings.ToLower(strings.TrimSpace(address))
	if email == "" {
		return nil, false, fmt.Errorf("lead address must not be empty")
	}

	created := false
	lead, err := getLeadByEmail(ctx, tx, accountID, email)
	if errors.Is(err, ErrNotFound) {
		created, err = insertLead(ctx, tx, accountID, email, name, receivedAt)
		if err != nil {
			return nil, false, err
		}
		lead, err = getLeadByEmail(ctx, tx, accountID, email)
	}
	if err != nil {
		return nil, false, err
	}
	if created {
		return lead, true, nil
	}

	changed := false
	if lead.NeedsNameBackfill() && utf8.RuneCountInString(name) > 1 {
		lead.Name = name
		changed = true
	}
	if lead.BumpLastContact(receivedAt) {
		changed = true
	}
	if !changed {
		return lead, false, nil
	}

	lead.UpdatedAt = time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		"UPDATE leads SET name = ?, last_contact = ?, updated_at = ? WHERE id = ?",
		lead.Name, lead.LastContact, lead.UpdatedAt, lead.ID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("updating lead %s: %w", lead.ID, err)
	}
	return lead, false, nil
}

// GetLead retrieves a single lead by ID.
func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	var lead model.Lead
	err := s.db.GetContext(ctx, &lead, "SELECT * FROM leads WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lead %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting lead %s: %w", id, err)
	}
	return &lead, nil
}

// GetLeads retrieves leads matching the filter, most recently contacted
// first.
func (s *SQLiteStore) GetLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	var conditions []string
	var args []interface{}

	if filter.AccountID != nil {
		conditions = append(conditions, "account_id = ?")
		args = append(args, *filter.AccountID)
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.Query != nil && *filter.Query != "" {
		conditions = append(conditions, "(name LIKE ? OR email LIKE ?)")
		q := "%" + *filter.Query + "%"
		args = append(args, q, q)
	}

	query := "SELECT * FROM leads"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY last_contact DESC, created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	var leads []model.Lead
	if err := s.db.SelectContext(ctx, &leads, query, args...); err != nil {
		return nil, fmt.Errorf("querying leads: %w", err)
	}
	return leads, nil
}

// UpdateLeadStatus sets the lifecycle status of a lead.
func (s *SQLiteStore) UpdateLeadStatus(ctx context.Context, id string, status model.LeadStatus) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE leads SET status = ?, updated_at = ? WHERE id = ?",
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating lead %s status: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("lead %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteLead removes a lead. Its emails and the items derived from them
// are removed by cascade.
func (s *SQLiteStore) DeleteLead(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM leads WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting lead %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("lead %s: %w", id, ErrNotFound)
	}
	return nil
}

func getLeadByEmail(ctx context.Context, q sqlx.QueryerContext, accountID, email string) (*model.Lead, error) {
	var lead model.Lead
	err := sqlx.GetContext(ctx, q, &lead,
		"SELECT * FROM leads WHERE account_id = ? AND email = ?", accountID, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lead %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting lead %s: %w", email, err)
	}
	return &lead, nil
}

// insertLead inserts a new lead unless another writer got there first.
// It reports whether this call inserted the row.
func insertLead(
	ctx context.Context,
	tx *sqlx.Tx,
	accountID, email, name string,
	receivedAt time.Time,
) (bool, error) {
	now := time.Now().UTC()
	var lastContact *time.Time
	if !receivedAt.IsZero() {
		t := receivedAt.UTC()
		lastContact = &t
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO leads (
			id, account_id, name, email, status, score,
			last_contact, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, email) DO NOTHING`,
		uuid.New().String(), accountID, name, email, string(model.LeadStatusNew), 0,
		lastContact, now, now,
	)
	if err != nil {
		return false, fmt.Errorf("creating lead %s: %w", email, MapSQLError(err))
	}
	rows, _ := result.RowsAffected()
	return rows == 1, nil
}
