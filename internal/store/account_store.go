package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/leadmail/internal/model"
)

const accountColumns = `
	id, name, mail_server, mail_port, mail_use_tls,
	mail_username, mail_password, ai_api_key, from_filter,
	poll_interval_sec, enabled, created_at, updated_at`

// CreateAccount inserts a mail account, sealing its secrets. Generates a
// UUID if ID is empty.
func (s *SQLiteStore) CreateAccount(ctx context.Context, a *model.MailAccount) error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("account name must not be empty")
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	password, apiKey, err := s.sealSecrets(a)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO mail_accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.MailServer, a.MailPort, boolToInt(a.UseTLS),
		a.Username, password, apiKey, a.FromFilter,
		a.PollIntervalSec, boolToInt(a.Enabled), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating account: %w", MapSQLError(err))
	}
	return nil
}

// UpdateAccount updates an existing account by ID.
func (s *SQLiteStore) UpdateAccount(ctx context.Context, a *model.MailAccount) error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("account name must not be empty")
	}
	a.UpdatedAt = time.Now().UTC()

	password, apiKey, err := s.sealSecrets(a)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE mail_accounts SET
			name = ?, mail_server = ?, mail_port = ?, mail_use_tls = ?,
			mail_username = ?, mail_password = ?, ai_api_key = ?,
			from_filter = ?, poll_interval_sec = ?, enabled = ?,
			updated_at = ?
		WHERE id = ?`,
		a.Name, a.MailServer, a.MailPort, boolToInt(a.UseTLS),
		a.Username, password, apiKey,
		a.FromFilter, a.PollIntervalSec, boolToInt(a.Enabled),
		a.UpdatedAt,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("updating account %s: %w", a.ID, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("account %s: %w", a.ID, ErrNotFound)
	}
	return nil
}

// GetAccount retrieves a single account by ID with its secrets opened.
func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*model.MailAccount, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT "+accountColumns+" FROM mail_accounts WHERE id = ?", id)

	a, err := s.scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting account %s: %w", id, err)
	}
	return &a, nil
}

// ListAccounts returns all accounts ordered by name, optionally only the
// enabled ones.
func (s *SQLiteStore) ListAccounts(ctx context.Context, enabledOnly bool) ([]model.MailAccount, error) {
	query := "SELECT " + accountColumns + " FROM mail_accounts"
	if enabledOnly {
		query += " WHERE enabled = 1"
	}
	query += " ORDER BY name, id"

	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.MailAccount
	for rows.Next() {
		a, err := s.scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// SetAccountEnabled enables or disables polling for an account.
func (s *SQLiteStore) SetAccountEnabled(ctx context.Context, id string, enabled bool) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE mail_accounts SET enabled = ?, updated_at = ? WHERE id = ?",
		boolToInt(enabled), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating account %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) sealSecrets(a *model.MailAccount) (password, apiKey string, err error) {
	if password, err = s.sealer.Seal(a.Password); err != nil {
		return "", "", fmt.Errorf("sealing password for account %s: %w", a.ID, err)
	}
	if apiKey, err = s.sealer.Seal(a.AIAPIKey); err != nil {
		return "", "", fmt.Errorf("sealing ai key for account %s: %w", a.ID, err)
	}
	return password, apiKey, nil
}

// scanAccount scans an account row and opens its secrets.
func (s *SQLiteStore) scanAccount(row sqlx.ColScanner) (model.MailAccount, error) {
	var (
		a        model.MailAccount
		useTLS   int
		enabled  int
		password string
		apiKey   string
	)

	err := row.Scan(
		&a.ID, &a.Name, &a.MailServer, &a.MailPort, &useTLS,
		&a.Username, &password, &apiKey, &a.FromFilter,
		&a.PollIntervalSec, &enabled, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.MailAccount{}, err
		}
		return model.MailAccount{}, fmt.Errorf("scanning account row: %w", err)
	}

	a.UseTLS = useTLS != 0
	a.Enabled = enabled != 0

	if a.Password, err = s.sealer.Open(password); err != nil {
		return model.MailAccount{}, fmt.Errorf("opening password for account %s: %w", a.ID, err)
	}
	if a.AIAPIKey, err = s.sealer.Open(apiKey); err != nil {
		return model.MailAccount{}, fmt.Errorf("opening ai key for account %s: %w", a.ID, err)
	}

	return a, nil
}
