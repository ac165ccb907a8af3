package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/leadmail/internal/model"
)

// StoreEmailCycle persists one processed message in a single
// transaction: the sender's lead (created, backfilled and its
// last_contact and spam status updated), the email row or unknown_emails
// row when cycle.Sender is nil, and the AI-generated items. A message
// already stored for the account yields ErrDuplicate and no changes.
func (s *SQLiteStore) StoreEmailCycle(ctx context.Context, cycle EmailCycle) (*StoredCycle, error) {
	if cycle.Email == nil {
		return nil, fmt.Errorf("email cycle without email")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if cycle.Sender == nil {
		stored, err := insertUnknownEmail(ctx, tx, cycle)
		if err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("committing unknown email: %w", MapSQLError(err))
		}
		return &StoredCycle{Email: stored}, nil
	}

	lead, created, err := resolveLead(ctx, tx, cycle.AccountID,
		cycle.Sender.Address, cycle.Sender.Name, cycle.Email.ReceivedAt)
	if err != nil {
		return nil, err
	}

	stored, err := insertEmail(ctx, tx, cycle, lead.ID)
	if err != nil {
		return nil, err
	}

	if cycle.IsMassMail {
		if err := markSpam(ctx, tx, lead); err != nil {
			return nil, err
		}
	}

	if err := replaceAIItems(ctx, tx, stored, cycle.Items); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing email: %w", MapSQLError(err))
	}
	return &StoredCycle{Email: stored, Lead: lead, LeadCreated: created}, nil
}

// EmailExists reports whether a message id was already stored for an
// account, as lead mail or unknown mail.
func (s *SQLiteStore) EmailExists(ctx context.Context, accountID, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT
			(SELECT COUNT(*) FROM emails WHERE account_id = ? AND message_id = ?) +
			(SELECT COUNT(*) FROM unknown_emails WHERE account_id = ? AND message_id = ?)`,
		accountID, messageID, accountID, messageID,
	)
	if err != nil {
		return false, fmt.Errorf("checking email %s: %w", messageID, err)
	}
	return n > 0, nil
}

// EmailsForLead returns a lead's emails, newest first. A limit of zero
// returns all of them.
func (s *SQLiteStore) EmailsForLead(ctx context.Context, leadID string, limit int) ([]model.StoredEmail, error) {
	query := "SELECT * FROM emails WHERE lead_id = ? ORDER BY received_date DESC, created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var emails []model.StoredEmail
	if err := s.db.SelectContext(ctx, &emails, query, leadID); err != nil {
		return nil, fmt.Errorf("querying emails for lead %s: %w", leadID, err)
	}
	return emails, nil
}

// UnknownEmails returns mail of an account that had no usable sender,
// newest first.
func (s *SQLiteStore) UnknownEmails(ctx context.Context, accountID string, limit int) ([]model.UnknownEmail, error) {
	query := "SELECT * FROM unknown_emails WHERE account_id = ? ORDER BY received_date DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var emails []model.UnknownEmail
	if err := s.db.SelectContext(ctx, &emails, query, accountID); err != nil {
		return nil, fmt.Errorf("querying unknown emails: %w", err)
	}
	return emails, nil
}

// AIItemsForEmail returns the tasks, schedules and opportunities that
// reference an email.
func (s *SQLiteStore) AIItemsForEmail(ctx context.Context, emailID string) (model.AIItems, error) {
	var items model.AIItems

	if err := s.db.SelectContext(ctx, &items.Tasks,
		"SELECT * FROM tasks WHERE email_id = ? ORDER BY created_at, id", emailID); err != nil {
		return model.AIItems{}, fmt.Errorf("querying tasks for email %s: %w", emailID, err)
	}
	if err := s.db.SelectContext(ctx, &items.Schedules,
		"SELECT * FROM schedules WHERE email_id = ? ORDER BY start_time, id", emailID); err != nil {
		return model.AIItems{}, fmt.Errorf("querying schedules for email %s: %w", emailID, err)
	}
	if err := s.db.SelectContext(ctx, &items.Opportunities,
		"SELECT * FROM opportunities WHERE email_id = ? ORDER BY created_at, id", emailID); err != nil {
		return model.AIItems{}, fmt.Errorf("querying opportunities for email %s: %w", emailID, err)
	}

	return items, nil
}

func insertEmail(ctx context.Context, tx *sqlx.Tx, cycle EmailCycle, leadID string) (*model.StoredEmail, error) {
	e := cycle.Email
	stored := &model.StoredEmail{
		ID:             uuid.New().String(),
		AccountID:      cycle.AccountID,
		LeadID:         leadID,
		MessageID:      nullString(e.MessageID),
		Sender:         e.SenderAddress,
		SenderName:     e.SenderDisplayName,
		Subject:        e.Subject,
		Content:        e.BodyText,
		ReceivedDate:   e.ReceivedAt.UTC(),
		Encoding:       e.DetectedEncoding,
		IsMassMail:     cycle.IsMassMail,
		MassMailReason: cycle.MassMailReason,
		CreatedAt:      time.Now().UTC(),
	}
	if a := cycle.Analysis; a != nil {
		at := a.At.UTC()
		stored.AIAnalysis = &a.Raw
		stored.AIAnalysisDate = &at
		stored.AIModelUsed = &a.Model
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO emails (
			id, account_id, lead_id, message_id,
			sender, sender_name, subject, content,
			received_date, encoding, is_mass_mail, mass_mail_reason,
			ai_analysis, ai_analysis_date, ai_model_used, created_at
		) VALUES (
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?
		)
		ON CONFLICT(account_id, message_id) DO NOTHING`,
		stored.ID, stored.AccountID, stored.LeadID, stored.MessageID,
		stored.Sender, stored.SenderName, stored.Subject, stored.Content,
		stored.ReceivedDate, stored.Encoding, boolToInt(stored.IsMassMail), stored.MassMailReason,
		stored.AIAnalysis, stored.AIAnalysisDate, stored.AIModelUsed, stored.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting email: %w", MapSQLError(err))
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, fmt.Errorf("email %s: %w", e.MessageID, ErrDuplicate)
	}
	return stored, nil
}

func insertUnknownEmail(ctx context.Context, tx *sqlx.Tx, cycle EmailCycle) (*model.StoredEmail, error) {
	e := cycle.Email
	stored := &model.StoredEmail{
		ID:           uuid.New().String(),
		AccountID:    cycle.AccountID,
		MessageID:    nullString(e.MessageID),
		Sender:       e.SenderAddress,
		SenderName:   e.SenderDisplayName,
		Subject:      e.Subject,
		Content:      e.BodyText,
		ReceivedDate: e.ReceivedAt.UTC(),
		Encoding:     e.DetectedEncoding,
		CreatedAt:    time.Now().UTC(),
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO unknown_emails (
			id, account_id, message_id, sender, sender_name,
			subject, content, received_date, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, message_id) DO NOTHING`,
		stored.ID, stored.AccountID, stored.MessageID, stored.Sender, stored.SenderName,
		stored.Subject, stored.Content, stored.ReceivedDate, stored.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting unknown email: %w", MapSQLError(err))
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, fmt.Errorf("unknown email %s: %w", e.MessageID, ErrDuplicate)
	}
	return stored, nil
}

// markSpam moves a lead that sent mass mail to Spam.
func markSpam(ctx context.Context, tx *sqlx.Tx, lead *model.Lead) error {
	if lead.Status == model.LeadStatusSpam {
		return nil
	}

	lead.Status = model.LeadStatusSpam
	lead.UpdatedAt = time.Now().UTC()
	_, err := tx.ExecContext(ctx,
		"UPDATE leads SET status = ?, updated_at = ? WHERE id = ?",
		string(lead.Status), lead.UpdatedAt, lead.ID,
	)
	if err != nil {
		return fmt.Errorf("marking lead %s as spam: %w", lead.ID, err)
	}
	return nil
}

// replaceAIItems deletes the AI-generated items of an email and inserts
// items in their place.
func replaceAIItems(ctx context.Context, tx *sqlx.Tx, email *model.StoredEmail, items model.AIItems) error {
	for _, table := range []string{"tasks", "schedules", "opportunities"} {
		_, err := tx.ExecContext(ctx,
			"DELETE FROM "+table+" WHERE email_id = ? AND is_ai_generated = 1", email.ID)
		if err != nil {
			return fmt.Errorf("clearing %s for email %s: %w", table, email.ID, err)
		}
	}

	now := time.Now().UTC()
	leadID := &email.LeadID
	emailID := &email.ID

	for _, t := range items.Tasks {
		status := t.Status
		if status == "" {
			status = model.TaskStatusPending
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (
				id, account_id, lead_id, email_id, title, description,
				due_date, status, is_ai_generated, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			uuid.New().String(), email.AccountID, leadID, emailID, t.Title, t.Description,
			t.DueDate, status, now, now,
		)
		if err != nil {
			return fmt.Errorf("inserting task for email %s: %w", email.ID, err)
		}
	}

	for _, sc := range items.Schedules {
		status := sc.Status
		if status == "" {
			status = model.ScheduleStatusScheduled
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO schedules (
				id, account_id, lead_id, email_id, title, description,
				start_time, end_time, status, is_ai_generated, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
			uuid.New().String(), email.AccountID, leadID, emailID, sc.Title, sc.Description,
			sc.StartTime.UTC(), sc.EndTime.UTC(), status, now,
		)
		if err != nil {
			return fmt.Errorf("inserting schedule for email %s: %w", email.ID, err)
		}
	}

	for _, o := range items.Opportunities {
		stage := o.Stage
		if stage == "" {
			stage = model.OpportunityStageProspecting
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO opportunities (
				id, account_id, lead_id, email_id, name, stage,
				is_ai_generated, created_at
			) VALUES (?, ?, ?, ?, ?, ?, 1, ?)`,
			uuid.New().String(), email.AccountID, leadID, emailID, o.Name, stage, now,
		)
		if err != nil {
			return fmt.Errorf("inserting opportunity for email %s: %w", email.ID, err)
		}
	}

	return nil
}
