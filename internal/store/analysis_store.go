package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/leadmail/internal/model"
)

// SaveBehaviorAnalysis records an analysis of a lead's correspondence.
func (s *SQLiteStore) SaveBehaviorAnalysis(ctx context.Context, a *model.BehaviorAnalysis) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.AnalyzedAt.IsZero() {
		a.AnalyzedAt = time.Now()
	}
	a.AnalyzedAt = a.AnalyzedAt.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO behavior_analyses (id, lead_id, result, model, analyzed_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.LeadID, a.Result, a.Model, a.AnalyzedAt,
	)
	if err != nil {
		return fmt.Errorf("saving behavior analysis for lead %s: %w", a.LeadID, MapSQLError(err))
	}
	return nil
}

// LatestBehaviorAnalysis returns the most recent analysis of a lead.
func (s *SQLiteStore) LatestBehaviorAnalysis(ctx context.Context, leadID string) (*model.BehaviorAnalysis, error) {
	var a model.BehaviorAnalysis
	err := s.db.GetContext(ctx, &a, `
		SELECT * FROM behavior_analyses
		WHERE lead_id = ?
		ORDER BY analyzed_at DESC
		LIMIT 1`, leadID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("behavior analysis for lead %s: %w", leadID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting behavior analysis for lead %s: %w", leadID, err)
	}
	return &a, nil
}
