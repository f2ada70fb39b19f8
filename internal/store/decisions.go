package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/WilBtc/sentinel-triage/internal/models"
)

const decisionColumns = `id, tenant_id, finding_id, attempt, source_status,
	classification, raw_confidence, calibrated_confidence, pattern_ids,
	action, reasoning, spot_check, mandatory_confirm, outcome, created_at`

// InsertDecision writes one immutable decision row
func (s *Store) InsertDecision(ctx context.Context, d *models.Decision) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO decisions (`+decisionColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		d.ID, d.TenantID, d.FindingID, d.Attempt, d.SourceStatus,
		d.Classification, d.RawConfidence, d.CalibratedConfidence, d.PatternIDs,
		d.Action, d.Reasoning, d.SpotCheck, d.MandatoryConfirm, d.Outcome, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}
	return nil
}

// LatestDecision returns the most recent decision for a finding, or nil
func (s *Store) LatestDecision(ctx context.Context, tenantID, findingID string) (*models.Decision, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+decisionColumns+` FROM decisions
		 WHERE tenant_id = $1 AND finding_id = $2
		 ORDER BY attempt DESC LIMIT 1`,
		tenantID, findingID)

	d, err := scanDecision(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

// CountAttempts returns how many triage attempts exist for a finding
func (s *Store) CountAttempts(ctx context.Context, tenantID, findingID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM decisions WHERE tenant_id = $1 AND finding_id = $2`,
		tenantID, findingID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return count, nil
}

// ListPendingDecisions returns decisions the reconciler has not settled yet
func (s *Store) ListPendingDecisions(ctx context.Context, limit int) ([]*models.Decision, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+decisionColumns+` FROM decisions
		 WHERE outcome = 'pending'
		 ORDER BY created_at ASC LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending decisions: %w", err)
	}
	defer rows.Close()

	var decisions []*models.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// SettleDecision commits one reconciliation unit atomically: pattern
// updates, the feedback event, and the decision outcome flip. The
// outcome = 'pending' guard makes the whole unit idempotent, so a partial
// batch followed by a restart never double-counts.
func (s *Store) SettleDecision(ctx context.Context, decision *models.Decision,
	outcome models.Outcome, patterns []*models.Pattern, event *models.FeedbackEvent) error {

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin settle transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE decisions SET outcome = $1
		 WHERE id = $2 AND outcome = 'pending'`,
		outcome, decision.ID)
	if err != nil {
		return fmt.Errorf("failed to update decision outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already settled by an earlier (possibly interrupted) run
		return nil
	}

	for _, p := range patterns {
		if _, err := tx.Exec(ctx,
			`UPDATE patterns SET success_count = $1, failure_count = $2,
				accuracy = $3, multiplier = $4, updated_at = $5
			 WHERE id = $6`,
			p.SuccessCount, p.FailureCount, p.Accuracy, p.Multiplier,
			p.UpdatedAt, p.ID); err != nil {
			return fmt.Errorf("failed to update pattern %s: %w", p.ID, err)
		}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO feedback_events
			(id, decision_id, tenant_id, finding_id, final_status, resolution, outcome, pattern_ids, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		event.ID, event.DecisionID, event.TenantID, event.FindingID,
		event.FinalStatus, event.Resolution, event.Outcome, event.PatternIDs,
		event.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert feedback event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit settle transaction: %w", err)
	}
	return nil
}

func scanDecision(row pgx.Row) (*models.Decision, error) {
	d := &models.Decision{}
	err := row.Scan(&d.ID, &d.TenantID, &d.FindingID, &d.Attempt, &d.SourceStatus,
		&d.Classification, &d.RawConfidence, &d.CalibratedConfidence, &d.PatternIDs,
		&d.Action, &d.Reasoning, &d.SpotCheck, &d.MandatoryConfirm, &d.Outcome, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan decision: %w", err)
	}
	return d, nil
}
