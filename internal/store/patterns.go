package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/WilBtc/sentinel-triage/internal/models"
)

const patternColumns = `id, type, value, tenant_id, success_count, failure_count,
	accuracy, multiplier, archived, updated_at`

// ListCandidates returns every non-archived pattern visible to a tenant:
// the tenant's own patterns plus globals.
func (s *Store) ListCandidates(ctx context.Context, tenantID string) ([]*models.Pattern, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+patternColumns+` FROM patterns
		 WHERE (tenant_id = $1 OR tenant_id = '') AND NOT archived`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}
	defer rows.Close()

	return scanPatterns(rows)
}

// ObservePatterns lazily creates pattern rows for attributes seen for the
// first time. Existing rows are untouched: counts and multipliers belong to
// the reconciler.
func (s *Store) ObservePatterns(ctx context.Context, observed []models.Pattern) error {
	batch := &pgx.Batch{}
	for _, p := range observed {
		batch.Queue(
			`INSERT INTO patterns (id, type, value, tenant_id, multiplier, updated_at)
			 VALUES ($1, $2, $3, $4, 1.0, $5)
			 ON CONFLICT (type, value, tenant_id) DO NOTHING`,
			uuid.NewString(), p.Type, p.Value, p.TenantID, time.Now().UTC())
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range observed {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to observe pattern: %w", err)
		}
	}
	return nil
}

// GetPatterns fetches patterns by ID, preserving rows that still exist
func (s *Store) GetPatterns(ctx context.Context, ids []string) ([]*models.Pattern, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+patternColumns+` FROM patterns WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get patterns: %w", err)
	}
	defer rows.Close()

	return scanPatterns(rows)
}

// ArchiveStale flags patterns whose accuracy has sat below the archive
// threshold for the full archival window. Rows are never deleted; archived
// patterns form the manual-pruning queue.
func (s *Store) ArchiveStale(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE patterns SET archived = TRUE
		 WHERE NOT archived
		   AND success_count + failure_count > 0
		   AND accuracy < $1
		   AND updated_at <= $2`,
		models.ArchiveAccuracyThreshold, now.Add(-models.ArchiveAfter))
	if err != nil {
		return 0, fmt.Errorf("failed to archive stale patterns: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanPatterns(rows pgx.Rows) ([]*models.Pattern, error) {
	var patterns []*models.Pattern
	for rows.Next() {
		p := &models.Pattern{}
		if err := rows.Scan(&p.ID, &p.Type, &p.Value, &p.TenantID,
			&p.SuccessCount, &p.FailureCount, &p.Accuracy, &p.Multiplier,
			&p.Archived, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}
