package models

import "time"

// PatternType classifies what finding attribute a pattern matches against
type PatternType string

const (
	PatternTitleKeyword     PatternType = "title_keyword"
	PatternCVE              PatternType = "cve"
	PatternExploitIndicator PatternType = "has_exploit_indicator"
	PatternEnvironment      PatternType = "environment"
	PatternAssetPath        PatternType = "asset_path"
	PatternTenantFPRate     PatternType = "tenant_fp_rate"
)

// Multiplier bounds enforced on every feedback nudge
const (
	MultiplierFloor = 0.5
	MultiplierCeil  = 1.5

	// Relative nudge applied per feedback event
	MultiplierNudge = 0.05

	// Patterns below this accuracy for ArchiveAfter are flagged for manual pruning
	ArchiveAccuracyThreshold = 0.70
	ArchiveAfter             = 90 * 24 * time.Hour
)

// Pattern is a learned accuracy signal, keyed by type/value and optionally
// scoped to a tenant (empty TenantID = global). Created lazily on first
// observation, mutated only by the feedback reconciler, never deleted.
type Pattern struct {
	ID       string      `json:"id"`
	Type     PatternType `json:"type"`
	Value    string      `json:"value"`
	TenantID string      `json:"tenant_id,omitempty"` // empty = global

	SuccessCount int64   `json:"success_count"`
	FailureCount int64   `json:"failure_count"`
	Accuracy     float64 `json:"accuracy"`
	Multiplier   float64 `json:"multiplier"`

	Archived  bool      `json:"archived"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key identifies a pattern within its scope
func (p *Pattern) Key() string {
	return string(p.Type) + ":" + p.Value
}

// RecordOutcome applies one feedback event: bumps the success or failure
// count, recomputes the accuracy rate and nudges the multiplier by the
// bounded step. The invariant accuracy == success/(success+failure) holds
// after every call.
func (p *Pattern) RecordOutcome(success bool, now time.Time) {
	if success {
		p.SuccessCount++
		p.Multiplier += MultiplierNudge
	} else {
		p.FailureCount++
		p.Multiplier -= MultiplierNudge
	}

	if p.Multiplier > MultiplierCeil {
		p.Multiplier = MultiplierCeil
	}
	if p.Multiplier < MultiplierFloor {
		p.Multiplier = MultiplierFloor
	}

	total := p.SuccessCount + p.FailureCount
	if total > 0 {
		p.Accuracy = float64(p.SuccessCount) / float64(total)
	}

	p.UpdatedAt = now
}

// Stale reports whether the pattern qualifies for the manual-pruning queue:
// accuracy below the archive threshold with no improvement for 90+ days.
func (p *Pattern) Stale(now time.Time) bool {
	total := p.SuccessCount + p.FailureCount
	if total == 0 {
		return false
	}
	return p.Accuracy < ArchiveAccuracyThreshold && now.Sub(p.UpdatedAt) >= ArchiveAfter
}
