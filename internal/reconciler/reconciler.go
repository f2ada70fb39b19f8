package reconciler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/WilBtc/sentinel-triage/internal/findingstore"
	"github.com/WilBtc/sentinel-triage/internal/metrics"
	"github.com/WilBtc/sentinel-triage/internal/models"
)

const (
	batchLimit = 500
	leaseTTL   = 30 * time.Minute
)

// DecisionSource is the slice of the relational store the reconciler needs
type DecisionSource interface {
	ListPendingDecisions(ctx context.Context, limit int) ([]*models.Decision, error)
	GetPatterns(ctx context.Context, ids []string) ([]*models.Pattern, error)
	SettleDecision(ctx context.Context, decision *models.Decision, outcome models.Outcome,
		patterns []*models.Pattern, event *models.FeedbackEvent) error
	ArchiveStale(ctx context.Context, now time.Time) (int64, error)
}

// FindingReader reads terminal finding state from the external store
type FindingReader interface {
	GetFinding(ctx context.Context, tenantID, findingID string) (*models.Finding, error)
}

// LeaseStore provides the single-flight lock and SLA record cleanup
type LeaseStore interface {
	AcquireLease(ctx context.Context, holder string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, holder string) error
	Remove(ctx context.Context, tenantID, findingID string) error
}

// Reconciler is the closed-loop learning job. Every run it compares pending
// decisions against the human-confirmed terminal state of their findings,
// settles each as confirmed or overridden, and feeds the result back into
// the pattern store with the bounded multiplier nudge.
//
// Crash safety comes from per-decision idempotency: a decision is only
// counted while its outcome is still pending, and the settle is one
// transaction, so a partial run followed by a restart re-processes only
// unfinished decisions and never double-counts.
type Reconciler struct {
	decisions DecisionSource
	findings  FindingReader
	lease     LeaseStore
	interval  time.Duration
	holder    string
	now       func() time.Time
}

func New(decisions DecisionSource, findings FindingReader, lease LeaseStore, interval time.Duration) *Reconciler {
	return &Reconciler{
		decisions: decisions,
		findings:  findings,
		lease:     lease,
		interval:  interval,
		holder:    uuid.NewString(),
		now:       time.Now,
	}
}

// Run executes reconciliation on the configured interval until cancelled
func (r *Reconciler) Run(ctx context.Context) error {
	log.Printf("[Reconciler] Running (interval: %s)", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Reconciler] Stopped")
			return ctx.Err()
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs one reconciliation batch under the single-flight lease.
// Only one reconciler instance is ever active across the deployment; the
// router only reads patterns, so no further locking is needed.
func (r *Reconciler) RunOnce(ctx context.Context) {
	acquired, err := r.lease.AcquireLease(ctx, r.holder, leaseTTL)
	if err != nil {
		log.Printf("[Reconciler] Failed to acquire lease: %v", err)
		return
	}
	if !acquired {
		log.Printf("[Reconciler] Another instance holds the lease, skipping run")
		return
	}
	defer func() {
		if err := r.lease.ReleaseLease(context.WithoutCancel(ctx), r.holder); err != nil {
			log.Printf("[Reconciler] Failed to release lease: %v", err)
		}
	}()

	pending, err := r.decisions.ListPendingDecisions(ctx, batchLimit)
	if err != nil {
		log.Printf("[Reconciler] Failed to list pending decisions: %v", err)
		return
	}

	var settled int
	for _, decision := range pending {
		if ctx.Err() != nil {
			return
		}
		ok, err := r.reconcileDecision(ctx, decision)
		if err != nil {
			// Individual failures are skipped, not fatal to the batch
			log.Printf("[Reconciler] Failed to reconcile decision %s: %v (skipping)", decision.ID, err)
			continue
		}
		if ok {
			settled++
		}
	}

	archived, err := r.decisions.ArchiveStale(ctx, r.now())
	if err != nil {
		log.Printf("[Reconciler] Failed to archive stale patterns: %v", err)
	} else if archived > 0 {
		log.Printf("[Reconciler] Flagged %d stale patterns for manual pruning", archived)
	}

	log.Printf("[Reconciler] Run complete: %d pending examined, %d settled", len(pending), settled)
}

// reconcileDecision settles one decision if its finding reached a terminal
// state. Returns true when a feedback event was written.
func (r *Reconciler) reconcileDecision(ctx context.Context, decision *models.Decision) (bool, error) {
	finding, err := r.findings.GetFinding(ctx, decision.TenantID, decision.FindingID)
	if err != nil {
		if errors.Is(err, findingstore.ErrNotFound) {
			log.Printf("[Reconciler] Finding %s/%s gone, leaving decision pending", decision.TenantID, decision.FindingID)
			return false, nil
		}
		return false, err
	}

	if !finding.Status.Terminal() {
		return false, nil // human has not weighed in yet
	}

	outcome := Compare(decision, finding)
	confirmed := outcome == models.OutcomeConfirmed

	patterns, err := r.decisions.GetPatterns(ctx, decision.PatternIDs)
	if err != nil {
		return false, err
	}
	now := r.now().UTC()
	for _, p := range patterns {
		p.RecordOutcome(confirmed, now)
	}

	event := &models.FeedbackEvent{
		ID:          uuid.NewString(),
		DecisionID:  decision.ID,
		TenantID:    decision.TenantID,
		FindingID:   decision.FindingID,
		FinalStatus: finding.Status,
		Resolution:  finding.Resolution,
		Outcome:     outcome,
		PatternIDs:  decision.PatternIDs,
		CreatedAt:   now,
	}

	if err := r.decisions.SettleDecision(ctx, decision, outcome, patterns, event); err != nil {
		return false, err
	}

	// The finding is closed; its escalation timer is done
	if err := r.lease.Remove(ctx, decision.TenantID, decision.FindingID); err != nil {
		log.Printf("[Reconciler] Failed to remove sla record for %s/%s: %v", decision.TenantID, decision.FindingID, err)
	}

	metrics.ReconciledTotal.WithLabelValues(string(outcome)).Inc()
	log.Printf("[Reconciler] Decision %s settled: %s (finding %s/%s is %s)",
		decision.ID, outcome, decision.TenantID, decision.FindingID, finding.Status)

	return true, nil
}

// Compare infers whether the automated decision agreed with the eventual
// human disposition. An explicit human override always counts as
// overridden; an ordinary close is compared against the classification via
// the recorded resolution. Uncertain decisions carry no claim to contradict,
// so they follow the terminal status alone.
func Compare(decision *models.Decision, finding *models.Finding) models.Outcome {
	if finding.Status == models.StatusOverridden {
		return models.OutcomeOverridden
	}

	switch finding.Resolution {
	case models.ResolutionResolved:
		if decision.Classification == models.ClassificationValid {
			return models.OutcomeConfirmed
		}
		if decision.Classification == models.ClassificationFalsePositive {
			return models.OutcomeOverridden
		}
	case models.ResolutionFalsePositive:
		if decision.Classification == models.ClassificationFalsePositive {
			return models.OutcomeConfirmed
		}
		if decision.Classification == models.ClassificationValid {
			return models.OutcomeOverridden
		}
	}

	return models.OutcomeConfirmed
}
