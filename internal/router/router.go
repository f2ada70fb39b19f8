package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/WilBtc/sentinel-triage/internal/config"
	"github.com/WilBtc/sentinel-triage/internal/engine"
	"github.com/WilBtc/sentinel-triage/internal/findingstore"
	"github.com/WilBtc/sentinel-triage/internal/metrics"
	"github.com/WilBtc/sentinel-triage/internal/models"
)

// FindingStore is the slice of the external store API the router needs
type FindingStore interface {
	GetFinding(ctx context.Context, tenantID, findingID string) (*models.Finding, error)
	UpdateFindingStatus(ctx context.Context, tenantID, findingID string, status models.FindingStatus, annotation string) error
}

// DecisionStore persists decisions and answers idempotency checks
type DecisionStore interface {
	InsertDecision(ctx context.Context, d *models.Decision) error
	LatestDecision(ctx context.Context, tenantID, findingID string) (*models.Decision, error)
}

// PatternSource supplies candidate patterns and records first observations
type PatternSource interface {
	ListCandidates(ctx context.Context, tenantID string) ([]*models.Pattern, error)
	ObservePatterns(ctx context.Context, observed []models.Pattern) error
}

// SLARegistrar registers review deadlines
type SLARegistrar interface {
	Register(ctx context.Context, record *models.SLARecord) error
}

// Publisher raises review-pending and alert events
type Publisher interface {
	PublishReviewPending(ctx context.Context, event *models.ReviewPendingEvent) error
	PublishAlert(ctx context.Context, event *models.AlertEvent) error
}

// Evaluator produces a verdict for one finding
type Evaluator interface {
	Evaluate(ctx context.Context, finding *models.Finding, candidates []*models.Pattern) (*engine.Verdict, error)
}

const triageUnavailableNote = "automated triage unavailable"

// Router is the core orchestrator: it pulls queued findings, invokes the
// decision engine and calibrator, applies the action-threshold policy,
// writes the decision, and either closes the finding automatically or
// queues it for human review with an SLA deadline.
//
// One state transition per triage attempt; terminal states (closed,
// overridden) belong to humans and are only ever observed here.
type Router struct {
	cfg    *config.Config
	policy *config.Policy

	findings  FindingStore
	decisions DecisionStore
	patterns  PatternSource
	sla       SLARegistrar
	publisher Publisher
	engine    Evaluator

	ctx context.Context
	now func() time.Time
}

func New(ctx context.Context, cfg *config.Config, policy *config.Policy,
	findings FindingStore, decisions DecisionStore, patterns PatternSource,
	sla SLARegistrar, publisher Publisher, evaluator Evaluator) *Router {

	return &Router{
		cfg:       cfg,
		policy:    policy,
		findings:  findings,
		decisions: decisions,
		patterns:  patterns,
		sla:       sla,
		publisher: publisher,
		engine:    evaluator,
		ctx:       ctx,
		now:       time.Now,
	}
}

// Process handles one ingest event. It is the subscriber's partition
// handler: returning an error makes the partition retry this event in
// place, which is how a finding-store outage pauses a tenant partition
// without dropping or reordering anything.
func (r *Router) Process(event *models.IngestEvent) error {
	ctx := r.ctx

	finding, err := r.findings.GetFinding(ctx, event.TenantID, event.FindingID)
	if err != nil {
		if errors.Is(err, findingstore.ErrNotFound) {
			log.Printf("[Router] Finding %s/%s not found, skipping", event.TenantID, event.FindingID)
			return nil
		}
		return fmt.Errorf("finding store unavailable for %s/%s: %w", event.TenantID, event.FindingID, err)
	}

	if finding.Status.Terminal() {
		log.Printf("[Router] Finding %s already closed by a human, skipping", finding.Ref())
		return nil
	}

	// Idempotency against at-least-once delivery: a decision at or past
	// this attempt means the triage already happened. Re-apply the side
	// effects in case a crash interrupted them; they are all idempotent.
	latest, err := r.decisions.LatestDecision(ctx, event.TenantID, event.FindingID)
	if err != nil {
		return fmt.Errorf("failed idempotency check for %s: %w", finding.Ref(), err)
	}
	attempt := event.Attempt
	if attempt < 1 {
		attempt = 1
	}
	if latest != nil && attempt <= latest.Attempt {
		metrics.DuplicateDeliveries.Inc()
		log.Printf("[Router] Duplicate delivery for %s (attempt %d), re-applying side effects", finding.Ref(), attempt)
		if finding.Status == models.StatusUnverified {
			return r.applyDecision(ctx, finding, latest)
		}
		return nil
	}

	if finding.Status != models.StatusUnverified {
		metrics.DuplicateDeliveries.Inc()
		log.Printf("[Router] Finding %s is %s, nothing to triage", finding.Ref(), finding.Status)
		return nil
	}

	decision := r.decide(ctx, finding, attempt)

	if err := r.decisions.InsertDecision(ctx, decision); err != nil {
		return fmt.Errorf("failed to write decision for %s: %w", finding.Ref(), err)
	}
	metrics.DecisionsTotal.WithLabelValues(string(decision.Action)).Inc()

	return r.applyDecision(ctx, finding, decision)
}

// decide runs the engine and maps the verdict onto the threshold policy.
// Engine failure is absorbed here: the conservative fallback is always
// "flag a human", never a dropped finding and never a missing decision.
func (r *Router) decide(ctx context.Context, finding *models.Finding, attempt int) *models.Decision {
	decision := &models.Decision{
		ID:           uuid.NewString(),
		TenantID:     finding.TenantID,
		FindingID:    finding.ID,
		Attempt:      attempt,
		SourceStatus: finding.Status,
		Outcome:      models.OutcomePending,
		CreatedAt:    r.now().UTC(),
	}

	candidates, err := r.patterns.ListCandidates(ctx, finding.TenantID)
	if err != nil {
		log.Printf("[Router] Pattern lookup failed for %s: %v (triaging without calibration)", finding.Ref(), err)
	}

	verdict, err := r.engine.Evaluate(ctx, finding, candidates)
	if err != nil {
		log.Printf("[Router] Engine failed for %s: %v (forcing pending review)", finding.Ref(), err)
		decision.Classification = models.ClassificationUncertain
		decision.Action = models.ActionFlagForReview
		decision.Reasoning = triageUnavailableNote
		return decision
	}

	// Record the attribute observations so patterns exist for the
	// reconciler to learn on. Failure here loses nothing but a lazy create.
	if err := r.patterns.ObservePatterns(ctx, engine.ObservedPatterns(finding)); err != nil {
		log.Printf("[Router] Pattern observation failed for %s: %v", finding.Ref(), err)
	}

	decision.Classification = verdict.Classification
	decision.RawConfidence = verdict.RawConfidence
	decision.CalibratedConfidence = verdict.CalibratedConfidence
	decision.PatternIDs = verdict.PatternIDs()
	decision.Reasoning = verdict.Reasoning

	autoClose, autoVerify := r.policy.Thresholds(finding.TenantID,
		r.cfg.AutoCloseThreshold, r.cfg.AutoVerifyThreshold)

	severity := finding.Severity
	fc := decision.CalibratedConfidence

	switch {
	case fc >= autoClose && (severity == models.SeverityMedium || severity == models.SeverityLow):
		if verdict.Classification == models.ClassificationFalsePositive {
			decision.Action = models.ActionAutoCloseFP
		} else {
			decision.Action = models.ActionAutoCloseValid
		}
		decision.SpotCheck = engine.InSample(finding.TenantID, finding.ID, r.cfg.SpotCheckPercent)

	case fc >= autoVerify:
		decision.Action = models.ActionEscalate
		switch severity {
		case models.SeverityCritical:
			decision.MandatoryConfirm = true
		case models.SeverityHigh:
			decision.MandatoryConfirm = engine.InSample(finding.TenantID, finding.ID, r.cfg.HighSamplePercent)
		}

	default:
		decision.Action = models.ActionFlagForReview
	}

	return decision
}

// applyDecision performs the status transition and the follow-up effects.
// Every step is idempotent, so this is also the crash-recovery path taken
// on redelivery.
func (r *Router) applyDecision(ctx context.Context, finding *models.Finding, decision *models.Decision) error {
	status := statusFor(decision.Action)

	annotation := decision.Reasoning

	if err := r.findings.UpdateFindingStatus(ctx, finding.TenantID, finding.ID, status, annotation); err != nil {
		return fmt.Errorf("failed to update status for %s: %w", finding.Ref(), err)
	}

	switch status {
	case models.StatusPendingReview:
		record := r.newSLARecord(finding, "awaiting human review")
		if err := r.sla.Register(ctx, record); err != nil {
			return fmt.Errorf("failed to register sla for %s: %w", finding.Ref(), err)
		}
		if err := r.publisher.PublishReviewPending(ctx, &models.ReviewPendingEvent{
			TenantID:  finding.TenantID,
			FindingID: finding.ID,
			Severity:  string(finding.Severity),
			Deadline:  record.Deadline.Unix(),
			Reason:    annotation,
			Timestamp: r.now().Unix(),
		}); err != nil {
			return fmt.Errorf("failed to publish review pending for %s: %w", finding.Ref(), err)
		}

	case models.StatusAutoVerified:
		if decision.MandatoryConfirm {
			record := r.newSLARecord(finding, "mandatory confirmation of auto-verified finding")
			if err := r.sla.Register(ctx, record); err != nil {
				return fmt.Errorf("failed to register sla for %s: %w", finding.Ref(), err)
			}
		}
		// Critical and high findings always alert; sampling gates only the
		// mandatory-confirmation deadline.
		if finding.Severity == models.SeverityCritical || finding.Severity == models.SeverityHigh {
			reason := "high-severity finding verified automatically"
			if decision.MandatoryConfirm {
				reason = "auto-verified finding requires human confirmation"
			}
			if err := r.publisher.PublishAlert(ctx, &models.AlertEvent{
				TenantID:  finding.TenantID,
				FindingID: finding.ID,
				Severity:  string(finding.Severity),
				Reason:    reason,
				Timestamp: r.now().Unix(),
			}); err != nil {
				return fmt.Errorf("failed to publish alert for %s: %w", finding.Ref(), err)
			}
		}

	case models.StatusAutoClosed:
		if decision.SpotCheck {
			log.Printf("[Router] Finding %s auto-closed, selected for weekly spot check", finding.Ref())
		}
	}

	log.Printf("[Router] Finding %s: %s (action: %s, confidence: %.2f)",
		finding.Ref(), status, decision.Action, decision.CalibratedConfidence)

	return nil
}

func (r *Router) newSLARecord(finding *models.Finding, reason string) *models.SLARecord {
	registered := r.now().UTC()
	window := r.policy.SLAWindow(finding.TenantID, finding.Severity)

	return &models.SLARecord{
		TenantID:     finding.TenantID,
		FindingID:    finding.ID,
		Severity:     finding.Severity,
		RegisteredAt: registered,
		Deadline:     registered.Add(window),
		Escalation:   models.EscalationNone,
		Reason:       reason,
	}
}

func statusFor(action models.Action) models.FindingStatus {
	switch action {
	case models.ActionAutoCloseValid, models.ActionAutoCloseFP:
		return models.StatusAutoClosed
	case models.ActionEscalate:
		return models.StatusAutoVerified
	default:
		return models.StatusPendingReview
	}
}
