package sla

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/WilBtc/sentinel-triage/internal/findingstore"
	"github.com/WilBtc/sentinel-triage/internal/metrics"
	"github.com/WilBtc/sentinel-triage/internal/models"
)

// RecordStore is the slice of the SLA store the tracker needs
type RecordStore interface {
	ListActive(ctx context.Context) ([]*models.SLARecord, error)
	SetEscalation(ctx context.Context, record *models.SLARecord, level models.EscalationLevel) error
	Remove(ctx context.Context, tenantID, findingID string) error
}

// FindingReader checks whether a finding left its pending state
type FindingReader interface {
	GetFinding(ctx context.Context, tenantID, findingID string) (*models.Finding, error)
}

// AlertPublisher raises escalation alerts
type AlertPublisher interface {
	PublishAlert(ctx context.Context, event *models.AlertEvent) error
}

// Tracker sweeps open SLA records and fires escalation events as deadlines
// approach or pass. Warn fires when remaining time drops under 25% of the
// window, breach when the deadline passes. Each level fires at most once
// per finding: the level is persisted before the alert goes out, so
// repeated sweeps and crashes re-fire nothing. On breach the tracker only
// notifies; it never closes a finding.
type Tracker struct {
	records   RecordStore
	findings  FindingReader
	publisher AlertPublisher
	interval  time.Duration
	now       func() time.Time
}

func NewTracker(records RecordStore, findings FindingReader, publisher AlertPublisher, interval time.Duration) *Tracker {
	return &Tracker{
		records:   records,
		findings:  findings,
		publisher: publisher,
		interval:  interval,
		now:       time.Now,
	}
}

// Run sweeps on the configured interval until the context is cancelled
func (t *Tracker) Run(ctx context.Context) error {
	log.Printf("[SLA] Tracker running (sweep interval: %s)", t.interval)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[SLA] Tracker stopped")
			return ctx.Err()
		case <-ticker.C:
			t.Sweep(ctx)
		}
	}
}

// Sweep examines every open SLA record once. Cooperative: it may be
// interrupted between records without corrupting state, since each record
// commits its own escalation level atomically.
func (t *Tracker) Sweep(ctx context.Context) {
	records, err := t.records.ListActive(ctx)
	if err != nil {
		log.Printf("[SLA] Sweep failed to list records: %v", err)
		return
	}

	metrics.OpenSLARecords.Set(float64(len(records)))

	for _, record := range records {
		if ctx.Err() != nil {
			return
		}
		if err := t.sweepRecord(ctx, record); err != nil {
			log.Printf("[SLA] Failed to process record %s/%s: %v", record.TenantID, record.FindingID, err)
		}
	}
}

func (t *Tracker) sweepRecord(ctx context.Context, record *models.SLARecord) error {
	// Drop records whose finding a human already closed
	finding, err := t.findings.GetFinding(ctx, record.TenantID, record.FindingID)
	if err != nil {
		if errors.Is(err, findingstore.ErrNotFound) {
			return t.records.Remove(ctx, record.TenantID, record.FindingID)
		}
		return err
	}
	if finding.Status.Terminal() {
		log.Printf("[SLA] Finding %s resolved, removing record", finding.Ref())
		return t.records.Remove(ctx, record.TenantID, record.FindingID)
	}

	now := t.now()

	if record.BreachDue(now) {
		return t.escalate(ctx, record, models.EscalationBreach,
			"review deadline breached")
	}
	if record.WarnDue(now) {
		return t.escalate(ctx, record, models.EscalationWarn,
			"review deadline approaching")
	}
	return nil
}

// escalate persists the fired level, then publishes. Persist-first keeps
// each level at-most-once; the alert channel itself is at-least-once.
func (t *Tracker) escalate(ctx context.Context, record *models.SLARecord,
	level models.EscalationLevel, reason string) error {

	if err := t.records.SetEscalation(ctx, record, level); err != nil {
		return err
	}

	severity := string(record.Severity)
	if level == models.EscalationBreach {
		severity = elevated(record.Severity)
	}

	if err := t.publisher.PublishAlert(ctx, &models.AlertEvent{
		TenantID:  record.TenantID,
		FindingID: record.FindingID,
		Severity:  severity,
		Level:     string(level),
		Reason:    reason,
		Timestamp: t.now().Unix(),
	}); err != nil {
		return err
	}

	metrics.EscalationsTotal.WithLabelValues(string(level)).Inc()
	log.Printf("[SLA] Escalation %s fired for %s/%s (deadline: %s)",
		level, record.TenantID, record.FindingID, record.Deadline.Format(time.RFC3339))

	return nil
}

// elevated bumps the alert severity one step for breaches
func elevated(s models.Severity) string {
	switch s {
	case models.SeverityLow:
		return string(models.SeverityMedium)
	case models.SeverityMedium:
		return string(models.SeverityHigh)
	default:
		return string(models.SeverityCritical)
	}
}
