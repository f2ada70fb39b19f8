package sla

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WilBtc/sentinel-triage/internal/findingstore"
	"github.com/WilBtc/sentinel-triage/internal/models"
)

// --- fakes ---

type fakeRecordStore struct {
	records map[string]*models.SLARecord
}

func (f *fakeRecordStore) ListActive(_ context.Context) ([]*models.SLARecord, error) {
	var out []*models.SLARecord
	for _, r := range f.records {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRecordStore) SetEscalation(_ context.Context, record *models.SLARecord, level models.EscalationLevel) error {
	record.Escalation = level
	f.records[record.TenantID+"/"+record.FindingID] = record
	return nil
}

func (f *fakeRecordStore) Remove(_ context.Context, tenantID, findingID string) error {
	delete(f.records, tenantID+"/"+findingID)
	return nil
}

type fakeFindingReader struct {
	findings map[string]*models.Finding
}

func (f *fakeFindingReader) GetFinding(_ context.Context, tenantID, findingID string) (*models.Finding, error) {
	finding, ok := f.findings[tenantID+"/"+findingID]
	if !ok {
		return nil, findingstore.ErrNotFound
	}
	return finding, nil
}

type fakeAlertPublisher struct {
	alerts []*models.AlertEvent
}

func (f *fakeAlertPublisher) PublishAlert(_ context.Context, event *models.AlertEvent) error {
	f.alerts = append(f.alerts, event)
	return nil
}

// --- harness ---

var sweepBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type trackerHarness struct {
	tracker   *Tracker
	records   *fakeRecordStore
	findings  *fakeFindingReader
	publisher *fakeAlertPublisher
	clock     *time.Time
}

// newTrackerHarness sets up one pending-review finding with a 4h window
// registered at sweepBase.
func newTrackerHarness(severity models.Severity) *trackerHarness {
	record := &models.SLARecord{
		TenantID:     "acme",
		FindingID:    "f-100",
		Severity:     severity,
		RegisteredAt: sweepBase,
		Deadline:     sweepBase.Add(4 * time.Hour),
		Escalation:   models.EscalationNone,
	}

	h := &trackerHarness{
		records: &fakeRecordStore{records: map[string]*models.SLARecord{"acme/f-100": record}},
		findings: &fakeFindingReader{findings: map[string]*models.Finding{
			"acme/f-100": {TenantID: "acme", ID: "f-100", Severity: severity, Status: models.StatusPendingReview},
		}},
		publisher: &fakeAlertPublisher{},
	}

	now := sweepBase
	h.clock = &now
	h.tracker = NewTracker(h.records, h.findings, h.publisher, time.Minute)
	h.tracker.now = func() time.Time { return *h.clock }

	return h
}

func (h *trackerHarness) sweepAt(offset time.Duration) {
	*h.clock = sweepBase.Add(offset)
	h.tracker.Sweep(context.Background())
}

// --- tests ---

func TestSweep_WarnFiresOnceInsideFinalQuarter(t *testing.T) {
	h := newTrackerHarness(models.SeverityHigh)

	h.sweepAt(1 * time.Hour) // plenty of time left
	assert.Empty(t, h.publisher.alerts)

	h.sweepAt(3*time.Hour + 15*time.Minute) // 45m of 4h left
	require.Len(t, h.publisher.alerts, 1)
	alert := h.publisher.alerts[0]
	assert.Equal(t, string(models.EscalationWarn), alert.Level)
	assert.Equal(t, string(models.SeverityHigh), alert.Severity)

	h.sweepAt(3*time.Hour + 30*time.Minute)
	h.sweepAt(3*time.Hour + 45*time.Minute)
	assert.Len(t, h.publisher.alerts, 1, "warn fires at most once per finding")
}

func TestSweep_BreachFiresOnceWithElevatedSeverity(t *testing.T) {
	h := newTrackerHarness(models.SeverityMedium)

	h.sweepAt(3*time.Hour + 30*time.Minute)
	require.Len(t, h.publisher.alerts, 1, "warn first")

	h.sweepAt(4*time.Hour + 1*time.Minute)
	require.Len(t, h.publisher.alerts, 2)
	breach := h.publisher.alerts[1]
	assert.Equal(t, string(models.EscalationBreach), breach.Level)
	assert.Equal(t, string(models.SeverityHigh), breach.Severity, "breach alerts one severity step up")

	h.sweepAt(5 * time.Hour)
	h.sweepAt(24 * time.Hour)
	assert.Len(t, h.publisher.alerts, 2, "breach fires at most once")

	// The record stays open: breach never closes the finding
	assert.Len(t, h.records.records, 1)
	assert.Equal(t, models.StatusPendingReview, h.findings.findings["acme/f-100"].Status)
}

func TestSweep_BreachSkipsWarnWhenDeadlineAlreadyPassed(t *testing.T) {
	h := newTrackerHarness(models.SeverityCritical)

	// Tracker was down across the whole window; first sweep is post-deadline
	h.sweepAt(6 * time.Hour)

	require.Len(t, h.publisher.alerts, 1)
	assert.Equal(t, string(models.EscalationBreach), h.publisher.alerts[0].Level)
	assert.Equal(t, string(models.SeverityCritical), h.publisher.alerts[0].Severity)
}

func TestSweep_ResolvedFindingRemovesRecord(t *testing.T) {
	h := newTrackerHarness(models.SeverityHigh)
	h.findings.findings["acme/f-100"].Status = models.StatusClosed

	h.sweepAt(3*time.Hour + 30*time.Minute)

	assert.Empty(t, h.publisher.alerts, "closed findings never escalate")
	assert.Empty(t, h.records.records)
}

func TestSweep_VanishedFindingRemovesRecord(t *testing.T) {
	h := newTrackerHarness(models.SeverityHigh)
	delete(h.findings.findings, "acme/f-100")

	h.sweepAt(5 * time.Hour)

	assert.Empty(t, h.publisher.alerts)
	assert.Empty(t, h.records.records)
}

func TestElevated(t *testing.T) {
	assert.Equal(t, string(models.SeverityMedium), elevated(models.SeverityLow))
	assert.Equal(t, string(models.SeverityHigh), elevated(models.SeverityMedium))
	assert.Equal(t, string(models.SeverityCritical), elevated(models.SeverityHigh))
	assert.Equal(t, string(models.SeverityCritical), elevated(models.SeverityCritical))
}
