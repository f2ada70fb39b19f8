package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testRecord(window time.Duration) (*SLARecord, time.Time) {
	registered := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &SLARecord{
		TenantID:     "acme",
		FindingID:    "f-1",
		Severity:     SeverityHigh,
		RegisteredAt: registered,
		Deadline:     registered.Add(window),
		Escalation:   EscalationNone,
	}, registered
}

func TestSLARecord_WarnDue(t *testing.T) {
	record, registered := testRecord(4 * time.Hour)

	// Plenty of time left
	assert.False(t, record.WarnDue(registered.Add(1*time.Hour)))

	// Under 25% of the window remaining
	assert.True(t, record.WarnDue(registered.Add(3*time.Hour+10*time.Minute)))

	// Already warned: never again
	record.Escalation = EscalationWarn
	assert.False(t, record.WarnDue(registered.Add(3*time.Hour+30*time.Minute)))
}

func TestSLARecord_BreachDue(t *testing.T) {
	record, registered := testRecord(4 * time.Hour)

	assert.False(t, record.BreachDue(registered.Add(3*time.Hour)))
	assert.True(t, record.BreachDue(registered.Add(5*time.Hour)))

	// Warn already fired does not block the breach
	record.Escalation = EscalationWarn
	assert.True(t, record.BreachDue(registered.Add(5*time.Hour)))

	// Breach fires only once
	record.Escalation = EscalationBreach
	assert.False(t, record.BreachDue(registered.Add(6*time.Hour)))
}
