package models

import "time"

// EscalationLevel already fired for an SLA record
type EscalationLevel string

const (
	EscalationNone   EscalationLevel = "none"
	EscalationWarn   EscalationLevel = "warn"
	EscalationBreach EscalationLevel = "breach"
)

// SLARecord tracks the review deadline for an open finding. Deleted when
// the finding transitions to any closed state.
type SLARecord struct {
	TenantID  string   `json:"tenant_id"`
	FindingID string   `json:"finding_id"`
	Severity  Severity `json:"severity"`

	RegisteredAt time.Time `json:"registered_at"`
	Deadline     time.Time `json:"deadline"`

	Escalation EscalationLevel `json:"escalation"`
	Reason     string          `json:"reason"`
}

// Window returns the total deadline window
func (r *SLARecord) Window() time.Duration {
	return r.Deadline.Sub(r.RegisteredAt)
}

// WarnDue reports whether the warn level should fire: remaining time under
// a quarter of the total window, and nothing fired yet.
func (r *SLARecord) WarnDue(now time.Time) bool {
	if r.Escalation != EscalationNone {
		return false
	}
	remaining := r.Deadline.Sub(now)
	return remaining < r.Window()/4
}

// BreachDue reports whether the breach level should fire
func (r *SLARecord) BreachDue(now time.Time) bool {
	return r.Escalation != EscalationBreach && now.After(r.Deadline)
}
