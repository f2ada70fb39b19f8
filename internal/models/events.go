package models

// IngestEvent is published on triage.ingest.<tenant> when the finding store
// has a new unverified finding. At-least-once delivery; consumers are
// idempotent keyed on (tenant, finding, attempt).
type IngestEvent struct {
	TenantID  string `json:"tenant_id"`
	FindingID string `json:"finding_id"`
	Attempt   int    `json:"attempt"`
	Timestamp int64  `json:"timestamp"`
}

// ReviewPendingEvent is published on triage.review.<tenant> when a finding
// is queued for human review with an SLA deadline.
type ReviewPendingEvent struct {
	TenantID  string `json:"tenant_id"`
	FindingID string `json:"finding_id"`
	Severity  string `json:"severity"`
	Deadline  int64  `json:"deadline"`
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}

// AlertEvent is published on triage.alert.<tenant> for high-severity
// verifications and SLA escalations.
type AlertEvent struct {
	TenantID  string `json:"tenant_id"`
	FindingID string `json:"finding_id"`
	Severity  string `json:"severity"`
	Level     string `json:"level,omitempty"` // escalation level, if SLA-driven
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}
