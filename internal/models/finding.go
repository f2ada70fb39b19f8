package models

import "time"

// Severity of a finding as reported by the scanners
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// FindingStatus tracks the triage lifecycle of a finding
type FindingStatus string

const (
	StatusUnverified    FindingStatus = "unverified"
	StatusAutoClosed    FindingStatus = "auto_closed"
	StatusAutoVerified  FindingStatus = "auto_verified"
	StatusPendingReview FindingStatus = "pending_review"
	StatusClosed        FindingStatus = "closed"
	StatusOverridden    FindingStatus = "overridden"
)

// Resolution recorded by a human when a finding reaches a terminal state
type Resolution string

const (
	ResolutionResolved      Resolution = "resolved"
	ResolutionFalsePositive Resolution = "false_positive"
)

// Finding is one scan result, owned by the external finding store.
// The pipeline reads findings and updates status/annotations only.
type Finding struct {
	TenantID string        `json:"tenant_id"`
	ID       string        `json:"id"` // unique per tenant+source
	Title    string        `json:"title"`
	Severity Severity      `json:"severity"`
	Status   FindingStatus `json:"status"`

	// Structured metadata from the scanner
	CVE                string  `json:"cve,omitempty"`
	ExploitProbability float64 `json:"exploit_probability"`
	ActiveExploit      bool    `json:"active_exploit"`
	AssetPath          string  `json:"asset_path"`
	Environment        string  `json:"environment"`

	// Set by a human when the finding is closed externally
	Resolution Resolution `json:"resolution,omitempty"`
	Annotation string     `json:"annotation,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ref identifies a finding across services
func (f *Finding) Ref() string {
	return f.TenantID + "/" + f.ID
}

// Terminal reports whether a human has closed the finding
func (s FindingStatus) Terminal() bool {
	return s == StatusClosed || s == StatusOverridden
}
