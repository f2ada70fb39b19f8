package models

import "time"

// Classification assigned by the decision engine
type Classification string

const (
	ClassificationValid         Classification = "valid"
	ClassificationFalsePositive Classification = "false_positive"
	ClassificationUncertain     Classification = "uncertain"
)

// Action chosen by the triage router
type Action string

const (
	ActionAutoCloseValid Action = "auto_close_valid"
	ActionAutoCloseFP    Action = "auto_close_fp"
	ActionEscalate       Action = "escalate"
	ActionFlagForReview  Action = "flag_for_review"
)

// Outcome of a decision, filled in later by the feedback reconciler
type Outcome string

const (
	OutcomePending    Outcome = "pending"
	OutcomeConfirmed  Outcome = "confirmed"
	OutcomeOverridden Outcome = "overridden"
)

// Decision is one triage outcome for one finding. Immutable once written
// except for the Outcome field. Re-triage produces a new row with a higher
// attempt number, never a mutation.
type Decision struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenant_id"`
	FindingID string `json:"finding_id"`
	Attempt   int    `json:"attempt"`

	// Finding status at the time the decision was made, used as the
	// idempotency key against duplicate broker deliveries
	SourceStatus FindingStatus `json:"source_status"`

	Classification       Classification `json:"classification"`
	RawConfidence        float64        `json:"raw_confidence"`
	CalibratedConfidence float64        `json:"calibrated_confidence"`
	PatternIDs           []string       `json:"pattern_ids"`
	Action               Action         `json:"action"`
	Reasoning            string         `json:"reasoning"`

	// Deterministic sampling flags
	SpotCheck        bool `json:"spot_check"`        // weekly spot-check sample of auto-closed findings
	MandatoryConfirm bool `json:"mandatory_confirm"` // critical always, high 20% sample

	Outcome   Outcome   `json:"outcome"`
	CreatedAt time.Time `json:"created_at"`
}

// FeedbackEvent links a decision to a later human edit. Append-only.
type FeedbackEvent struct {
	ID          string        `json:"id"`
	DecisionID  string        `json:"decision_id"`
	TenantID    string        `json:"tenant_id"`
	FindingID   string        `json:"finding_id"`
	FinalStatus FindingStatus `json:"final_status"`
	Resolution  Resolution    `json:"resolution,omitempty"`
	Outcome     Outcome       `json:"outcome"`
	PatternIDs  []string      `json:"pattern_ids"` // patterns whose multipliers were adjusted
	CreatedAt   time.Time     `json:"created_at"`
}
