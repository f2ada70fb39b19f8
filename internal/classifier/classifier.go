package classifier

import (
	"context"
	"errors"

	"github.com/WilBtc/sentinel-triage/internal/models"
)

// Classification errors. Timeout and malformed output both degrade to the
// rule-based fallback; they never surface to the router.
var (
	ErrReasoningTimeout = errors.New("reasoning engine timed out")
	ErrMalformedOutput  = errors.New("reasoning engine returned malformed output")
)

// Request is the structured payload sent to a classifier: one finding plus
// the historical patterns that matched it.
type Request struct {
	Finding  *models.Finding   `json:"finding"`
	Patterns []*models.Pattern `json:"patterns"`
}

// Result is the structured verdict of a classifier
type Result struct {
	Classification    models.Classification `json:"classification"`
	Confidence        float64               `json:"confidence"`
	Reasoning         string                `json:"reasoning"`
	RecommendedAction models.Action         `json:"recommended_action"`
}

// Classifier produces an initial classification for a finding. The remote
// implementation is a black box; the rule-based one is deterministic.
type Classifier interface {
	Classify(ctx context.Context, req *Request) (*Result, error)
	Name() string
}

// Valid reports whether a result is structurally usable
func (r *Result) Valid() bool {
	if r == nil {
		return false
	}
	switch r.Classification {
	case models.ClassificationValid, models.ClassificationFalsePositive, models.ClassificationUncertain:
	default:
		return false
	}
	return r.Confidence >= 0.0 && r.Confidence <= 1.0
}
