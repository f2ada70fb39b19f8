package classifier

import (
	"context"
	"fmt"

	"github.com/WilBtc/sentinel-triage/internal/models"
)

// RuleClassifier is the deterministic fallback used when the reasoning
// engine times out or returns garbage. It is intentionally conservative:
// confidence never reaches the auto-close band, so findings it classifies
// either get verified with an SLA or go to a human.
type RuleClassifier struct{}

func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

func (c *RuleClassifier) Name() string {
	return "rules"
}

func (c *RuleClassifier) Classify(_ context.Context, req *Request) (*Result, error) {
	f := req.Finding

	// Active exploitation on a serious finding is treated as real
	if f.ActiveExploit && (f.Severity == models.SeverityCritical || f.Severity == models.SeverityHigh) {
		return &Result{
			Classification:    models.ClassificationValid,
			Confidence:        0.6,
			Reasoning:         fmt.Sprintf("rule: active exploit indicator on %s severity finding", f.Severity),
			RecommendedAction: models.ActionEscalate,
		}, nil
	}

	// Known CVE with a high exploit-probability score
	if f.CVE != "" && f.ExploitProbability >= 0.7 {
		return &Result{
			Classification:    models.ClassificationValid,
			Confidence:        0.6,
			Reasoning:         fmt.Sprintf("rule: %s with exploit probability %.2f", f.CVE, f.ExploitProbability),
			RecommendedAction: models.ActionEscalate,
		}, nil
	}

	// Low-severity noise in non-production environments
	if (f.Environment == "dev" || f.Environment == "test") && f.Severity == models.SeverityLow {
		return &Result{
			Classification:    models.ClassificationFalsePositive,
			Confidence:        0.55,
			Reasoning:         fmt.Sprintf("rule: low severity finding in %s environment", f.Environment),
			RecommendedAction: models.ActionFlagForReview,
		}, nil
	}

	return &Result{
		Classification:    models.ClassificationUncertain,
		Confidence:        0.4,
		Reasoning:         "rule: no deterministic signal, deferring to human review",
		RecommendedAction: models.ActionFlagForReview,
	}, nil
}
