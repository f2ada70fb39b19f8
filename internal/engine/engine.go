package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/WilBtc/sentinel-triage/internal/classifier"
	"github.com/WilBtc/sentinel-triage/internal/models"
)

// Verdict is the engine's output for one finding: the classifier result
// plus the calibrated confidence and the patterns that were applied.
type Verdict struct {
	Classification       models.Classification
	RawConfidence        float64
	CalibratedConfidence float64
	Reasoning            string
	RecommendedAction    models.Action
	AppliedPatterns      []*models.Pattern
}

// Engine produces triage verdicts by delegating judgment to a classifier
// and calibrating its confidence against historical pattern accuracy.
type Engine struct {
	classifier classifier.Classifier
}

// NewEngine creates a decision engine around the given classifier, which is
// normally a FallbackClassifier so the engine never stalls on the remote.
func NewEngine(c classifier.Classifier) *Engine {
	log.Printf("Decision engine initialized (classifier: %s)", c.Name())
	return &Engine{classifier: c}
}

// Evaluate classifies one finding against its candidate patterns and
// calibrates the confidence. Matching is done here so the router only needs
// to hand over the tenant's candidate set.
func (e *Engine) Evaluate(ctx context.Context, finding *models.Finding, candidates []*models.Pattern) (*Verdict, error) {
	applied := MatchPatterns(finding, candidates)

	result, err := e.classifier.Classify(ctx, &classifier.Request{
		Finding:  finding,
		Patterns: applied,
	})
	if err != nil {
		return nil, fmt.Errorf("classification failed for %s: %w", finding.Ref(), err)
	}

	verdict := &Verdict{
		Classification:       result.Classification,
		RawConfidence:        result.Confidence,
		CalibratedConfidence: Calibrate(result.Confidence, applied),
		Reasoning:            result.Reasoning,
		RecommendedAction:    result.RecommendedAction,
		AppliedPatterns:      applied,
	}

	log.Printf("Verdict for %s: %s raw=%.2f calibrated=%.2f (%d patterns applied)",
		finding.Ref(), verdict.Classification, verdict.RawConfidence,
		verdict.CalibratedConfidence, len(applied))

	return verdict, nil
}

// PatternIDs returns the IDs of the applied patterns, in match order
func (v *Verdict) PatternIDs() []string {
	ids := make([]string, 0, len(v.AppliedPatterns))
	for _, p := range v.AppliedPatterns {
		ids = append(ids, p.ID)
	}
	return ids
}
