package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WilBtc/sentinel-triage/internal/models"
)

func TestRuleClassifier_ActiveExploitHighSeverity(t *testing.T) {
	rules := NewRuleClassifier()

	result, err := rules.Classify(context.Background(), &Request{
		Finding: &models.Finding{
			TenantID:      "acme",
			ID:            "f-1",
			Severity:      models.SeverityHigh,
			ActiveExploit: true,
		},
	})

	require.NoError(t, err)
	assert.Equal(t, models.ClassificationValid, result.Classification)
	assert.InDelta(t, 0.6, result.Confidence, 1e-9)
	assert.Equal(t, models.ActionEscalate, result.RecommendedAction)
}

func TestRuleClassifier_ActiveExploitLowSeverityNotEnough(t *testing.T) {
	rules := NewRuleClassifier()

	result, err := rules.Classify(context.Background(), &Request{
		Finding: &models.Finding{
			TenantID:      "acme",
			ID:            "f-2",
			Severity:      models.SeverityMedium,
			ActiveExploit: true,
		},
	})

	require.NoError(t, err)
	assert.Equal(t, models.ClassificationUncertain, result.Classification)
}

func TestRuleClassifier_CVEWithHighExploitProbability(t *testing.T) {
	rules := NewRuleClassifier()

	result, err := rules.Classify(context.Background(), &Request{
		Finding: &models.Finding{
			TenantID:           "acme",
			ID:                 "f-3",
			Severity:           models.SeverityMedium,
			CVE:                "CVE-2024-3094",
			ExploitProbability: 0.85,
		},
	})

	require.NoError(t, err)
	assert.Equal(t, models.ClassificationValid, result.Classification)
	assert.InDelta(t, 0.6, result.Confidence, 1e-9)
}

func TestRuleClassifier_DevEnvironmentLowSeverity(t *testing.T) {
	rules := NewRuleClassifier()

	result, err := rules.Classify(context.Background(), &Request{
		Finding: &models.Finding{
			TenantID:    "acme",
			ID:          "f-4",
			Severity:    models.SeverityLow,
			Environment: "dev",
		},
	})

	require.NoError(t, err)
	assert.Equal(t, models.ClassificationFalsePositive, result.Classification)
	assert.InDelta(t, 0.55, result.Confidence, 1e-9)
}

func TestRuleClassifier_DefaultUncertain(t *testing.T) {
	rules := NewRuleClassifier()

	result, err := rules.Classify(context.Background(), &Request{
		Finding: &models.Finding{
			TenantID: "acme",
			ID:       "f-5",
			Severity: models.SeverityMedium,
		},
	})

	require.NoError(t, err)
	assert.Equal(t, models.ClassificationUncertain, result.Classification)
	assert.Equal(t, models.ActionFlagForReview, result.RecommendedAction)
}

func TestRuleClassifier_Deterministic(t *testing.T) {
	rules := NewRuleClassifier()
	req := &Request{Finding: &models.Finding{
		TenantID:      "acme",
		ID:            "f-6",
		Severity:      models.SeverityCritical,
		ActiveExploit: true,
	}}

	first, err := rules.Classify(context.Background(), req)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := rules.Classify(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
