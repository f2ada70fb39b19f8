package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/WilBtc/sentinel-triage/internal/models"
)

func pattern(accuracy float64, observations int64) *models.Pattern {
	success := int64(accuracy * float64(observations))
	return &models.Pattern{
		ID:           "p-test",
		Type:         models.PatternTitleKeyword,
		Value:        "openssl",
		SuccessCount: success,
		FailureCount: observations - success,
		Accuracy:     accuracy,
		Multiplier:   1.0,
	}
}

func TestAccuracyMultiplier_Bands(t *testing.T) {
	// High-accuracy band boosts
	assert.InDelta(t, 1.0, AccuracyMultiplier(0.90), 1e-9)
	assert.InDelta(t, 1.1, AccuracyMultiplier(0.95), 1e-9)
	assert.InDelta(t, 1.2, AccuracyMultiplier(1.0), 1e-9)

	// Low-accuracy band penalizes
	assert.InDelta(t, 1.0, AccuracyMultiplier(0.70), 1e-9)
	assert.InDelta(t, 0.8, AccuracyMultiplier(0.60), 1e-9)
	assert.InDelta(t, 0.6, AccuracyMultiplier(0.40), 1e-9)
	assert.InDelta(t, 0.6, AccuracyMultiplier(0.0), 1e-9)

	// Middle band is neutral
	assert.InDelta(t, 1.0, AccuracyMultiplier(0.80), 1e-9)
	assert.InDelta(t, 1.0, AccuracyMultiplier(0.75), 1e-9)
}

func TestCalibrate_HighAccuracyPattern(t *testing.T) {
	// raw 0.80 with one 0.95-accuracy pattern: 0.80 * 1.1 = 0.88
	result := Calibrate(0.80, []*models.Pattern{pattern(0.95, 100)})
	assert.InDelta(t, 0.88, result, 1e-9)
}

func TestCalibrate_NoPatterns(t *testing.T) {
	assert.InDelta(t, 0.55, Calibrate(0.55, nil), 1e-9)
	assert.InDelta(t, 0.55, Calibrate(0.55, []*models.Pattern{}), 1e-9)
}

func TestCalibrate_UnobservedPatternIsNeutral(t *testing.T) {
	fresh := &models.Pattern{Type: models.PatternCVE, Value: "CVE-2024-1234", Multiplier: 1.0}
	assert.InDelta(t, 0.75, Calibrate(0.75, []*models.Pattern{fresh}), 1e-9)
}

func TestCalibrate_ClampedToUnitInterval(t *testing.T) {
	boosted := Calibrate(0.95, []*models.Pattern{
		pattern(1.0, 50),
		pattern(1.0, 50),
	})
	assert.Equal(t, 1.0, boosted)

	penalized := Calibrate(0.05, []*models.Pattern{
		pattern(0.1, 50),
		pattern(0.1, 50),
		pattern(0.1, 50),
	})
	assert.GreaterOrEqual(t, penalized, 0.0)
	assert.LessOrEqual(t, penalized, 1.0)
}

func TestCalibrate_Deterministic(t *testing.T) {
	patterns := []*models.Pattern{pattern(0.95, 100), pattern(0.5, 20)}

	first := Calibrate(0.8, patterns)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Calibrate(0.8, patterns))
	}
}

func TestCalibrate_MultipliersCompound(t *testing.T) {
	// 0.80 * 1.1 * 0.8 = 0.704
	result := Calibrate(0.80, []*models.Pattern{pattern(0.95, 100), pattern(0.60, 100)})
	assert.InDelta(t, 0.704, result, 1e-9)
}
