package engine

import "github.com/WilBtc/sentinel-triage/internal/models"

// Calibration bands. Patterns with strong track records push confidence up,
// unreliable ones pull it down, the middle band is neutral.
const (
	highAccuracyBand = 0.90
	lowAccuracyBand  = 0.70
	multiplierCap    = 1.2
	multiplierFloor  = 0.6
)

// AccuracyMultiplier maps a pattern's accuracy rate to its calibration
// multiplier:
//
//	accuracy >= 0.90: 1.0 + (accuracy-0.90)*2, capped at 1.2
//	accuracy <= 0.70: 1.0 - (0.70-accuracy)*2, floored at 0.6
//	otherwise:        1.0
func AccuracyMultiplier(accuracy float64) float64 {
	switch {
	case accuracy >= highAccuracyBand:
		m := 1.0 + (accuracy-highAccuracyBand)*2
		if m > multiplierCap {
			m = multiplierCap
		}
		return m
	case accuracy <= lowAccuracyBand:
		m := 1.0 - (lowAccuracyBand-accuracy)*2
		if m < multiplierFloor {
			m = multiplierFloor
		}
		return m
	default:
		return 1.0
	}
}

// Calibrate adjusts a raw confidence score by the accuracy multipliers of
// every matching pattern. Pure function: no I/O, no randomness, the result
// is always within [0.0, 1.0]. Patterns with no observations yet are
// neutral.
func Calibrate(rawConfidence float64, patterns []*models.Pattern) float64 {
	confidence := rawConfidence

	for _, p := range patterns {
		if p.SuccessCount+p.FailureCount == 0 {
			continue
		}
		confidence *= AccuracyMultiplier(p.Accuracy)
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < 0.0 {
		confidence = 0.0
	}

	return confidence
}
